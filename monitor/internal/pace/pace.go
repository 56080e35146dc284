// Package pace computes clock-aware poll delays.
//
// Inventory drops tend to land on the hour or on the minute. The scheduler
// therefore clamps delays that would cross an hour boundary so the next poll
// fires exactly at the top of the hour, and briefly tightens the loop right
// after each minute boundary. Next is a pure function of its inputs and never
// consults live state.
package pace

import "time"

// Config tunes the scheduler.
type Config struct {
	// Base is the normal delay between polls. Default: 3s.
	Base time.Duration
	// Low replaces Base inside the post-minute window. Default: 500ms.
	Low time.Duration
	// MinuteWindow is how long after the top of each minute Low applies.
	// Default: 5s.
	MinuteWindow time.Duration
}

func (c *Config) defaults() {
	if c.Base <= 0 {
		c.Base = 3 * time.Second
	}
	if c.Low <= 0 {
		c.Low = 500 * time.Millisecond
	}
	if c.MinuteWindow <= 0 {
		c.MinuteWindow = 5 * time.Second
	}
}

// BaseDelay returns Base, or the default when unset. Poll loops fall back to
// this flat delay after a transient fetch error so alignment rules are never
// driven by error timing.
func (c Config) BaseDelay() time.Duration {
	c.defaults()
	return c.Base
}

// Cause explains a scheduling decision, for logs and the session journal.
type Cause string

const (
	// CauseBase means the base delay applied unchanged.
	CauseBase Cause = "base"
	// CauseHourAlign means the delay was clamped to land on the next hour.
	CauseHourAlign Cause = "hour_align"
	// CauseMinuteLow means the low delay applied inside the minute window.
	CauseMinuteLow Cause = "minute_low"
)

// Next returns the delay until the next poll, in rule order: hour alignment
// first, then the post-minute low window, then the base delay.
func Next(now time.Time, cfg Config) (time.Duration, Cause) {
	cfg.defaults()

	// Advancing by Base crosses into a new hour: land exactly on its top.
	// Hour comparison uses the time's own location, like the wall clocks
	// drops are scheduled against.
	next := now.Add(cfg.Base)
	if next.Hour() != now.Hour() || next.Day() != now.Day() {
		top := time.Date(next.Year(), next.Month(), next.Day(), next.Hour(), 0, 0, 0, next.Location())
		return top.Sub(now), CauseHourAlign
	}

	sinceMinute := time.Duration(now.Second())*time.Second + time.Duration(now.Nanosecond())
	if sinceMinute < cfg.MinuteWindow {
		return cfg.Low, CauseMinuteLow
	}

	return cfg.Base, CauseBase
}
