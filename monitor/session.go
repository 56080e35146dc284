package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/affut/journal"
	"github.com/hazyhaar/affut/monitor/internal/diff"
	"github.com/hazyhaar/affut/monitor/internal/feed"
	"github.com/hazyhaar/affut/monitor/internal/match"
	"github.com/hazyhaar/affut/monitor/internal/pace"
)

// ErrAlreadyStarted is returned when Run is called twice on one session.
var ErrAlreadyStarted = errors.New("monitor: session already started")

// State is the poll loop state.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateMatched
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePolling:
		return "Polling"
	case StateMatched:
		return "Matched"
	case StateCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config configures a monitoring session.
type Config struct {
	Feed     FeedConfig
	Pace     PaceConfig
	Criteria Criteria
}

// Stats are point-in-time counters for one session.
type Stats struct {
	Cycles  int64 `json:"cycles"`
	Changes int64 `json:"changes"`
	Errors  int64 `json:"errors"`
}

// Session owns the monitoring of one target. The session is the single
// writer of its last-seen snapshot; run one Session per monitored target and
// share nothing between them.
type Session struct {
	id     string
	client *feed.Client
	config Config
	logger *slog.Logger
	rec    *journal.Recorder

	state atomic.Int32
	last  *feed.Snapshot

	cycles  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithJournal attaches a session journal recorder.
func WithJournal(rec *journal.Recorder) Option {
	return func(s *Session) { s.rec = rec }
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// New creates a Session for the storefront at baseURL. httpClient may be nil;
// pass the session's shared cookie-jarred client so the feed, cart and
// checkout observe the same remote session.
func New(baseURL string, httpClient *http.Client, cfg Config, opts ...Option) (*Session, error) {
	client, err := feed.New(baseURL, httpClient, cfg.Feed)
	if err != nil {
		return nil, err
	}
	s := &Session{
		id:     "mon_" + uuid.NewString(),
		client: client,
		config: cfg,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current loop state.
func (s *Session) State() State { return State(s.state.Load()) }

// Stats returns the current counters.
func (s *Session) Stats() Stats {
	return Stats{
		Cycles:  s.cycles.Load(),
		Changes: s.changes.Load(),
		Errors:  s.errors.Load(),
	}
}

// Run polls the feed until a candidate is matched or ctx is cancelled. It
// blocks, cycles strictly sequentially, and returns the matched candidate
// exactly once: the loop stops scheduling atomically with the match, so no
// second cycle can claim a candidate. Each Session runs at most once.
func (s *Session) Run(ctx context.Context) (*Candidate, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StatePolling)) {
		return nil, ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.logger.Info("monitor: started", "session", s.id,
		"base_delay", s.config.Pace.Base, "keywords", s.config.Criteria.Keywords)

	for {
		if err := ctx.Err(); err != nil {
			s.state.Store(int32(StateCancelled))
			return nil, err
		}

		cand, delay := s.cycle(ctx)
		if cand != nil {
			// No further cycle may start once a candidate is claimed.
			cancel()
			s.state.Store(int32(StateMatched))
			s.logger.Info("monitor: matched", "session", s.id,
				"product", cand.ProductTitle, "variant", cand.VariantID)
			return cand, nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.state.Store(int32(StateCancelled))
			s.logger.Info("monitor: cancelled", "session", s.id)
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// cycle runs one fetch/diff/match pass and returns either a candidate or the
// delay until the next cycle.
func (s *Session) cycle(ctx context.Context) (*Candidate, time.Duration) {
	s.cycles.Add(1)

	snap, err := s.client.Fetch(ctx)
	if err != nil {
		// Transient by policy. Reschedule at the plain base delay so a flaky
		// feed can never desynchronize the clock-alignment rules.
		s.errors.Add(1)
		s.logger.Warn("monitor: fetch failed", "session", s.id, "error", err)
		s.record("poll_error", err.Error(), 0)
		return nil, s.config.Pace.BaseDelay()
	}

	diffStart := time.Now()
	d := diff.Compute(s.last, snap)
	diffTook := time.Since(diffStart)

	if len(d) == 0 {
		s.logger.Debug("monitor: feed unchanged", "session", s.id, "diff", diffTook)
		s.record("poll_unchanged", "", diffTook)
		return s.schedule()
	}

	s.changes.Add(1)
	s.last = snap
	s.logger.Info("monitor: feed changed", "session", s.id, "changes", len(d), "diff", diffTook)

	searchStart := time.Now()
	cand := match.Select(snap, d, s.config.Criteria)
	searchTook := time.Since(searchStart)

	if cand == nil {
		s.logger.Debug("monitor: no candidate", "session", s.id, "search", searchTook)
		s.record("poll_no_candidate", fmt.Sprintf("changes=%d", len(d)), searchTook)
		return s.schedule()
	}

	s.record("matched", fmt.Sprintf("product=%d variant=%d", cand.ProductID, cand.VariantID), searchTook)
	return cand, 0
}

func (s *Session) schedule() (*Candidate, time.Duration) {
	delay, cause := pace.Next(time.Now(), s.config.Pace)
	s.logger.Debug("monitor: next poll", "session", s.id, "delay", delay, "cause", cause)
	s.record("scheduled", string(cause), delay)
	return nil, delay
}

func (s *Session) record(event, detail string, d time.Duration) {
	if s.rec != nil {
		s.rec.Record(s.id, event, detail, d)
	}
}
