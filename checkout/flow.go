// Package checkout drives the multi-step purchase protocol for one carted
// variant: cart hygiene, the atomic add, checkout initiation, interactive
// challenge gating, the checkpoint sub-protocol, and submission.
//
// The protocol is a state machine (see State) whose backward transitions are
// bounded by a Guard, so bouncing storefronts can never trap an attempt in a
// cart↔checkout cycle. Every failure path terminates in a known-safe URL
// hand-off rather than an indeterminate page.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/affut/journal"
	"github.com/hazyhaar/affut/solver"
)

// Config configures one checkout flow.
type Config struct {
	// Store selects the initiation strategy (see StrategyFor).
	Store string
	// Paths are the storefront endpoints. Zero values take stock defaults.
	Paths Paths
	// Properties supplies anti-automation properties for add-to-cart.
	Properties PropertiesFunc
	// SettleDelay is the pause between receiving a challenge token and
	// triggering submission. Default: 1s.
	SettleDelay time.Duration
	// CheckpointWait is how long AwaitingNextStep waits for the checkpoint
	// watcher before assuming no checkpoint was asserted. Default: 10s.
	CheckpointWait time.Duration
	// CheckpointPoll is the watcher's poll interval. Default: 500ms.
	CheckpointPoll time.Duration
	// GuardMax is the extra-attempt budget per backward edge. Default: 1.
	GuardMax int
}

func (c *Config) defaults() {
	c.Paths.defaults()
	if c.SettleDelay <= 0 {
		c.SettleDelay = time.Second
	}
	if c.CheckpointWait <= 0 {
		c.CheckpointWait = 10 * time.Second
	}
	if c.CheckpointPoll <= 0 {
		c.CheckpointPoll = 500 * time.Millisecond
	}
	if c.GuardMax <= 0 {
		c.GuardMax = 1
	}
}

// Outcome is the terminal result of one purchase attempt. SafeURL is always
// set: on failure it is the known-safe checkout URL the caller should hand
// the session to instead of leaving it on an indeterminate page.
type Outcome struct {
	Success  bool
	State    State
	FinalURL string
	SafeURL  string
	Reason   error
}

// Flow owns one purchase attempt. A Flow is single-use and never shared
// across concurrent attempts; its context (state, guard budgets, last
// response) belongs to this attempt alone.
type Flow struct {
	client   *http.Client
	base     *url.URL
	cart     *Cart
	bridge   solver.Bridge
	strategy InitiationStrategy
	guard    *Guard
	config   Config
	logger   *slog.Logger
	rec      *journal.Recorder
	session  string

	state State
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) { f.logger = l }
}

// WithJournal attaches a session journal recorder under sessionID.
func WithJournal(rec *journal.Recorder, sessionID string) Option {
	return func(f *Flow) { f.rec = rec; f.session = sessionID }
}

// WithStrategy overrides the store-selected initiation strategy.
func WithStrategy(s InitiationStrategy) Option {
	return func(f *Flow) { f.strategy = s }
}

// New creates a Flow against the storefront at baseURL. The HTTP client
// should be the session's cookie-jarred client — the remote session and cart
// identifiers the protocol discovers live in its cookies.
func New(baseURL string, client *http.Client, bridge solver.Bridge, cfg Config, opts ...Option) (*Flow, error) {
	cfg.defaults()
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("checkout: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("checkout: base URL must be absolute: %q", baseURL)
	}
	if client == nil {
		client = &http.Client{}
	}
	f := &Flow{
		client:   client,
		base:     base,
		bridge:   bridge,
		strategy: StrategyFor(cfg.Store),
		guard:    NewGuard(cfg.GuardMax),
		config:   cfg,
		logger:   slog.Default(),
		state:    StateCartReady,
	}
	for _, o := range opts {
		o(f)
	}
	f.cart = NewCart(base, client, cfg.Paths, cfg.Properties, f.logger)
	return f, nil
}

// State returns the current protocol state.
func (f *Flow) State() State { return f.state }

// Run executes the protocol for variantID and always returns a terminal
// Outcome: Success with the final URL, or Failed with the reason and the
// known-safe checkout URL for hand-off.
func (f *Flow) Run(ctx context.Context, variantID int64) Outcome {
	safe := f.base.ResolveReference(&url.URL{Path: f.config.Paths.Checkout}).String()
	fail := func(err error) Outcome {
		f.transition(StateFailed, err)
		f.logger.Warn("checkout: failed", "variant", variantID, "reason", err, "safe_url", safe)
		return Outcome{State: StateFailed, SafeURL: safe, Reason: err}
	}

	// Hygiene pass, then the atomic add. Only a Carted item justifies
	// initiating checkout.
	if err := f.cart.EnsureEmpty(ctx); err != nil {
		return fail(err)
	}
	item, err := f.cart.AddVariant(ctx, variantID)
	if err != nil {
		return fail(err)
	}
	if !item.Carted {
		return fail(ErrAddToCart)
	}
	f.record("carted", item.ProductTitle)

	// The checkpoint may be asserted asynchronously any time after checkout
	// is requested; watch for it concurrently with the main flow.
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	checkpointCh := f.watchCheckpoint(watchCtx)

	pg, out := f.initiate(ctx, fail)
	if out != nil {
		return *out
	}

	// Interactive challenge on the landing page gates submission until the
	// solver answers and the settle delay elapses.
	if HasChallenge(pg.Body) {
		f.transition(StateChallengeGate, nil)
		sitekey, data := ExtractChallenge(pg.Body)
		if _, err := f.bridge.Solve(ctx, solver.Descriptor{
			Kind:    solver.KindInteractive,
			SiteKey: sitekey,
			SiteURL: pg.URL,
			Data:    data,
		}); err != nil {
			return fail(fmt.Errorf("%w: %v", ErrChallengeUnresolved, err))
		}
		if err := sleep(ctx, f.config.SettleDelay); err != nil {
			return fail(err)
		}
		if pg, err = f.getPage(ctx, pg.URL); err != nil {
			return fail(err)
		}
	}
	f.transition(StateAwaitingNextStep, nil)

	// Checkpoint window: the server either redirected the main flow onto the
	// checkpoint page, or the watcher sees it asserted out of band. A landing
	// that already satisfies the success pattern skips the wait.
	var cp *checkpointMsg
	switch {
	case strings.Contains(pg.URL, f.config.Paths.Checkpoint):
		msg := checkpointFromPage(pg)
		cp = &msg
	case f.isSuccess(pg):
		// No checkpoint coming; fall through to Submitted.
	default:
		select {
		case msg := <-checkpointCh:
			cp = &msg
		case <-time.After(f.config.CheckpointWait):
		case <-ctx.Done():
			return fail(ctx.Err())
		}
	}

	if cp != nil {
		if cp.Err != nil {
			return fail(cp.Err)
		}
		f.transition(StateCheckpointChallenge, nil)
		f.record("checkpoint", cp.URL)
		solution, err := f.bridge.Solve(ctx, solver.Descriptor{
			Kind:    solver.KindCheckpoint,
			SiteKey: cp.SiteKey,
			SiteURL: cp.URL,
			Data:    cp.Data,
		})
		if err != nil {
			return fail(fmt.Errorf("%w: %v", ErrChallengeUnresolved, err))
		}
		if pg, err = f.submitCheckpoint(ctx, cp.Token, solution); err != nil {
			return fail(err)
		}
	}

	// Submission verdict, with one guarded reacquire on a stale checkpoint.
	for {
		f.transition(StateSubmitted, nil)
		if pg.Status != http.StatusNotFound && pg.Status != http.StatusConflict {
			break
		}
		if !f.guard.Allow(EdgeResubmit) {
			return fail(&ErrLoopGuardExceeded{Edge: EdgeResubmit, Max: f.guard.Max()})
		}
		f.transition(StateCheckoutRequested, nil)
		f.logger.Info("checkout: stale checkpoint, reacquiring checkout URL", "status", pg.Status)
		resp, err := f.strategy.Initiate(ctx, f.client, f.base, f.config.Paths)
		if err != nil {
			return fail(fmt.Errorf("checkout: reacquire: %w", err))
		}
		if pg, err = readPage(resp); err != nil {
			return fail(err)
		}
	}

	if f.isSuccess(pg) {
		f.transition(StateSuccess, nil)
		f.record("success", pg.URL)
		f.logger.Info("checkout: submitted", "variant", variantID, "final_url", pg.URL)
		return Outcome{Success: true, State: StateSuccess, FinalURL: pg.URL, SafeURL: safe}
	}
	return fail(&ErrProtocolMismatch{State: StateSubmitted, Status: pg.Status, URL: pg.URL})
}

// initiate drives CartReady→CheckoutRequested with the guarded retry on a
// bounce back to the cart page. Returns the landing page, or the terminal
// Outcome when the attempt failed.
func (f *Flow) initiate(ctx context.Context, fail func(error) Outcome) (*page, *Outcome) {
	for {
		f.transition(StateCheckoutRequested, nil)
		resp, err := f.strategy.Initiate(ctx, f.client, f.base, f.config.Paths)
		if err != nil {
			out := fail(fmt.Errorf("checkout: initiation: %w", err))
			return nil, &out
		}
		pg, err := readPage(resp)
		if err != nil {
			out := fail(err)
			return nil, &out
		}
		if pg.Status != http.StatusOK {
			out := fail(&ErrProtocolMismatch{State: StateCheckoutRequested, Status: pg.Status, URL: pg.URL})
			return nil, &out
		}
		if !strings.Contains(pg.URL, f.config.Paths.Cart) {
			return pg, nil
		}
		// Bounced back to the cart page: one more attempt, then Failed.
		if !f.guard.Allow(EdgeInitiation) {
			out := fail(&ErrLoopGuardExceeded{Edge: EdgeInitiation, Max: f.guard.Max()})
			return nil, &out
		}
		f.transition(StateCartReady, nil)
		f.logger.Info("checkout: bounced to cart, retrying initiation")
	}
}

func (f *Flow) isSuccess(pg *page) bool {
	return pg.Status == http.StatusOK &&
		(strings.Contains(pg.URL, f.config.Paths.Queue) || strings.Contains(pg.URL, f.config.Paths.Checkouts))
}

func (f *Flow) getPage(ctx context.Context, rawURL string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("checkout: new request: %w", err)
	}
	req.Header.Set("Accept", browserAccept)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout: get %s: %w", rawURL, err)
	}
	return readPage(resp)
}

// submitCheckpoint POSTs the checkpoint form with the authenticity token and
// the challenge solution.
func (f *Flow) submitCheckpoint(ctx context.Context, token, solution string) (*page, error) {
	form := url.Values{
		"authenticity_token":   {token},
		"g-recaptcha-response": {solution},
	}
	u := f.base.ResolveReference(&url.URL{Path: f.config.Paths.Checkpoint})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("checkout: submit checkpoint: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", browserAccept)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout: submit checkpoint: %w", err)
	}
	return readPage(resp)
}

func (f *Flow) transition(to State, reason error) {
	from := f.state
	f.state = to
	f.logger.Debug("checkout: transition", "from", from, "to", to, "reason", reason)
	detail := from.String() + "->" + to.String()
	if reason != nil {
		detail += ": " + reason.Error()
	}
	f.record("transition", detail)
}

func (f *Flow) record(event, detail string) {
	if f.rec != nil {
		f.rec.Record(f.session, event, detail, 0)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
