// Command affut runs one monitor-and-acquire session: it watches a storefront
// product feed until a target variant becomes purchasable, then drives the
// checkout protocol for it.
//
// Usage:
//
//	affut -config affut.yaml                              # full session from YAML
//	affut -store https://shop.example.com -keywords hoodie -sizes M,L
//
// Interactive challenges are handed off to a solver. In stdio mode (default)
// solver requests are emitted as JSON lines on stdout and responses are read
// as JSON lines from stdin; in http mode each request is POSTed to the
// configured endpoint.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hazyhaar/affut/checkout"
	"github.com/hazyhaar/affut/journal"
	"github.com/hazyhaar/affut/monitor"
	"github.com/hazyhaar/affut/solver"
)

func main() {
	configPath := flag.String("config", "", "path to affut.yaml config file")
	storeURL := flag.String("store", "", "storefront origin for a quick session")
	keywords := flag.String("keywords", "", "comma-separated title keywords (quick session)")
	sizes := flag.String("sizes", "", "comma-separated size preference order (quick session)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadOrQuick(*configPath, *storeURL, *keywords, *sizes)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "usage: affut -config <file> | -store <url> -keywords <kw,...> [-sizes <s,...>]")
		os.Exit(1)
	}

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("affut: fatal", "error", err)
		os.Exit(1)
	}
}

func loadOrQuick(configPath, storeURL, keywords, sizes string) (*Config, error) {
	if configPath != "" {
		return LoadConfig(configPath)
	}
	if storeURL == "" || keywords == "" {
		return nil, errors.New("affut: no config file and no quick-session flags")
	}
	var cfg Config
	cfg.Store.URL = storeURL
	cfg.Target.Keywords = splitList(keywords)
	cfg.Target.Sizes = splitList(sizes)
	cfg.applyDefaults()
	return &cfg, cfg.validate()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func run(ctx context.Context, logger *slog.Logger, cfg *Config) error {
	// One cookie-jarred client for the whole session: the feed, cart and
	// checkout must observe the same remote session.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("cookie jar: %w", err)
	}
	client := &http.Client{Jar: jar}

	rec, err := journal.Open()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer rec.Close()

	bridge, err := newBridge(ctx, logger, cfg, client)
	if err != nil {
		return err
	}

	sess, err := monitor.New(cfg.Store.URL, client, monitor.Config{
		Feed: monitor.FeedConfig{
			Timeout:   cfg.Poll.FeedTimeout,
			UserAgent: cfg.Poll.UserAgent,
			Path:      cfg.Poll.FeedPath,
		},
		Pace: monitor.PaceConfig{
			Base:         cfg.Poll.Base,
			Low:          cfg.Poll.Low,
			MinuteWindow: cfg.Poll.MinuteWindow,
		},
		Criteria: monitor.Criteria{
			Keywords: cfg.Target.Keywords,
			Sizes:    cfg.Target.Sizes,
		},
	}, monitor.WithLogger(logger), monitor.WithJournal(rec))
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	cand, err := sess.Run(ctx)
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	flow, err := checkout.New(cfg.Store.URL, client, bridge, checkout.Config{
		Store:          cfg.Store.ID,
		Paths:          cfg.Checkout.Paths,
		SettleDelay:    cfg.Checkout.SettleDelay,
		CheckpointWait: cfg.Checkout.CheckpointWait,
		CheckpointPoll: cfg.Checkout.CheckpointPoll,
		GuardMax:       cfg.Checkout.GuardMax,
	}, checkout.WithLogger(logger), checkout.WithJournal(rec, sess.ID()))
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	out := flow.Run(ctx, cand.VariantID)
	printOutcome(out)
	if !out.Success {
		return fmt.Errorf("checkout: %w", out.Reason)
	}
	return nil
}

// newBridge wires the configured challenge solver transport.
func newBridge(ctx context.Context, logger *slog.Logger, cfg *Config, client *http.Client) (solver.Bridge, error) {
	switch cfg.Solver.Mode {
	case "http":
		return solver.NewHTTPBridge(cfg.Solver.Endpoint, client, cfg.Solver.Timeout), nil
	case "stdio":
		b := solver.NewChannelBridge(
			solver.WithTimeout(cfg.Solver.Timeout),
			solver.WithLogger(logger),
		)
		go pumpRequests(ctx, b, logger)
		go pumpResponses(b, logger)
		return b, nil
	default:
		return nil, fmt.Errorf("unknown solver mode %q", cfg.Solver.Mode)
	}
}

// pumpRequests streams outbound solver requests as JSON lines on stdout.
func pumpRequests(ctx context.Context, b *solver.ChannelBridge, logger *slog.Logger) {
	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-b.Requests():
			if err := enc.Encode(req); err != nil {
				logger.Error("affut: write solver request", "error", err)
				return
			}
		}
	}
}

// pumpResponses reads solver responses as JSON lines from stdin.
func pumpResponses(b *solver.ChannelBridge, logger *slog.Logger) {
	dec := json.NewDecoder(os.Stdin)
	for {
		var resp solver.Response
		if err := dec.Decode(&resp); err != nil {
			logger.Debug("affut: solver response stream closed", "error", err)
			return
		}
		if !b.Resolve(resp) {
			logger.Warn("affut: unmatched solver response", "id", resp.ID)
		}
	}
}

func printOutcome(out checkout.Outcome) {
	reason := ""
	if out.Reason != nil {
		reason = out.Reason.Error()
	}
	json.NewEncoder(os.Stdout).Encode(map[string]any{
		"success":   out.Success,
		"state":     out.State.String(),
		"final_url": out.FinalURL,
		"safe_url":  out.SafeURL,
		"reason":    reason,
		"at":        time.Now().UTC().Format(time.RFC3339),
	})
}
