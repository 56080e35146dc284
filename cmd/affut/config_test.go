package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "affut.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
store:
  url: https://shop.example.com
  id: kith
target:
  keywords: [hoodie, classic]
  sizes: [M, L]
poll:
  base: 3s
  low: 500ms
checkout:
  guard_max: 2
  paths:
    checkpoint: /challenge
solver:
  mode: http
  endpoint: http://127.0.0.1:9009/solve
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.URL != "https://shop.example.com" || cfg.Store.ID != "kith" {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if len(cfg.Target.Keywords) != 2 || cfg.Target.Keywords[0] != "hoodie" {
		t.Fatalf("keywords = %v", cfg.Target.Keywords)
	}
	if cfg.Poll.Base != 3*time.Second || cfg.Poll.Low != 500*time.Millisecond {
		t.Fatalf("poll = %+v", cfg.Poll)
	}
	if cfg.Checkout.GuardMax != 2 || cfg.Checkout.Paths.Checkpoint != "/challenge" {
		t.Fatalf("checkout = %+v", cfg.Checkout)
	}
	if cfg.Solver.Timeout != 90*time.Second {
		t.Fatalf("solver timeout default = %v", cfg.Solver.Timeout)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing store url", "target:\n  keywords: [x]\n"},
		{"missing keywords", "store:\n  url: https://s.example.com\n"},
		{"http without endpoint", "store:\n  url: https://s.example.com\ntarget:\n  keywords: [x]\nsolver:\n  mode: http\n"},
		{"unknown solver mode", "store:\n  url: https://s.example.com\ntarget:\n  keywords: [x]\nsolver:\n  mode: carrier-pigeon\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.body)); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestQuickSessionFlags(t *testing.T) {
	cfg, err := loadOrQuick("", "https://shop.example.com", "hoodie, tee", "M,L")
	if err != nil {
		t.Fatalf("loadOrQuick: %v", err)
	}
	if got := cfg.Target.Keywords; len(got) != 2 || got[1] != "tee" {
		t.Fatalf("keywords = %v", got)
	}
	if cfg.Solver.Mode != "stdio" {
		t.Fatalf("solver mode = %q, want stdio default", cfg.Solver.Mode)
	}
	if _, err := loadOrQuick("", "", "", ""); err == nil {
		t.Fatal("expected an error without flags")
	}
}
