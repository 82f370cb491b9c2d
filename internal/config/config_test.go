package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"cpamm/internal/model"
)

func TestLoadReplayDefaultsAndOverrides(t *testing.T) {
	flags := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	flags.String("journal", "", "")
	flags.Uint64("batch-size", 1000, "")
	flags.Int("workers", 4, "")
	if err := flags.Parse([]string{"--journal", "ops.jsonl", "--batch-size", "50"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	t.Setenv("CPAMM_WORKERS", "9")
	t.Setenv("CPAMM_REFERENCE_SCHEDULES", "0, 3")

	cfg, err := LoadReplay("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Journal != "ops.jsonl" || cfg.BatchSize != 50 {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Workers != 9 {
		t.Fatalf("workers = %d, want 9 from env", cfg.Workers)
	}
	if cfg.RetryBackoff != 500*time.Millisecond || !cfg.CheckpointEnabled || cfg.MaxRetries != 5 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Engine.ReferenceSchedules, []string{"0", "3"}) {
		t.Fatalf("reference schedules = %v", cfg.Engine.ReferenceSchedules)
	}
	if cfg.Engine.Namespace != "cpamm" {
		t.Fatalf("namespace = %q", cfg.Engine.Namespace)
	}
}

func TestLoadServeFromFile(t *testing.T) {
	admin := model.Address{0x01}
	usdc := model.Address{0x12}
	path := filepath.Join(t.TempDir(), "cpamm.yaml")
	body := "listen: \":9090\"\nadmin: " + admin.String() + "\nusd-mint: " + usdc.String() + "\nreference-schedules:\n  - 0\n  - 1\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadServe(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Fatalf("listen = %q", cfg.Listen)
	}

	engine, err := cfg.Engine.AMM()
	if err != nil {
		t.Fatalf("engine config: %v", err)
	}
	if engine.Admin != admin || engine.USDMint != usdc || !engine.BridgeMint.IsZero() {
		t.Fatalf("unexpected engine config: %+v", engine)
	}
	if !reflect.DeepEqual(engine.ReferenceSchedules, []uint16{0, 1}) {
		t.Fatalf("reference schedules = %v", engine.ReferenceSchedules)
	}
}

func TestEngineAMMRejectsBadInput(t *testing.T) {
	admin := model.Address{0x01}.String()
	cases := []Engine{
		{},
		{Admin: "not base58!"},
		{Admin: admin, USDMint: "abc"},
		{Admin: admin, ReferenceSchedules: []string{"70000"}},
	}
	for _, c := range cases {
		if _, err := c.AMM(); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("1700000000")
	if err != nil || got != 1700000000 {
		t.Fatalf("numeric: %d %v", got, err)
	}
	got, err = ParseTimestamp("2024-01-01T00:00:00Z")
	if err != nil || got != 1704067200 {
		t.Fatalf("rfc3339: %d %v", got, err)
	}
	got, err = ParseTimestamp("  ")
	if err != nil || got != 0 {
		t.Fatalf("blank: %d %v", got, err)
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}
