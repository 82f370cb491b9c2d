package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cpamm/internal/amm"
	"cpamm/internal/api"
	"cpamm/internal/config"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
	"cpamm/internal/replay"
	"cpamm/internal/storage/pebble"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, closeEngine, err := loadEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine()

	logger.Info("serve start",
		zap.String("listen", cfg.Listen),
		zap.String("journal", cfg.Journal),
		zap.String("store", cfg.Store),
		zap.Int("pools", len(engine.Registry().Pools())),
	)

	return api.NewServer(engine, logger).Run(ctx, cfg.Listen)
}

type inspectedPool struct {
	model.Pool
	PriceA *string `json:"usd_price_a,omitempty"`
	PriceB *string `json:"usd_price_b,omitempty"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	only, _ := cmd.Flags().GetString("pool")

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	engine, closeEngine, err := loadEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine()

	pools := engine.Registry().Pools()
	if only != "" {
		key, err := model.ParseAddress(only)
		if err != nil {
			return err
		}
		p, err := engine.Pool(key)
		if err != nil {
			return err
		}
		pools = []model.Pool{p}
	}

	out := make([]inspectedPool, 0, len(pools))
	for _, p := range pools {
		out = append(out, inspectedPool{
			Pool:   p,
			PriceA: usdPrice(engine, p.MintA),
			PriceB: usdPrice(engine, p.MintB),
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func usdPrice(engine *amm.Engine, mint model.Address) *string {
	quote, err := engine.USDPrice(mint)
	if err != nil {
		return nil
	}
	price := fmt.Sprintf("%d", quote.Price)
	return &price
}

// loadEngine rebuilds engine state from a journal, or loads the pool records of
// a pebble store. Balances only exist when a journal is replayed.
func loadEngine(ctx context.Context, cfg config.ServeConfig, logger *zap.Logger) (*amm.Engine, func(), error) {
	engineCfg, err := cfg.Engine.AMM()
	if err != nil {
		return nil, nil, err
	}

	switch {
	case cfg.Journal != "":
		engine := amm.NewEngine(engineCfg, nil, nil, nil, logger)
		runner := replay.NewRunner(replay.RunConfig{
			JournalPath: cfg.Journal,
			BatchSize:   1000,
			Workers:     4,
		}, engine, discardSink{}, logger)
		if _, err := runner.Run(ctx); err != nil {
			return nil, nil, err
		}
		return engine, func() {}, nil

	case cfg.Store != "":
		store, err := pebble.Open(cfg.Store, pebble.Options{})
		if err != nil {
			return nil, nil, err
		}
		registry := ledger.NewRegistry()
		if err := registry.Hydrate(ctx, store); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("hydrate: %w", err)
		}
		engine := amm.NewEngine(engineCfg, registry, nil, store, logger)
		return engine, func() { store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("journal or store is required")
	}
}

type discardSink struct{}

func (discardSink) PutEventBatch(context.Context, []model.Event) error { return nil }
