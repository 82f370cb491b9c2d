package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cpamm/internal/amm"
	"cpamm/internal/config"
	"cpamm/internal/ledger"
	"cpamm/internal/replay"
	"cpamm/internal/storage"
	"cpamm/internal/storage/pebble"
	"cpamm/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "cpamm",
		Short:        "Constant-product AMM engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply an operation journal and write the committed events",
		RunE:  runReplay,
	}

	addEngineFlags(replayCmd)
	replayCmd.Flags().String("journal", "", "operation journal JSONL")
	replayCmd.Flags().Uint64("to", 0, "last journal seq to apply (inclusive), 0 means all")
	replayCmd.Flags().Uint64("batch-size", 1000, "journal seqs per batch")
	replayCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN; events go to Postgres instead of --out when set")
	replayCmd.Flags().String("store", "", "pebble directory for pool records, empty keeps records in memory")
	replayCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	replayCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().Int("workers", 4, "pools replayed concurrently")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pool, quote and price queries over HTTP",
		RunE:  runServe,
	}

	addEngineFlags(serveCmd)
	serveCmd.Flags().String("journal", "", "operation journal JSONL to rebuild state from")
	serveCmd.Flags().String("store", "", "pebble directory to load pool records from")
	serveCmd.Flags().String("listen", ":8080", "listen address")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print pool records and USD prices",
		RunE:  runInspect,
	}

	addEngineFlags(inspectCmd)
	inspectCmd.Flags().String("journal", "", "operation journal JSONL to rebuild state from")
	inspectCmd.Flags().String("store", "", "pebble directory to load pool records from")
	inspectCmd.Flags().String("pool", "", "only print this pool")
	inspectCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(inspectCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate events into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "", "input events JSONL")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().String("store", "", "pebble directory for pools created before the input range")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("namespace", "cpamm", "key derivation namespace")
	cmd.Flags().String("admin", "", "admin identity allowed to create fee schedules and discount configs")
	cmd.Flags().String("native-mint", "", "mint charged for the pool creation fee")
	cmd.Flags().String("usd-mint", "", "USD reference mint")
	cmd.Flags().String("bridge-mint", "", "bridge mint for two-hop prices")
	cmd.Flags().StringSlice("reference-schedules", []string{"0"}, "fee schedule indexes searched for reference pools")
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Journal == "" {
		return fmt.Errorf("journal path is required")
	}
	engineCfg, err := cfg.Engine.AMM()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var records ledger.RecordStore
	if cfg.Store != "" {
		store, err := pebble.Open(cfg.Store, pebble.Options{})
		if err != nil {
			return err
		}
		defer store.Close()
		records = store
	}
	engine := amm.NewEngine(engineCfg, nil, nil, records, logger)

	var sink storage.Storage
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		sink = pg
	} else {
		sink = storage.NewJsonlStorage(cfg.Out)
	}

	runner := replay.NewRunner(replay.RunConfig{
		JournalPath:       cfg.Journal,
		ToSeq:             cfg.ToSeq,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		Workers:           cfg.Workers,
	}, engine, sink, logger)

	logger.Info("replay start",
		zap.String("journal", cfg.Journal),
		zap.Uint64("to", cfg.ToSeq),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Int("workers", cfg.Workers),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("store", cfg.Store),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("replay complete",
		zap.Int("applied", stats.Applied),
		zap.Int("rejected", stats.Rejected),
		zap.Int("events", stats.Events),
		zap.Int("written", stats.Written),
		zap.Uint64("last_seq", stats.LastSeq),
	)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
