package replay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cpamm/internal/amm"
	"cpamm/internal/model"
	"cpamm/internal/storage"
)

// RunConfig holds runtime settings for the replay.
type RunConfig struct {
	JournalPath       string
	ToSeq             uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	Workers           int
}

// Stats summarizes a replay.
type Stats struct {
	Applied  int    `json:"applied"`
	Rejected int    `json:"rejected"`
	Events   int    `json:"events"`
	Written  int    `json:"written"`
	LastSeq  uint64 `json:"last_seq"`
}

// Runner applies a journal to an engine and writes the committed events to
// storage.
type Runner struct {
	cfg        RunConfig
	engine     *amm.Engine
	storage    storage.Storage
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, engine *amm.Engine, storageSink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Runner{
		cfg:        cfg,
		engine:     engine,
		storage:    storageSink,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run reads the configured journal and replays it.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	ops, err := ReadJournalFile(r.cfg.JournalPath)
	if err != nil {
		return Stats{}, err
	}
	return r.RunOps(ctx, ops)
}

// RunOps replays ops in batches. The engine always sees every operation; the
// checkpoint only suppresses sink writes for batches already written.
func (r *Runner) RunOps(ctx context.Context, ops []Operation) (Stats, error) {
	if r.engine == nil {
		return Stats{}, fmt.Errorf("engine is nil")
	}
	if r.storage == nil {
		return Stats{}, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return Stats{}, fmt.Errorf("batch size must be greater than zero")
	}

	if r.cfg.ToSeq > 0 {
		cut := sort.Search(len(ops), func(i int) bool { return ops[i].Seq > r.cfg.ToSeq })
		ops = ops[:cut]
	}
	if len(ops) == 0 {
		r.logger.Info("nothing to replay", zap.Uint64("to_seq", r.cfg.ToSeq))
		return Stats{}, nil
	}

	var written uint64
	hasCheckpoint := false
	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return Stats{}, err
	}
	if ok {
		if cp.Journal != "" && r.cfg.JournalPath != "" && cp.Journal != r.cfg.JournalPath {
			return Stats{}, fmt.Errorf("checkpoint belongs to journal %s, not %s", cp.Journal, r.cfg.JournalPath)
		}
		written, hasCheckpoint = cp.LastProcessedSeq, true
		r.logger.Info("resume sink from checkpoint", zap.Uint64("last_processed", written), zap.Int("events_written", cp.EventsWritten))
	}
	totalWritten := cp.EventsWritten

	batches, err := SplitBatches(ops, r.cfg.BatchSize)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, batch := range batches {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		events, batchStats, err := r.applyBatch(ctx, batch.Ops)
		stats.Applied += batchStats.Applied
		stats.Rejected += batchStats.Rejected
		stats.Events += len(events)
		if err != nil {
			return stats, fmt.Errorf("apply seq %d-%d: %w", batch.From, batch.To, err)
		}
		stats.LastSeq = batch.Ops[len(batch.Ops)-1].Seq

		if hasCheckpoint && batch.To <= written {
			r.logger.Debug("batch already written", zap.Uint64("from", batch.From), zap.Uint64("to", batch.To))
			continue
		}

		if err := r.putEventsWithRetry(ctx, events); err != nil {
			return stats, fmt.Errorf("store events: %w", err)
		}
		stats.Written += len(events)
		totalWritten += len(events)

		if err := r.checkpoint.Save(Checkpoint{
			Journal:          r.cfg.JournalPath,
			LastProcessedSeq: batch.To,
			EventsWritten:    totalWritten,
		}); err != nil {
			return stats, err
		}

		r.logger.Info("batch complete",
			zap.Int("ops", len(batch.Ops)),
			zap.Int("events", len(events)),
			zap.Int("rejected", batchStats.Rejected),
			zap.Uint64("from", batch.From),
			zap.Uint64("to", batch.To),
		)
	}

	return stats, nil
}

// applyBatch runs the segments of a batch in order. Lanes of one segment run
// concurrently, bounded by Workers. Events come back sorted by seq.
func (r *Runner) applyBatch(ctx context.Context, batch []Operation) ([]model.Event, Stats, error) {
	var (
		mu     sync.Mutex
		events []model.Event
		stats  Stats
	)
	record := func(op Operation, ev *model.Event, err error) error {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			if IsFatal(err) {
				return fmt.Errorf("seq %d %s: %w", op.Seq, op.Kind, err)
			}
			stats.Rejected++
			r.logger.Warn("operation rejected", zap.Uint64("seq", op.Seq), zap.String("op", string(op.Kind)), zap.Error(err))
			return nil
		}
		stats.Applied++
		if ev != nil {
			events = append(events, *ev)
		}
		return nil
	}

	for _, segment := range Partition(batch, r.keyOf) {
		if segment.Barrier != nil {
			op := *segment.Barrier
			ev, err := Apply(ctx, r.engine, op)
			if err := record(op, ev, err); err != nil {
				return events, stats, err
			}
			continue
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(r.cfg.Workers)
		for _, lane := range segment.Lanes {
			lane := lane
			group.Go(func() error {
				for _, op := range lane {
					ev, err := Apply(groupCtx, r.engine, op)
					if err := record(op, ev, err); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return events, stats, err
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	return events, stats, nil
}

func (r *Runner) keyOf(op Operation) model.Address {
	return poolKey(r.engine, op)
}

func (r *Runner) putEventsWithRetry(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	return withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		err := r.storage.PutEventBatch(ctx, events)
		if err != nil {
			r.logger.Warn("put events failed", zap.Error(err), zap.Int("events", len(events)))
		}
		return err
	})
}
