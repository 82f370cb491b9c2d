package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"cpamm/internal/model"
)

const feeMethodExact = "exact_from_event"

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
	// Pools resolves metadata for pools created before the aggregated range.
	Pools PoolLookup
}

// MetricsStore receives pool metadata and window metrics.
type MetricsStore interface {
	UpsertPools(ctx context.Context, pools []model.PoolMeta) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Aggregator aggregates engine events into pool window metrics.
type Aggregator struct {
	cfg          Config
	store        MetricsStore
	logger       *zap.Logger
	meta         *PoolMetaCache
	accumulators map[string]*Accumulator
	poolSeen     map[string]model.PoolMeta
}

func NewAggregator(cfg Config, store MetricsStore, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		meta:         NewPoolMetaCache(),
		accumulators: make(map[string]*Accumulator),
		poolSeen:     make(map[string]model.PoolMeta),
	}
}

// Run executes aggregation over an events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.store == nil {
		return fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	pools := make([]model.PoolMeta, 0, 256)
	maxTs := startTs
	var total, flushed, skipped, failed int

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var ev model.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			failed++
			a.logger.Warn("decode event", zap.Error(err))
			continue
		}

		if ev.Kind == model.EventPoolCreated {
			meta, err := MetaFromCreated(ev)
			if err != nil {
				failed++
				a.logger.Warn("pool meta", zap.Error(err))
				continue
			}
			a.meta.Set(ev.Pool, meta)
		}

		if ev.Timestamp <= startTs {
			skipped++
			continue
		}

		meta, ok := a.poolMeta(ctx, ev.Pool)
		if !ok {
			failed++
			continue
		}

		windowStart := windowStart(ev.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := ev.Pool.String()
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(ev, meta, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			metrics, pool := a.flushAccumulator(acc)
			if metrics != nil {
				batch = append(batch, *metrics)
				flushed++
			}
			if pool != nil {
				pools = append(pools, *pool)
			}
			next := NewAccumulator(ev, meta, windowStart, windowEnd)
			// Reserves carry across windows until an event replaces them.
			if acc.hasReserves {
				next.setReserves(acc.ReserveA.Uint64(), acc.ReserveB.Uint64())
			}
			acc = next
			a.accumulators[accKey] = acc
		}

		if err := acc.AddEvent(ev); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", accKey), zap.String("kind", string(ev.Kind)))
			continue
		}

		if ev.Timestamp > maxTs {
			maxTs = ev.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flushBatches(ctx, batch, pools); err != nil {
				return err
			}
			batch = batch[:0]
			pools = pools[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		metrics, pool := a.flushAccumulator(acc)
		if metrics != nil {
			batch = append(batch, *metrics)
			flushed++
		}
		if pool != nil {
			pools = append(pools, *pool)
		}
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 || len(pools) > 0 {
		if err := a.flushBatches(ctx, batch, pools); err != nil {
			return err
		}
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", flushed),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

func (a *Aggregator) poolMeta(ctx context.Context, key model.Address) (model.PoolMeta, bool) {
	if meta, ok := a.meta.Get(key); ok {
		return meta, true
	}
	if a.cfg.Pools == nil {
		a.logger.Warn("missing pool meta", zap.String("pool", key.String()))
		return model.PoolMeta{}, false
	}
	meta, err := FetchPoolMeta(ctx, a.cfg.Pools, key)
	if err != nil {
		a.logger.Warn("missing pool meta", zap.String("pool", key.String()), zap.Error(err))
		return model.PoolMeta{}, false
	}
	a.meta.Set(key, meta)
	return meta, true
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flushBatches(ctx context.Context, batch []model.PoolWindowMetrics, pools []model.PoolMeta) error {
	if len(pools) > 0 {
		if err := a.store.UpsertPools(ctx, pools); err != nil {
			return err
		}
	}
	if len(batch) > 0 {
		if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) (*model.PoolWindowMetrics, *model.PoolMeta) {
	if acc == nil {
		return nil, nil
	}

	meta := acc.PoolMeta
	poolRecord := a.registerPool(acc)

	decimalsA, decimalsB := meta.DecimalsA, meta.DecimalsB
	tvlA, tvlB, tvlMethod := windowTVL(acc)

	var tvlAStr, tvlBStr *string
	if tvlA != nil {
		val := formatTokenAmount(tvlA, decimalsA)
		tvlAStr = &val
	}
	if tvlB != nil {
		val := formatTokenAmount(tvlB, decimalsB)
		tvlBStr = &val
	}

	feeRateA, feeRateB := computeFeeRates(acc.FeeA, acc.FeeB, tvlA, tvlB)
	apr := computeAPR(feeRateA, feeRateB, a.cfg.WindowSeconds)

	metrics := &model.PoolWindowMetrics{
		PoolKey:        acc.PoolKey,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		DiscountSwaps:  acc.DiscountSwaps,
		VolumeA:        formatTokenAmount(acc.VolumeA, decimalsA),
		VolumeB:        formatTokenAmount(acc.VolumeB, decimalsB),
		FeeA:           formatTokenAmount(acc.FeeA, decimalsA),
		FeeB:           formatTokenAmount(acc.FeeB, decimalsB),
		ProtocolFeeA:   formatTokenAmount(acc.ProtocolFeeA, decimalsA),
		ProtocolFeeB:   formatTokenAmount(acc.ProtocolFeeB, decimalsB),
		FeeRateA:       feeRateA,
		FeeRateB:       feeRateB,
		TVLA:           tvlAStr,
		TVLB:           tvlBStr,
		APR:            apr,
		FeeMethod:      feeMethodExact,
		TVLMethod:      tvlMethod,
	}

	return metrics, poolRecord
}

func (a *Aggregator) registerPool(acc *Accumulator) *model.PoolMeta {
	pool := acc.PoolMeta
	if pool.FirstSeenSeq == 0 || acc.FirstSeq < pool.FirstSeenSeq {
		pool.FirstSeenSeq = acc.FirstSeq
	}

	existing, ok := a.poolSeen[acc.PoolKey]
	if ok {
		if existing.FirstSeenSeq <= pool.FirstSeenSeq {
			return nil
		}
	}

	a.poolSeen[acc.PoolKey] = pool
	return &pool
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
