package aggregate

import (
	"context"
	"fmt"
	"sync"

	"cpamm/internal/model"
)

// PoolLookup resolves a pool record that was created before the aggregated range.
type PoolLookup interface {
	Pool(ctx context.Context, key model.Address) (model.Pool, error)
}

// PoolMetaCache caches pool metadata by pool key.
type PoolMetaCache struct {
	mu   sync.RWMutex
	data map[model.Address]model.PoolMeta
}

func NewPoolMetaCache() *PoolMetaCache {
	return &PoolMetaCache{data: make(map[model.Address]model.PoolMeta)}
}

func (c *PoolMetaCache) Get(key model.Address) (model.PoolMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[key]
	c.mu.RUnlock()
	return meta, ok
}

func (c *PoolMetaCache) Set(key model.Address, meta model.PoolMeta) {
	c.mu.Lock()
	c.data[key] = meta
	c.mu.Unlock()
}

// MetaFromCreated builds pool metadata from a pool_created event.
func MetaFromCreated(ev model.Event) (model.PoolMeta, error) {
	if ev.Kind != model.EventPoolCreated || ev.Created == nil {
		return model.PoolMeta{}, fmt.Errorf("event %d is not a pool creation", ev.Seq)
	}
	c := ev.Created
	return model.PoolMeta{
		Key:          ev.Pool.String(),
		FeeSchedule:  c.FeeSchedule.String(),
		TradeFeeRate: c.TradeFeeRate,
		MintA:        c.MintA.String(),
		MintB:        c.MintB.String(),
		DecimalsA:    c.DecimalsA,
		DecimalsB:    c.DecimalsB,
		FirstSeenSeq: ev.Seq,
	}, nil
}

// FetchPoolMeta loads pool metadata from a persisted pool record.
func FetchPoolMeta(ctx context.Context, lookup PoolLookup, key model.Address) (model.PoolMeta, error) {
	if lookup == nil {
		return model.PoolMeta{}, fmt.Errorf("pool lookup is nil")
	}
	p, err := lookup.Pool(ctx, key)
	if err != nil {
		return model.PoolMeta{}, err
	}
	return model.PoolMeta{
		Key:         p.Key.String(),
		FeeSchedule: p.FeeSchedule.String(),
		MintA:       p.MintA.String(),
		MintB:       p.MintB.String(),
		DecimalsA:   p.DecimalsA,
		DecimalsB:   p.DecimalsB,
	}, nil
}
