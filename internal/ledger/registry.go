package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"cpamm/internal/model"
)

var (
	ErrPoolExists   = errors.New("pool already exists")
	ErrPoolNotFound = errors.New("pool not found")
)

type poolEntry struct {
	mu   sync.Mutex
	pool model.Pool
}

// Registry is the in-memory reserve store. Every pool record has its own lock;
// the registry lock only guards the maps.
type Registry struct {
	mu        sync.RWMutex
	pools     map[model.Address]*poolEntry
	schedules map[model.Address]model.FeeSchedule
	discounts map[model.Address]model.DiscountConfig
	mints     map[model.Address]model.Mint
}

func NewRegistry() *Registry {
	return &Registry{
		pools:     make(map[model.Address]*poolEntry),
		schedules: make(map[model.Address]model.FeeSchedule),
		discounts: make(map[model.Address]model.DiscountConfig),
		mints:     make(map[model.Address]model.Mint),
	}
}

// InsertPool adds a new pool record.
func (r *Registry) InsertPool(p model.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[p.Key]; ok {
		return fmt.Errorf("%w: %s", ErrPoolExists, p.Key)
	}
	r.pools[p.Key] = &poolEntry{pool: p}
	return nil
}

// Pool returns a copy of the pool record.
func (r *Registry) Pool(key model.Address) (model.Pool, bool) {
	r.mu.RLock()
	entry, ok := r.pools[key]
	r.mu.RUnlock()
	if !ok {
		return model.Pool{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.pool, true
}

// Pools returns copies of every pool record ordered by key.
func (r *Registry) Pools() []model.Pool {
	r.mu.RLock()
	keys := make([]model.Address, 0, len(r.pools))
	for key := range r.pools {
		keys = append(keys, key)
	}
	r.mu.RUnlock()
	sortAddresses(keys)

	out := make([]model.Pool, 0, len(keys))
	for _, key := range keys {
		if p, ok := r.Pool(key); ok {
			out = append(out, p)
		}
	}
	return out
}

// LockPools locks the existing pools among keys in ascending key order. Keys
// without a record are skipped. The caller must Unlock the returned set.
func (r *Registry) LockPools(keys ...model.Address) *PoolSet {
	unique := make(map[model.Address]struct{}, len(keys))
	ordered := make([]model.Address, 0, len(keys))
	for _, key := range keys {
		if key.IsZero() {
			continue
		}
		if _, ok := unique[key]; ok {
			continue
		}
		unique[key] = struct{}{}
		ordered = append(ordered, key)
	}
	sortAddresses(ordered)

	set := &PoolSet{entries: make(map[model.Address]*poolEntry, len(ordered))}
	r.mu.RLock()
	for _, key := range ordered {
		if entry, ok := r.pools[key]; ok {
			set.entries[key] = entry
			set.order = append(set.order, key)
		}
	}
	r.mu.RUnlock()

	for _, key := range set.order {
		set.entries[key].mu.Lock()
	}
	return set
}

// PoolSet is a group of pool records held under their locks.
type PoolSet struct {
	entries map[model.Address]*poolEntry
	order   []model.Address
}

// Pool returns a copy of a locked pool record.
func (s *PoolSet) Pool(key model.Address) (model.Pool, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return model.Pool{}, false
	}
	return entry.pool, true
}

// Set replaces a locked pool record.
func (s *PoolSet) Set(p model.Pool) error {
	entry, ok := s.entries[p.Key]
	if !ok {
		return fmt.Errorf("%w: %s is not locked", ErrPoolNotFound, p.Key)
	}
	entry.pool = p
	return nil
}

func (s *PoolSet) Keys() []model.Address {
	return append([]model.Address(nil), s.order...)
}

// Unlock releases the locks in reverse order.
func (s *PoolSet) Unlock() {
	for i := len(s.order) - 1; i >= 0; i-- {
		s.entries[s.order[i]].mu.Unlock()
	}
	s.order = nil
}

func (r *Registry) FeeSchedule(key model.Address) (model.FeeSchedule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.schedules[key]
	return f, ok
}

func (r *Registry) PutFeeSchedule(key model.Address, f model.FeeSchedule) {
	r.mu.Lock()
	r.schedules[key] = f
	r.mu.Unlock()
}

// UpdateFeeSchedule applies fn to the stored schedule under the registry lock.
// The schedule is replaced only when fn returns nil.
func (r *Registry) UpdateFeeSchedule(key model.Address, fn func(*model.FeeSchedule) error) (model.FeeSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.schedules[key]
	if !ok {
		return model.FeeSchedule{}, fmt.Errorf("fee schedule %s not found", key)
	}
	if err := fn(&f); err != nil {
		return model.FeeSchedule{}, err
	}
	r.schedules[key] = f
	return f, nil
}

func (r *Registry) FeeSchedules() map[model.Address]model.FeeSchedule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[model.Address]model.FeeSchedule, len(r.schedules))
	for k, v := range r.schedules {
		out[k] = v
	}
	return out
}

func (r *Registry) DiscountConfig(key model.Address) (model.DiscountConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.discounts[key]
	return c, ok
}

func (r *Registry) PutDiscountConfig(key model.Address, c model.DiscountConfig) {
	r.mu.Lock()
	r.discounts[key] = c
	r.mu.Unlock()
}

// UpdateDiscountConfig applies fn to the stored config under the registry lock.
func (r *Registry) UpdateDiscountConfig(key model.Address, fn func(*model.DiscountConfig) error) (model.DiscountConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.discounts[key]
	if !ok {
		return model.DiscountConfig{}, fmt.Errorf("discount config %s not found", key)
	}
	if err := fn(&c); err != nil {
		return model.DiscountConfig{}, err
	}
	r.discounts[key] = c
	return c, nil
}

func (r *Registry) Mint(key model.Address) (model.Mint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mints[key]
	return m, ok
}

func (r *Registry) PutMint(m model.Mint) {
	r.mu.Lock()
	r.mints[m.Address] = m
	r.mu.Unlock()
}

func sortAddresses(keys []model.Address) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
