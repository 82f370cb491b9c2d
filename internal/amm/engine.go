package amm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"cpamm/internal/discount"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
	"cpamm/internal/pricing"
)

// Config is the engine's explicit reference configuration.
type Config struct {
	Namespace          string
	Admin              model.Address
	NativeMint         model.Address
	USDMint            model.Address
	BridgeMint         model.Address
	ReferenceSchedules []uint16
}

// Engine executes pool operations against the reserve store and the balance book.
// Each operation locks the pools it touches in key order, computes the full
// result, posts the balance transfers atomically, persists the pool record and
// only then publishes the new record.
type Engine struct {
	cfg      Config
	deriver  ledger.Deriver
	registry *ledger.Registry
	book     *ledger.Book
	store    ledger.RecordStore
	resolver *pricing.Resolver
	settler  *discount.Settler
	logger   *zap.Logger

	createMu sync.Mutex
	seq      atomic.Uint64
	now      func() time.Time
}

// NewEngine wires an engine. store may be nil for a purely in-memory engine.
func NewEngine(cfg Config, registry *ledger.Registry, book *ledger.Book, store ledger.RecordStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = ledger.NewRegistry()
	}
	if book == nil {
		book = ledger.NewBook()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "cpamm"
	}

	deriver := ledger.NewDeriver(cfg.Namespace)
	schedules := make([]model.Address, 0, len(cfg.ReferenceSchedules))
	for _, index := range cfg.ReferenceSchedules {
		schedules = append(schedules, deriver.FeeScheduleKey(index))
	}
	resolver := pricing.NewResolver(pricing.Config{
		USDMint:            cfg.USDMint,
		BridgeMint:         cfg.BridgeMint,
		ReferenceSchedules: schedules,
	}, deriver)

	return &Engine{
		cfg:      cfg,
		deriver:  deriver,
		registry: registry,
		book:     book,
		store:    store,
		resolver: resolver,
		settler:  discount.NewSettler(resolver),
		logger:   logger,
		now:      time.Now,
	}
}

func (e *Engine) Deriver() ledger.Deriver {
	return e.deriver
}

func (e *Engine) Registry() *ledger.Registry {
	return e.registry
}

func (e *Engine) Book() *ledger.Book {
	return e.book
}

// Pool returns a copy of a pool record.
func (e *Engine) Pool(key model.Address) (model.Pool, error) {
	p, ok := e.registry.Pool(key)
	if !ok {
		return model.Pool{}, fmt.Errorf("%w: %s", ErrPoolNotFound, key)
	}
	return p, nil
}

// PoolFor returns the pool for two mints under a fee schedule index.
func (e *Engine) PoolFor(index uint16, mintA, mintB model.Address) (model.Pool, error) {
	return e.Pool(e.deriver.PoolKey(e.deriver.FeeScheduleKey(index), mintA, mintB))
}

func (e *Engine) Balance(owner, mint model.Address) uint64 {
	return e.book.Balance(owner, mint)
}

// Fund credits an owner balance from outside the pools.
func (e *Engine) Fund(owner, mint model.Address, amount uint64) error {
	if owner.IsZero() || mint.IsZero() {
		return ErrInvalidAddress
	}
	return e.book.Post(ledger.Credit(owner, mint, amount))
}

// USDPrice prices one whole unit of mint from the reference pools.
func (e *Engine) USDPrice(mint model.Address) (pricing.Quote, error) {
	set := e.registry.LockPools(e.resolver.Candidates(mint)...)
	defer set.Unlock()
	return e.resolver.USDPrice(set, mint)
}

type positionKey struct{}

type position struct {
	seq uint64
	ts  time.Time
}

// WithJournalPosition pins the sequence number and timestamp stamped on the
// event of the operation run with ctx.
func WithJournalPosition(ctx context.Context, seq uint64, ts time.Time) context.Context {
	return context.WithValue(ctx, positionKey{}, position{seq: seq, ts: ts})
}

func (e *Engine) newEvent(ctx context.Context, kind model.EventKind, pool, actor model.Address) model.Event {
	ev := model.Event{Kind: kind, Pool: pool, Actor: actor}
	if pos, ok := ctx.Value(positionKey{}).(position); ok {
		ev.Seq = pos.seq
		ev.Timestamp = uint64(pos.ts.Unix())
		return ev
	}
	ev.Seq = e.seq.Add(1)
	ev.Timestamp = uint64(e.now().Unix())
	return ev
}

func (e *Engine) persistPool(ctx context.Context, p model.Pool) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.PutPool(ctx, p); err != nil {
		return fmt.Errorf("%w: pool %s: %v", ErrPersist, p.Key, err)
	}
	return nil
}

// commit posts the transfers, persists the pool and publishes it. A failed
// persist reverses the transfers, so the operation leaves no trace.
func (e *Engine) commit(ctx context.Context, set *ledger.PoolSet, updated model.Pool, postings []ledger.Posting) error {
	if err := e.book.Post(postings...); err != nil {
		return err
	}
	if err := e.persistPool(ctx, updated); err != nil {
		if rerr := e.book.Post(ledger.Reverse(postings)...); rerr != nil {
			e.logger.Error("reverse postings", zap.String("pool", updated.Key.String()), zap.Error(rerr))
		}
		return err
	}
	return set.Set(updated)
}

func (e *Engine) reject(op string, err error, fields ...zap.Field) error {
	e.logger.Info(op+" rejected", append(fields, zap.Error(err))...)
	return err
}

func (e *Engine) schedule(key model.Address) (model.FeeSchedule, error) {
	f, ok := e.registry.FeeSchedule(key)
	if !ok {
		return model.FeeSchedule{}, fmt.Errorf("%w: %s", ErrUnknownFeeSchedule, key)
	}
	return f, nil
}
