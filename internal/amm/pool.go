package amm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cpamm/internal/curve"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

// CreatePoolRequest seeds a new pool. Mint order does not matter; the pool
// stores the mints in ascending key order.
type CreatePoolRequest struct {
	Creator     model.Address
	FeeSchedule model.Address
	MintA       model.Address
	MintB       model.Address
	AmountA     uint64
	AmountB     uint64
}

type CreatePoolResult struct {
	Pool        model.Pool
	LPMinted    uint64
	CreationFee uint64
	Event       model.Event
}

// CreatePool seeds a pool with floor(sqrt(a*b)) shares, of which
// curve.MinimumLiquidityLock are locked. The schedule's creation fee is charged
// in the native mint to its fee receiver.
func (e *Engine) CreatePool(ctx context.Context, req CreatePoolRequest) (CreatePoolResult, error) {
	if req.Creator.IsZero() || req.MintA.IsZero() || req.MintB.IsZero() {
		return CreatePoolResult{}, e.reject("create pool", fmt.Errorf("%w: creator and mints are required", ErrInvalidAddress))
	}
	if req.MintA == req.MintB {
		return CreatePoolResult{}, e.reject("create pool", ErrSameMint)
	}
	if req.AmountA == 0 || req.AmountB == 0 {
		return CreatePoolResult{}, e.reject("create pool", ErrZeroAmount)
	}
	if req.MintB.Less(req.MintA) {
		req.MintA, req.MintB = req.MintB, req.MintA
		req.AmountA, req.AmountB = req.AmountB, req.AmountA
	}

	sched, err := e.schedule(req.FeeSchedule)
	if err != nil {
		return CreatePoolResult{}, e.reject("create pool", err)
	}
	mintA, okA := e.registry.Mint(req.MintA)
	mintB, okB := e.registry.Mint(req.MintB)
	if !okA || !okB {
		return CreatePoolResult{}, e.reject("create pool", ErrUnknownMint)
	}

	minted, err := curve.SeedShares(req.AmountA, req.AmountB)
	if err != nil {
		return CreatePoolResult{}, e.reject("create pool", err)
	}

	key := e.deriver.PoolKey(req.FeeSchedule, req.MintA, req.MintB)
	pool := model.Pool{
		Key:         key,
		FeeSchedule: req.FeeSchedule,
		MintA:       req.MintA,
		MintB:       req.MintB,
		DecimalsA:   mintA.Decimals,
		DecimalsB:   mintB.Decimals,
		VaultA:      e.deriver.VaultKey(key, req.MintA),
		VaultB:      e.deriver.VaultKey(key, req.MintB),
		LPMint:      e.deriver.LPMintKey(key),
		ReserveA:    req.AmountA,
		ReserveB:    req.AmountB,
		LPSupply:    minted,
		Creator:     req.Creator,
	}

	postings := []ledger.Posting{
		ledger.Debit(req.Creator, req.MintA, req.AmountA),
		ledger.Debit(req.Creator, req.MintB, req.AmountB),
		ledger.Credit(req.Creator, pool.LPMint, minted),
	}
	var creationFee uint64
	if sched.PoolCreationFee > 0 && !e.cfg.NativeMint.IsZero() && !sched.FeeReceiver.IsZero() {
		creationFee = sched.PoolCreationFee
		postings = append(postings,
			ledger.Debit(req.Creator, e.cfg.NativeMint, creationFee),
			ledger.Credit(sched.FeeReceiver, e.cfg.NativeMint, creationFee),
		)
	}

	e.createMu.Lock()
	defer e.createMu.Unlock()

	if _, exists := e.registry.Pool(key); exists {
		return CreatePoolResult{}, e.reject("create pool", fmt.Errorf("%w: %s", ErrPoolExists, key))
	}
	if err := e.book.Post(postings...); err != nil {
		return CreatePoolResult{}, e.reject("create pool", err, zap.String("creator", req.Creator.String()))
	}
	if err := e.persistPool(ctx, pool); err != nil {
		if rerr := e.book.Post(ledger.Reverse(postings)...); rerr != nil {
			e.logger.Error("reverse postings", zap.String("pool", key.String()), zap.Error(rerr))
		}
		return CreatePoolResult{}, err
	}
	if err := e.registry.InsertPool(pool); err != nil {
		return CreatePoolResult{}, err
	}

	ev := e.newEvent(ctx, model.EventPoolCreated, key, req.Creator)
	ev.Created = &model.PoolCreatedData{
		FeeSchedule:  req.FeeSchedule,
		TradeFeeRate: sched.TradeFeeRate,
		MintA:        pool.MintA,
		MintB:        pool.MintB,
		DecimalsA:    pool.DecimalsA,
		DecimalsB:    pool.DecimalsB,
		AmountA:      req.AmountA,
		AmountB:      req.AmountB,
		LPMinted:     minted,
		CreationFee:  creationFee,
	}

	e.logger.Debug("pool created",
		zap.String("pool", key.String()),
		zap.String("mint_a", pool.MintA.String()),
		zap.String("mint_b", pool.MintB.String()),
		zap.Uint64("lp_minted", minted),
	)
	return CreatePoolResult{Pool: pool, LPMinted: minted, CreationFee: creationFee, Event: ev}, nil
}
