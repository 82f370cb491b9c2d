package amm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cpamm/internal/curve"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

// DepositRequest mints LPAmount shares for at most MaxA and MaxB. When the pool
// holds no redeemable shares it is re-seeded with exactly MaxA and MaxB, and
// LPAmount is the minimum number of shares accepted.
type DepositRequest struct {
	Pool     model.Address
	Owner    model.Address
	LPAmount uint64
	MaxA     uint64
	MaxB     uint64
}

// WithdrawRequest burns LPAmount shares for at least MinA and MinB.
type WithdrawRequest struct {
	Pool     model.Address
	Owner    model.Address
	LPAmount uint64
	MinA     uint64
	MinB     uint64
}

type LiquidityResult struct {
	Pool     model.Pool
	LPAmount uint64
	AmountA  uint64
	AmountB  uint64
	Reseeded bool
	Event    model.Event
}

func (e *Engine) Deposit(ctx context.Context, req DepositRequest) (LiquidityResult, error) {
	if req.Owner.IsZero() {
		return LiquidityResult{}, e.reject("deposit", fmt.Errorf("%w: owner", ErrInvalidAddress))
	}

	set := e.registry.LockPools(req.Pool)
	defer set.Unlock()

	pool, ok := set.Pool(req.Pool)
	if !ok {
		return LiquidityResult{}, e.reject("deposit", fmt.Errorf("%w: %s", ErrPoolNotFound, req.Pool))
	}
	if !pool.Status.Allows(model.StatusDepositDisabled) {
		return LiquidityResult{}, e.reject("deposit", fmt.Errorf("%w: deposit", ErrNotApproved))
	}

	var (
		res LiquidityResult
		err error
	)
	if pool.LPSupply == 0 {
		res, err = reseed(pool, req)
	} else {
		res, err = deposit(pool, req)
	}
	if err != nil {
		return LiquidityResult{}, e.reject("deposit", err, zap.String("pool", req.Pool.String()), zap.Uint64("lp_amount", req.LPAmount))
	}

	postings := []ledger.Posting{
		ledger.Debit(req.Owner, pool.MintA, res.AmountA),
		ledger.Debit(req.Owner, pool.MintB, res.AmountB),
		ledger.Credit(req.Owner, pool.LPMint, res.LPAmount),
	}
	if err := e.commit(ctx, set, res.Pool, postings); err != nil {
		return LiquidityResult{}, e.reject("deposit", err, zap.String("pool", req.Pool.String()), zap.String("owner", req.Owner.String()))
	}

	res.Event = e.liquidityEvent(ctx, model.EventDeposit, req.Owner, res)
	e.logger.Debug("deposit",
		zap.String("pool", req.Pool.String()),
		zap.Uint64("lp_amount", res.LPAmount),
		zap.Uint64("amount_a", res.AmountA),
		zap.Uint64("amount_b", res.AmountB),
		zap.Bool("reseeded", res.Reseeded),
	)
	return res, nil
}

func deposit(pool model.Pool, req DepositRequest) (LiquidityResult, error) {
	if req.LPAmount == 0 {
		return LiquidityResult{}, ErrZeroAmount
	}
	tradingA, tradingB, err := pool.TradingReserves()
	if err != nil {
		return LiquidityResult{}, err
	}
	a, b, err := curve.DepositAmounts(req.LPAmount, pool.LPSupply, tradingA, tradingB)
	if err != nil {
		return LiquidityResult{}, err
	}
	if a > req.MaxA || b > req.MaxB {
		return LiquidityResult{}, fmt.Errorf("%w: needs %d/%d, max %d/%d", ErrSlippageExceeded, a, b, req.MaxA, req.MaxB)
	}
	if pool.ReserveA, err = curve.Add(pool.ReserveA, a); err != nil {
		return LiquidityResult{}, err
	}
	if pool.ReserveB, err = curve.Add(pool.ReserveB, b); err != nil {
		return LiquidityResult{}, err
	}
	if pool.LPSupply, err = curve.Add(pool.LPSupply, req.LPAmount); err != nil {
		return LiquidityResult{}, err
	}
	return LiquidityResult{Pool: pool, LPAmount: req.LPAmount, AmountA: a, AmountB: b}, nil
}

// reseed restarts a pool whose redeemable supply reached zero. The dust left
// behind by the locked shares stays in the reserves.
func reseed(pool model.Pool, req DepositRequest) (LiquidityResult, error) {
	minted, err := curve.SeedShares(req.MaxA, req.MaxB)
	if err != nil {
		return LiquidityResult{}, err
	}
	if minted < req.LPAmount {
		return LiquidityResult{}, fmt.Errorf("%w: re-seed mints %d < %d", ErrSlippageExceeded, minted, req.LPAmount)
	}
	if pool.ReserveA, err = curve.Add(pool.ReserveA, req.MaxA); err != nil {
		return LiquidityResult{}, err
	}
	if pool.ReserveB, err = curve.Add(pool.ReserveB, req.MaxB); err != nil {
		return LiquidityResult{}, err
	}
	pool.LPSupply = minted
	return LiquidityResult{Pool: pool, LPAmount: minted, AmountA: req.MaxA, AmountB: req.MaxB, Reseeded: true}, nil
}

func (e *Engine) Withdraw(ctx context.Context, req WithdrawRequest) (LiquidityResult, error) {
	if req.Owner.IsZero() {
		return LiquidityResult{}, e.reject("withdraw", fmt.Errorf("%w: owner", ErrInvalidAddress))
	}
	if req.LPAmount == 0 {
		return LiquidityResult{}, e.reject("withdraw", ErrZeroAmount)
	}

	set := e.registry.LockPools(req.Pool)
	defer set.Unlock()

	pool, ok := set.Pool(req.Pool)
	if !ok {
		return LiquidityResult{}, e.reject("withdraw", fmt.Errorf("%w: %s", ErrPoolNotFound, req.Pool))
	}
	if !pool.Status.Allows(model.StatusWithdrawDisabled) {
		return LiquidityResult{}, e.reject("withdraw", fmt.Errorf("%w: withdraw", ErrNotApproved))
	}
	if pool.LPSupply == 0 {
		return LiquidityResult{}, e.reject("withdraw", ErrZeroLiquidity)
	}
	if held := e.book.Balance(req.Owner, pool.LPMint); held < req.LPAmount {
		return LiquidityResult{}, e.reject("withdraw", &ledger.InsufficientBalanceError{
			Owner:     req.Owner,
			Mint:      pool.LPMint,
			Balance:   held,
			Requested: req.LPAmount,
		})
	}

	tradingA, tradingB, err := pool.TradingReserves()
	if err != nil {
		return LiquidityResult{}, e.reject("withdraw", err)
	}
	a, b, err := curve.WithdrawAmounts(req.LPAmount, pool.LPSupply, tradingA, tradingB)
	if err != nil {
		return LiquidityResult{}, e.reject("withdraw", err)
	}
	if a < req.MinA || b < req.MinB {
		return LiquidityResult{}, e.reject("withdraw",
			fmt.Errorf("%w: returns %d/%d, min %d/%d", ErrSlippageExceeded, a, b, req.MinA, req.MinB),
			zap.String("pool", req.Pool.String()))
	}

	updated := pool
	updated.ReserveA -= a
	updated.ReserveB -= b
	updated.LPSupply -= req.LPAmount

	postings := []ledger.Posting{
		ledger.Debit(req.Owner, pool.LPMint, req.LPAmount),
		ledger.Credit(req.Owner, pool.MintA, a),
		ledger.Credit(req.Owner, pool.MintB, b),
	}
	if err := e.commit(ctx, set, updated, postings); err != nil {
		return LiquidityResult{}, e.reject("withdraw", err, zap.String("pool", req.Pool.String()), zap.String("owner", req.Owner.String()))
	}

	res := LiquidityResult{Pool: updated, LPAmount: req.LPAmount, AmountA: a, AmountB: b}
	res.Event = e.liquidityEvent(ctx, model.EventWithdraw, req.Owner, res)
	e.logger.Debug("withdraw",
		zap.String("pool", req.Pool.String()),
		zap.Uint64("lp_amount", res.LPAmount),
		zap.Uint64("amount_a", a),
		zap.Uint64("amount_b", b),
		zap.Uint64("lp_supply", updated.LPSupply),
	)
	return res, nil
}

func (e *Engine) liquidityEvent(ctx context.Context, kind model.EventKind, owner model.Address, res LiquidityResult) model.Event {
	ev := e.newEvent(ctx, kind, res.Pool.Key, owner)
	ev.Liquidity = &model.LiquidityData{
		LPAmount: res.LPAmount,
		AmountA:  res.AmountA,
		AmountB:  res.AmountB,
		Reseeded: res.Reseeded,
		ReserveA: res.Pool.ReserveA,
		ReserveB: res.Pool.ReserveB,
		LPSupply: res.Pool.LPSupply,
	}
	return ev
}
