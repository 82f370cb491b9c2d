package amm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"cpamm/internal/curve"
	"cpamm/internal/discount"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

// SwapRequest trades AmountIn of InputMint. A non-zero DiscountMint settles the
// protocol share of the fee in that token instead.
type SwapRequest struct {
	Pool         model.Address
	Payer        model.Address
	InputMint    model.Address
	AmountIn     uint64
	MinAmountOut uint64
	DiscountMint model.Address
}

type SwapResult struct {
	Pool       model.Address   `json:"pool"`
	InputMint  model.Address   `json:"input_mint"`
	OutputMint model.Address   `json:"output_mint"`
	AmountIn   uint64          `json:"amount_in,string"`
	AmountOut  uint64          `json:"amount_out,string"`
	Fees       curve.Fees      `json:"fees"`
	Discount   *discount.Quote `json:"discount,omitempty"`
	// DiscountApplied is set when the protocol fee was waived for the discount
	// token. A fee worth less than one raw token unit is waived with no transfer.
	DiscountApplied bool        `json:"discount_applied"`
	Event           model.Event `json:"-"`
}

type swapPlan struct {
	result   SwapResult
	updated  model.Pool
	postings []ledger.Posting
	discount model.DiscountConfig
}

// Swap executes a fee-on-input constant-product trade.
func (e *Engine) Swap(ctx context.Context, req SwapRequest) (SwapResult, error) {
	if req.Payer.IsZero() {
		return SwapResult{}, e.reject("swap", fmt.Errorf("%w: payer", ErrInvalidAddress))
	}
	set, plan, err := e.lockAndPlanSwap(req)
	if err != nil {
		return SwapResult{}, e.reject("swap", err, zap.String("pool", req.Pool.String()), zap.Uint64("amount_in", req.AmountIn))
	}
	defer set.Unlock()

	if err := e.commit(ctx, set, plan.updated, plan.postings); err != nil {
		var short *ledger.InsufficientBalanceError
		if plan.result.DiscountApplied && errors.As(err, &short) && short.Mint == plan.discount.Mint {
			err = fmt.Errorf("%w: %w", ErrInsufficientDiscountTokenBalance, err)
		}
		return SwapResult{}, e.reject("swap", err, zap.String("pool", req.Pool.String()), zap.String("payer", req.Payer.String()))
	}

	res := plan.result
	ev := e.newEvent(ctx, model.EventSwap, req.Pool, req.Payer)
	ev.Swap = &model.SwapEventData{
		InputMint:   res.InputMint,
		OutputMint:  res.OutputMint,
		AmountIn:    res.AmountIn,
		AmountOut:   res.AmountOut,
		TradeFee:    res.Fees.Trade,
		ProtocolFee: res.Fees.Protocol,
		FundFee:     res.Fees.Fund,
		CreatorFee:  res.Fees.Creator,
		LPFee:       res.Fees.LP,
		ReserveA:    plan.updated.ReserveA,
		ReserveB:    plan.updated.ReserveB,
	}
	if res.Discount != nil {
		ev.Swap.DiscountMint = req.DiscountMint
		ev.Swap.DiscountAmount = res.Discount.Amount
		ev.Swap.DiscountSkipped = res.Discount.Skipped
	}
	res.Event = ev

	e.logger.Debug("swap",
		zap.String("pool", req.Pool.String()),
		zap.String("input_mint", res.InputMint.String()),
		zap.Uint64("amount_in", res.AmountIn),
		zap.Uint64("amount_out", res.AmountOut),
		zap.Uint64("trade_fee", res.Fees.Trade),
		zap.Bool("discount", res.DiscountApplied),
	)
	return res, nil
}

// QuoteSwap runs the full swap computation without moving any balance.
func (e *Engine) QuoteSwap(req SwapRequest) (SwapResult, error) {
	set, plan, err := e.lockAndPlanSwap(req)
	if err != nil {
		return SwapResult{}, err
	}
	set.Unlock()
	return plan.result, nil
}

// lockAndPlanSwap locks the traded pool with every reference pool the fee
// settlement may read and computes the trade. On success the caller owns the
// returned lock set.
func (e *Engine) lockAndPlanSwap(req SwapRequest) (*ledger.PoolSet, swapPlan, error) {
	if req.AmountIn == 0 {
		return nil, swapPlan{}, ErrZeroAmount
	}
	p, ok := e.registry.Pool(req.Pool)
	if !ok {
		return nil, swapPlan{}, fmt.Errorf("%w: %s", ErrPoolNotFound, req.Pool)
	}
	if _, err := p.SideOf(req.InputMint); err != nil {
		return nil, swapPlan{}, err
	}

	keys := []model.Address{req.Pool}
	var cfg model.DiscountConfig
	var tokenDecimals uint8
	if !req.DiscountMint.IsZero() {
		var err error
		if cfg, err = e.DiscountConfig(req.DiscountMint); err != nil {
			return nil, swapPlan{}, err
		}
		m, ok := e.registry.Mint(req.DiscountMint)
		if !ok {
			return nil, swapPlan{}, fmt.Errorf("%w: %s", ErrUnknownMint, req.DiscountMint)
		}
		tokenDecimals = m.Decimals
		keys = append(keys, e.settler.Candidates(req.InputMint, cfg)...)
	}

	set := e.registry.LockPools(keys...)
	plan, err := e.planSwap(set, req, cfg, tokenDecimals)
	if err != nil {
		set.Unlock()
		return nil, swapPlan{}, err
	}
	return set, plan, nil
}

func (e *Engine) planSwap(set *ledger.PoolSet, req SwapRequest, cfg model.DiscountConfig, tokenDecimals uint8) (swapPlan, error) {
	pool, ok := set.Pool(req.Pool)
	if !ok {
		return swapPlan{}, fmt.Errorf("%w: %s", ErrPoolNotFound, req.Pool)
	}
	if !pool.Status.Allows(model.StatusSwapDisabled) {
		return swapPlan{}, fmt.Errorf("%w: swap", ErrNotApproved)
	}
	if pool.LPSupply == 0 {
		return swapPlan{}, ErrZeroLiquidity
	}
	inSide, err := pool.SideOf(req.InputMint)
	if err != nil {
		return swapPlan{}, err
	}
	outSide := inSide.Other()
	sched, err := e.schedule(pool.FeeSchedule)
	if err != nil {
		return swapPlan{}, err
	}

	reserveIn, err := pool.TradingReserve(inSide)
	if err != nil {
		return swapPlan{}, err
	}
	reserveOut, err := pool.TradingReserve(outSide)
	if err != nil {
		return swapPlan{}, err
	}

	res := SwapResult{
		Pool:       pool.Key,
		InputMint:  req.InputMint,
		OutputMint: pool.Mint(outSide),
		AmountIn:   req.AmountIn,
	}

	waive := false
	if !req.DiscountMint.IsZero() {
		tradeFee, err := curve.TradeFee(req.AmountIn, sched.TradeFeeRate)
		if err != nil {
			return swapPlan{}, err
		}
		fees, err := curve.SplitFee(tradeFee, sched)
		if err != nil {
			return swapPlan{}, err
		}
		// The traded pool is part of the lock set, so a pool that is also a
		// reference pool is priced at its pre-trade reserves.
		dq, err := e.settler.Quote(set, fees.Protocol, req.InputMint, pool.Decimals(inSide), cfg, tokenDecimals)
		if err != nil {
			return swapPlan{}, err
		}
		res.Discount = &dq
		waive = fees.Protocol > 0
	}

	quote, err := curve.QuoteSwap(req.AmountIn, reserveIn, reserveOut, sched, waive)
	if err != nil {
		return swapPlan{}, err
	}
	if quote.AmountOut == 0 {
		return swapPlan{}, fmt.Errorf("%w: output rounds to zero", ErrZeroAmount)
	}
	if quote.AmountOut < req.MinAmountOut {
		return swapPlan{}, fmt.Errorf("%w: out %d < min %d", ErrSlippageExceeded, quote.AmountOut, req.MinAmountOut)
	}
	res.AmountOut = quote.AmountOut
	res.Fees = quote.Fees
	res.DiscountApplied = waive

	updated := pool
	if err := creditSide(&updated, inSide, req.AmountIn); err != nil {
		return swapPlan{}, err
	}
	if err := debitSide(&updated, outSide, quote.AmountOut); err != nil {
		return swapPlan{}, err
	}
	protocolFee := quote.Fees.Protocol
	if waive {
		protocolFee = 0
	}
	accrue(&updated, inSide, protocolFee, quote.Fees.Fund, quote.Fees.Creator)

	afterIn, err := updated.TradingReserve(inSide)
	if err != nil {
		return swapPlan{}, err
	}
	afterOut, err := updated.TradingReserve(outSide)
	if err != nil {
		return swapPlan{}, err
	}
	if !curve.InvariantHolds(reserveIn, reserveOut, afterIn, afterOut) {
		return swapPlan{}, curve.ErrInvariant
	}

	postings := []ledger.Posting{
		ledger.Debit(req.Payer, req.InputMint, req.AmountIn),
		ledger.Credit(req.Payer, res.OutputMint, res.AmountOut),
	}
	if waive && res.Discount.Amount > 0 {
		postings = append(postings,
			ledger.Debit(req.Payer, cfg.Mint, res.Discount.Amount),
			ledger.Credit(cfg.Treasury, cfg.Mint, res.Discount.Amount),
		)
	}

	return swapPlan{result: res, updated: updated, postings: postings, discount: cfg}, nil
}

func creditSide(p *model.Pool, side model.Side, amount uint64) error {
	reserve := &p.ReserveA
	if side == model.SideB {
		reserve = &p.ReserveB
	}
	next, err := curve.Add(*reserve, amount)
	if err != nil {
		return err
	}
	*reserve = next
	return nil
}

func debitSide(p *model.Pool, side model.Side, amount uint64) error {
	reserve := &p.ReserveA
	if side == model.SideB {
		reserve = &p.ReserveB
	}
	next, err := curve.Sub(*reserve, amount)
	if err != nil {
		return err
	}
	*reserve = next
	return nil
}

func accrue(p *model.Pool, side model.Side, protocol, fund, creator uint64) {
	if side == model.SideA {
		p.ProtocolFeesA += protocol
		p.FundFeesA += fund
		p.CreatorFeesA += creator
		return
	}
	p.ProtocolFeesB += protocol
	p.FundFeesB += fund
	p.CreatorFeesB += creator
}
