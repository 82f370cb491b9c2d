package amm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

// Claim names one of the fee accruals a pool holds.
type Claim string

const (
	ClaimProtocol Claim = "protocol"
	ClaimFund     Claim = "fund"
	ClaimCreator  Claim = "creator"
)

// CollectRequest withdraws up to MaxA and MaxB of a pool's accrued claim.
type CollectRequest struct {
	Pool   model.Address
	Signer model.Address
	MaxA   uint64
	MaxB   uint64
}

type CollectResult struct {
	Claim     Claim
	Recipient model.Address
	AmountA   uint64
	AmountB   uint64
	Event     model.Event
}

// CollectProtocolFee pays accrued protocol fees to the schedule's fee receiver.
// The schedule owner signs.
func (e *Engine) CollectProtocolFee(ctx context.Context, req CollectRequest) (CollectResult, error) {
	return e.collect(ctx, ClaimProtocol, req)
}

// CollectFundFee pays accrued fund fees to the schedule's fund owner, who signs.
func (e *Engine) CollectFundFee(ctx context.Context, req CollectRequest) (CollectResult, error) {
	return e.collect(ctx, ClaimFund, req)
}

// CollectCreatorFee pays accrued creator fees to the pool creator, who signs.
func (e *Engine) CollectCreatorFee(ctx context.Context, req CollectRequest) (CollectResult, error) {
	return e.collect(ctx, ClaimCreator, req)
}

func (e *Engine) collect(ctx context.Context, claim Claim, req CollectRequest) (CollectResult, error) {
	op := "collect " + string(claim) + " fee"

	set := e.registry.LockPools(req.Pool)
	defer set.Unlock()

	pool, ok := set.Pool(req.Pool)
	if !ok {
		return CollectResult{}, e.reject(op, fmt.Errorf("%w: %s", ErrPoolNotFound, req.Pool))
	}
	sched, err := e.schedule(pool.FeeSchedule)
	if err != nil {
		return CollectResult{}, e.reject(op, err)
	}

	var signer, recipient model.Address
	var accruedA, accruedB *uint64
	switch claim {
	case ClaimProtocol:
		signer, recipient = sched.Owner, sched.FeeReceiver
		if recipient.IsZero() {
			recipient = sched.Owner
		}
		accruedA, accruedB = &pool.ProtocolFeesA, &pool.ProtocolFeesB
	case ClaimFund:
		signer, recipient = sched.FundOwner, sched.FundOwner
		accruedA, accruedB = &pool.FundFeesA, &pool.FundFeesB
	case ClaimCreator:
		signer, recipient = pool.Creator, pool.Creator
		accruedA, accruedB = &pool.CreatorFeesA, &pool.CreatorFeesB
	default:
		return CollectResult{}, fmt.Errorf("unknown claim %q", claim)
	}
	if req.Signer.IsZero() || req.Signer != signer {
		return CollectResult{}, e.reject(op, ErrUnauthorized, zap.String("signer", req.Signer.String()))
	}

	a := min(*accruedA, req.MaxA)
	b := min(*accruedB, req.MaxB)
	if a == 0 && b == 0 {
		return CollectResult{}, e.reject(op, ErrZeroAmount, zap.String("pool", req.Pool.String()))
	}
	*accruedA -= a
	*accruedB -= b
	pool.ReserveA -= a
	pool.ReserveB -= b

	postings := []ledger.Posting{
		ledger.Credit(recipient, pool.MintA, a),
		ledger.Credit(recipient, pool.MintB, b),
	}
	if err := e.commit(ctx, set, pool, postings); err != nil {
		return CollectResult{}, e.reject(op, err, zap.String("pool", req.Pool.String()))
	}

	ev := e.newEvent(ctx, model.EventFeesCollected, pool.Key, req.Signer)
	ev.Collect = &model.CollectData{Claim: string(claim), Recipient: recipient, AmountA: a, AmountB: b}
	e.logger.Debug("fees collected",
		zap.String("pool", pool.Key.String()),
		zap.String("claim", string(claim)),
		zap.String("recipient", recipient.String()),
		zap.Uint64("amount_a", a),
		zap.Uint64("amount_b", b),
	)
	return CollectResult{Claim: claim, Recipient: recipient, AmountA: a, AmountB: b, Event: ev}, nil
}
