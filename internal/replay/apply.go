package replay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"cpamm/internal/amm"
	"cpamm/internal/model"
)

// IsFatal reports whether err must stop the replay. Every other error is a
// rejected operation that leaves the engine unchanged.
func IsFatal(err error) bool {
	return errors.Is(err, amm.ErrPersist) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Apply runs one journal operation against the engine and returns the event it
// committed, if any.
func Apply(ctx context.Context, e *amm.Engine, op Operation) (*model.Event, error) {
	ctx = amm.WithJournalPosition(ctx, op.Seq, time.Unix(int64(op.Timestamp), 0).UTC())

	switch op.Kind {
	case OpFund:
		return nil, e.Fund(op.Signer, op.Mint, op.Amount)

	case OpRegisterMint:
		return nil, e.RegisterMint(ctx, model.Mint{Address: op.Mint, Decimals: op.Decimals})

	case OpCreateFeeSchedule:
		if op.FeeSchedule == nil {
			return nil, fmt.Errorf("%s: fee_schedule is required", op.Kind)
		}
		_, err := e.CreateFeeSchedule(ctx, op.Signer, *op.FeeSchedule)
		return nil, err

	case OpUpdateFeeSchedule:
		updates := make([]amm.FeeScheduleUpdate, 0, len(op.Updates))
		for _, u := range op.Updates {
			parsed, err := amm.ParseFeeScheduleUpdate(u.Field, u.Value)
			if err != nil {
				return nil, err
			}
			updates = append(updates, parsed)
		}
		_, err := e.UpdateFeeSchedule(ctx, op.Signer, e.FeeScheduleKey(op.ScheduleIndex), updates...)
		return nil, err

	case OpCreateDiscountConfig:
		if op.DiscountConfig == nil {
			return nil, fmt.Errorf("%s: discount_config is required", op.Kind)
		}
		_, err := e.CreateDiscountConfig(ctx, op.Signer, *op.DiscountConfig)
		return nil, err

	case OpUpdateDiscountConfig:
		updates := make([]amm.DiscountConfigUpdate, 0, len(op.Updates))
		for _, u := range op.Updates {
			parsed, err := amm.ParseDiscountConfigUpdate(u.Field, u.Value)
			if err != nil {
				return nil, err
			}
			updates = append(updates, parsed)
		}
		_, err := e.UpdateDiscountConfig(ctx, op.Signer, op.Mint, updates...)
		return nil, err

	case OpCreatePool:
		res, err := e.CreatePool(ctx, amm.CreatePoolRequest{
			Creator:     op.Signer,
			FeeSchedule: e.FeeScheduleKey(op.ScheduleIndex),
			MintA:       op.MintA,
			MintB:       op.MintB,
			AmountA:     op.AmountA,
			AmountB:     op.AmountB,
		})
		if err != nil {
			return nil, err
		}
		return &res.Event, nil

	case OpSwap:
		res, err := e.Swap(ctx, amm.SwapRequest{
			Pool:         poolKey(e, op),
			Payer:        op.Signer,
			InputMint:    op.Mint,
			AmountIn:     op.Amount,
			MinAmountOut: op.MinAmountOut,
			DiscountMint: op.DiscountMint,
		})
		if err != nil {
			return nil, err
		}
		return &res.Event, nil

	case OpDeposit:
		res, err := e.Deposit(ctx, amm.DepositRequest{
			Pool:     poolKey(e, op),
			Owner:    op.Signer,
			LPAmount: op.Amount,
			MaxA:     op.AmountA,
			MaxB:     op.AmountB,
		})
		if err != nil {
			return nil, err
		}
		return &res.Event, nil

	case OpWithdraw:
		res, err := e.Withdraw(ctx, amm.WithdrawRequest{
			Pool:     poolKey(e, op),
			Owner:    op.Signer,
			LPAmount: op.Amount,
			MinA:     op.AmountA,
			MinB:     op.AmountB,
		})
		if err != nil {
			return nil, err
		}
		return &res.Event, nil

	case OpCollectProtocolFee, OpCollectFundFee, OpCollectCreatorFee:
		req := amm.CollectRequest{Pool: poolKey(e, op), Signer: op.Signer, MaxA: op.AmountA, MaxB: op.AmountB}
		if req.MaxA == 0 && req.MaxB == 0 {
			req.MaxA, req.MaxB = math.MaxUint64, math.MaxUint64
		}
		var (
			res amm.CollectResult
			err error
		)
		switch op.Kind {
		case OpCollectProtocolFee:
			res, err = e.CollectProtocolFee(ctx, req)
		case OpCollectFundFee:
			res, err = e.CollectFundFee(ctx, req)
		default:
			res, err = e.CollectCreatorFee(ctx, req)
		}
		if err != nil {
			return nil, err
		}
		return &res.Event, nil

	case OpUpdatePoolStatus:
		if op.Status == nil {
			return nil, fmt.Errorf("%s: status is required", op.Kind)
		}
		ev, err := e.UpdatePoolStatus(ctx, op.Signer, poolKey(e, op), *op.Status)
		if err != nil {
			return nil, err
		}
		return &ev, nil

	default:
		return nil, fmt.Errorf("unknown op %q", op.Kind)
	}
}

// poolKey returns the explicit pool key, or derives it from the schedule index
// and the two mints.
func poolKey(e *amm.Engine, op Operation) model.Address {
	if !op.Pool.IsZero() || op.MintA.IsZero() || op.MintB.IsZero() {
		return op.Pool
	}
	return e.Deriver().PoolKey(e.FeeScheduleKey(op.ScheduleIndex), op.MintA, op.MintB)
}
