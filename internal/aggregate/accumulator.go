package aggregate

import (
	"fmt"
	"math/big"

	"cpamm/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolKey       string
	PoolMeta      model.PoolMeta
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	DiscountSwaps uint64
	VolumeA       *big.Int
	VolumeB       *big.Int
	FeeA          *big.Int
	FeeB          *big.Int
	ProtocolFeeA  *big.Int
	ProtocolFeeB  *big.Int
	// ReserveA and ReserveB are the vault balances after the latest event.
	ReserveA    *big.Int
	ReserveB    *big.Int
	LastSeq     uint64
	LastTS      uint64
	FirstSeq    uint64
	hasReserves bool
}

func NewAccumulator(ev model.Event, meta model.PoolMeta, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolKey:      ev.Pool.String(),
		PoolMeta:     meta,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		VolumeA:      big.NewInt(0),
		VolumeB:      big.NewInt(0),
		FeeA:         big.NewInt(0),
		FeeB:         big.NewInt(0),
		ProtocolFeeA: big.NewInt(0),
		ProtocolFeeB: big.NewInt(0),
		ReserveA:     big.NewInt(0),
		ReserveB:     big.NewInt(0),
		LastSeq:      ev.Seq,
		LastTS:       ev.Timestamp,
		FirstSeq:     ev.Seq,
	}
}

func (a *Accumulator) AddEvent(ev model.Event) error {
	if ev.Seq >= a.LastSeq {
		a.LastSeq = ev.Seq
		a.LastTS = ev.Timestamp
	}
	if a.FirstSeq == 0 || ev.Seq < a.FirstSeq {
		a.FirstSeq = ev.Seq
	}

	switch ev.Kind {
	case model.EventSwap:
		if ev.Swap == nil {
			return fmt.Errorf("swap event %d has no payload", ev.Seq)
		}
		return a.applySwap(*ev.Swap)
	case model.EventPoolCreated:
		if ev.Created != nil {
			a.setReserves(ev.Created.AmountA, ev.Created.AmountB)
		}
	case model.EventDeposit, model.EventWithdraw:
		if ev.Liquidity == nil {
			return fmt.Errorf("%s event %d has no payload", ev.Kind, ev.Seq)
		}
		a.setReserves(ev.Liquidity.ReserveA, ev.Liquidity.ReserveB)
	case model.EventFeesCollected:
		if ev.Collect != nil && a.hasReserves {
			a.ReserveA.Sub(a.ReserveA, new(big.Int).SetUint64(ev.Collect.AmountA))
			a.ReserveB.Sub(a.ReserveB, new(big.Int).SetUint64(ev.Collect.AmountB))
		}
	}
	return nil
}

func (a *Accumulator) applySwap(swap model.SwapEventData) error {
	var volIn, volOut, fee, protocol *big.Int
	switch swap.InputMint.String() {
	case a.PoolMeta.MintA:
		volIn, volOut, fee, protocol = a.VolumeA, a.VolumeB, a.FeeA, a.ProtocolFeeA
	case a.PoolMeta.MintB:
		volIn, volOut, fee, protocol = a.VolumeB, a.VolumeA, a.FeeB, a.ProtocolFeeB
	default:
		return fmt.Errorf("swap input %s not in pool %s", swap.InputMint, a.PoolKey)
	}

	volIn.Add(volIn, new(big.Int).SetUint64(swap.AmountIn))
	volOut.Add(volOut, new(big.Int).SetUint64(swap.AmountOut))
	fee.Add(fee, new(big.Int).SetUint64(swap.TradeFee))
	protocol.Add(protocol, new(big.Int).SetUint64(swap.ProtocolFee))
	if !swap.DiscountMint.IsZero() && !swap.DiscountSkipped {
		a.DiscountSwaps++
	}
	a.setReserves(swap.ReserveA, swap.ReserveB)
	a.SwapCount++
	return nil
}

func (a *Accumulator) setReserves(reserveA, reserveB uint64) {
	a.ReserveA.SetUint64(reserveA)
	a.ReserveB.SetUint64(reserveB)
	a.hasReserves = true
}
