package curve

import (
	"errors"

	"github.com/holiman/uint256"

	"cpamm/internal/model"
)

var (
	ErrZeroLiquidity = errors.New("pool has no liquidity")
	ErrInvariant     = errors.New("constant product decreased")
)

// Fees is the decomposition of one trade fee. Protocol, Fund and Creator are
// fractions of Trade; LP is what remains in the pool.
type Fees struct {
	Trade    uint64 `json:"trade,string"`
	Protocol uint64 `json:"protocol,string"`
	Fund     uint64 `json:"fund,string"`
	Creator  uint64 `json:"creator,string"`
	LP       uint64 `json:"lp,string"`
}

// TradeFee returns floor(amount*rate/1e6).
func TradeFee(amount, rate uint64) (uint64, error) {
	return MulDivFloor(amount, rate, model.FeeRateDenominator)
}

// SplitFee divides a trade fee between the protocol, fund, creator and LP shares.
func SplitFee(tradeFee uint64, sched model.FeeSchedule) (Fees, error) {
	fees := Fees{Trade: tradeFee}
	var err error
	if fees.Protocol, err = MulDivFloor(tradeFee, sched.ProtocolFeeRate, model.FeeRateDenominator); err != nil {
		return Fees{}, err
	}
	if fees.Fund, err = MulDivFloor(tradeFee, sched.FundFeeRate, model.FeeRateDenominator); err != nil {
		return Fees{}, err
	}
	if fees.Creator, err = MulDivFloor(tradeFee, sched.CreatorFeeRate, model.FeeRateDenominator); err != nil {
		return Fees{}, err
	}
	claimed := fees.Protocol + fees.Fund + fees.Creator
	if fees.LP, err = Sub(tradeFee, claimed); err != nil {
		return Fees{}, err
	}
	return fees, nil
}

// SwapBaseInput returns the output for netIn against the given reserves:
// reserveOut - ceil(reserveIn*reserveOut/(reserveIn+netIn)). The rounding keeps
// the post-trade product at or above the pre-trade product.
func SwapBaseInput(netIn, reserveIn, reserveOut uint64) (uint64, error) {
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrZeroLiquidity
	}
	newIn, err := Add(reserveIn, netIn)
	if err != nil {
		return 0, err
	}
	k := Product(reserveIn, reserveOut)
	rem := new(uint256.Int)
	newOut, _ := new(uint256.Int).DivMod(k, uint256.NewInt(newIn), rem)
	if !rem.IsZero() {
		newOut.AddUint64(newOut, 1)
	}
	// newIn >= reserveIn, so newOut <= reserveOut and fits in 64 bits.
	return Sub(reserveOut, newOut.Uint64())
}

// InvariantHolds reports whether afterIn*afterOut >= beforeIn*beforeOut.
func InvariantHolds(beforeIn, beforeOut, afterIn, afterOut uint64) bool {
	return Product(afterIn, afterOut).Cmp(Product(beforeIn, beforeOut)) >= 0
}

// SwapQuote is the full result of a base-input swap against trading reserves.
type SwapQuote struct {
	AmountIn       uint64
	NetIn          uint64
	AmountOut      uint64
	Fees           Fees
	ProtocolWaived bool
	// Accrued is the part of AmountIn that becomes protocol, fund and creator claims.
	Accrued uint64
}

// QuoteSwap prices amountIn against the trading reserves. When waiveProtocol is
// set the protocol share of the fee stays with the trader: it is neither
// deducted before the curve nor accrued as a claim.
func QuoteSwap(amountIn, reserveIn, reserveOut uint64, sched model.FeeSchedule, waiveProtocol bool) (SwapQuote, error) {
	tradeFee, err := TradeFee(amountIn, sched.TradeFeeRate)
	if err != nil {
		return SwapQuote{}, err
	}
	fees, err := SplitFee(tradeFee, sched)
	if err != nil {
		return SwapQuote{}, err
	}

	deducted := fees.Trade
	accrued := fees.Protocol + fees.Fund + fees.Creator
	if waiveProtocol {
		deducted -= fees.Protocol
		accrued -= fees.Protocol
	}
	netIn, err := Sub(amountIn, deducted)
	if err != nil {
		return SwapQuote{}, err
	}
	out, err := SwapBaseInput(netIn, reserveIn, reserveOut)
	if err != nil {
		return SwapQuote{}, err
	}

	// The pool keeps amountIn-accrued >= netIn on the input side.
	afterIn, err := Add(reserveIn, amountIn-accrued)
	if err != nil {
		return SwapQuote{}, err
	}
	if !InvariantHolds(reserveIn, reserveOut, afterIn, reserveOut-out) {
		return SwapQuote{}, ErrInvariant
	}

	return SwapQuote{
		AmountIn:       amountIn,
		NetIn:          netIn,
		AmountOut:      out,
		Fees:           fees,
		ProtocolWaived: waiveProtocol,
		Accrued:        accrued,
	}, nil
}
