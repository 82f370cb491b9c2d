package model

import (
	"errors"
	"fmt"
)

// FeeRateDenominator is the parts-per-million base of every fee rate.
const FeeRateDenominator = 1_000_000

var ErrInvalidFeeRate = errors.New("invalid fee rate")

// FeeSchedule is a reusable fee configuration referenced by pools.
// ProtocolFeeRate, FundFeeRate and CreatorFeeRate are fractions of the trade fee.
type FeeSchedule struct {
	Index           uint16  `json:"index"`
	TradeFeeRate    uint64  `json:"trade_fee_rate"`
	ProtocolFeeRate uint64  `json:"protocol_fee_rate"`
	FundFeeRate     uint64  `json:"fund_fee_rate"`
	CreatorFeeRate  uint64  `json:"creator_fee_rate"`
	PoolCreationFee uint64  `json:"pool_creation_fee"`
	Owner           Address `json:"owner"`
	FundOwner       Address `json:"fund_owner"`
	FeeReceiver     Address `json:"fee_receiver"`
}

// Validate checks the rate bounds.
func (f FeeSchedule) Validate() error {
	if f.TradeFeeRate >= FeeRateDenominator {
		return fmt.Errorf("%w: trade fee rate %d", ErrInvalidFeeRate, f.TradeFeeRate)
	}
	if f.ProtocolFeeRate > FeeRateDenominator || f.FundFeeRate > FeeRateDenominator || f.CreatorFeeRate > FeeRateDenominator {
		return fmt.Errorf("%w: share rate above %d", ErrInvalidFeeRate, FeeRateDenominator)
	}
	if f.ProtocolFeeRate+f.FundFeeRate+f.CreatorFeeRate > FeeRateDenominator {
		return fmt.Errorf("%w: protocol+fund+creator = %d", ErrInvalidFeeRate, f.ProtocolFeeRate+f.FundFeeRate+f.CreatorFeeRate)
	}
	if f.Owner.IsZero() {
		return fmt.Errorf("%w: owner", ErrInvalidAddress)
	}
	return nil
}
