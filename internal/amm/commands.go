package amm

import (
	"fmt"
	"strconv"
	"strings"

	"cpamm/internal/model"
)

// FeeScheduleUpdate is one typed mutation of a fee schedule.
type FeeScheduleUpdate interface {
	applyFeeSchedule(f *model.FeeSchedule) error
}

type SetTradeFeeRate struct{ Rate uint64 }
type SetProtocolFeeRate struct{ Rate uint64 }
type SetFundFeeRate struct{ Rate uint64 }
type SetCreatorFeeRate struct{ Rate uint64 }
type SetPoolCreationFee struct{ Fee uint64 }
type SetOwner struct{ Owner model.Address }
type SetFundOwner struct{ FundOwner model.Address }
type SetFeeReceiver struct{ Receiver model.Address }

func (c SetTradeFeeRate) applyFeeSchedule(f *model.FeeSchedule) error {
	f.TradeFeeRate = c.Rate
	return nil
}

func (c SetProtocolFeeRate) applyFeeSchedule(f *model.FeeSchedule) error {
	f.ProtocolFeeRate = c.Rate
	return nil
}

func (c SetFundFeeRate) applyFeeSchedule(f *model.FeeSchedule) error {
	f.FundFeeRate = c.Rate
	return nil
}

func (c SetCreatorFeeRate) applyFeeSchedule(f *model.FeeSchedule) error {
	f.CreatorFeeRate = c.Rate
	return nil
}

func (c SetPoolCreationFee) applyFeeSchedule(f *model.FeeSchedule) error {
	f.PoolCreationFee = c.Fee
	return nil
}

func (c SetOwner) applyFeeSchedule(f *model.FeeSchedule) error {
	if c.Owner.IsZero() {
		return fmt.Errorf("%w: owner", ErrInvalidAddress)
	}
	f.Owner = c.Owner
	return nil
}

func (c SetFundOwner) applyFeeSchedule(f *model.FeeSchedule) error {
	if c.FundOwner.IsZero() {
		return fmt.Errorf("%w: fund owner", ErrInvalidAddress)
	}
	f.FundOwner = c.FundOwner
	return nil
}

func (c SetFeeReceiver) applyFeeSchedule(f *model.FeeSchedule) error {
	if c.Receiver.IsZero() {
		return fmt.Errorf("%w: fee receiver", ErrInvalidAddress)
	}
	f.FeeReceiver = c.Receiver
	return nil
}

// DiscountConfigUpdate is one typed mutation of a discount config.
type DiscountConfigUpdate interface {
	applyDiscountConfig(c *model.DiscountConfig) error
}

type SetDiscountRate struct{ Rate uint64 }
type SetTreasury struct{ Treasury model.Address }
type SetAuthority struct{ Authority model.Address }
type SetTokenUSDPool struct{ Pool model.Address }
type SetDiscountTokenPerUSD struct{ Rate uint64 }

// SetBridgePools replaces the one-hop route. Zero keys disable it.
type SetBridgePools struct {
	TokenBridgePool model.Address
	BridgeUSDPool   model.Address
}

// SetReferenceMints overrides the engine's USD and bridge mints for this config.
type SetReferenceMints struct {
	USDMint    model.Address
	BridgeMint model.Address
}

func (u SetDiscountRate) applyDiscountConfig(c *model.DiscountConfig) error {
	c.DiscountRate = u.Rate
	return nil
}

func (u SetTreasury) applyDiscountConfig(c *model.DiscountConfig) error {
	if u.Treasury.IsZero() {
		return fmt.Errorf("%w: treasury", ErrInvalidAddress)
	}
	c.Treasury = u.Treasury
	return nil
}

func (u SetAuthority) applyDiscountConfig(c *model.DiscountConfig) error {
	if u.Authority.IsZero() {
		return fmt.Errorf("%w: authority", ErrInvalidAddress)
	}
	c.Authority = u.Authority
	return nil
}

func (u SetTokenUSDPool) applyDiscountConfig(c *model.DiscountConfig) error {
	c.TokenUSDPool = u.Pool
	return nil
}

func (u SetDiscountTokenPerUSD) applyDiscountConfig(c *model.DiscountConfig) error {
	c.DiscountTokenPerUSD = u.Rate
	return nil
}

func (u SetBridgePools) applyDiscountConfig(c *model.DiscountConfig) error {
	c.TokenBridgePool = u.TokenBridgePool
	c.BridgeUSDPool = u.BridgeUSDPool
	return nil
}

func (u SetReferenceMints) applyDiscountConfig(c *model.DiscountConfig) error {
	c.USDMint = u.USDMint
	c.BridgeMint = u.BridgeMint
	return nil
}

// ParseFeeScheduleUpdate builds an update from a field name and its text value.
func ParseFeeScheduleUpdate(field, value string) (FeeScheduleUpdate, error) {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "trade_fee_rate":
		n, err := parseUint(value)
		return SetTradeFeeRate{Rate: n}, err
	case "protocol_fee_rate":
		n, err := parseUint(value)
		return SetProtocolFeeRate{Rate: n}, err
	case "fund_fee_rate":
		n, err := parseUint(value)
		return SetFundFeeRate{Rate: n}, err
	case "creator_fee_rate":
		n, err := parseUint(value)
		return SetCreatorFeeRate{Rate: n}, err
	case "pool_creation_fee":
		n, err := parseUint(value)
		return SetPoolCreationFee{Fee: n}, err
	case "owner":
		a, err := model.ParseAddress(value)
		return SetOwner{Owner: a}, err
	case "fund_owner":
		a, err := model.ParseAddress(value)
		return SetFundOwner{FundOwner: a}, err
	case "fee_receiver":
		a, err := model.ParseAddress(value)
		return SetFeeReceiver{Receiver: a}, err
	default:
		return nil, fmt.Errorf("unknown fee schedule field %q", field)
	}
}

// ParseDiscountConfigUpdate builds an update from a field name and its text value.
// bridge_pools takes "token_bridge_pool,bridge_usd_pool" and reference_mints
// takes "usd_mint,bridge_mint".
func ParseDiscountConfigUpdate(field, value string) (DiscountConfigUpdate, error) {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "discount_rate":
		n, err := parseUint(value)
		return SetDiscountRate{Rate: n}, err
	case "treasury":
		a, err := model.ParseAddress(value)
		return SetTreasury{Treasury: a}, err
	case "authority":
		a, err := model.ParseAddress(value)
		return SetAuthority{Authority: a}, err
	case "token_usd_pool", "price_reference":
		a, err := model.ParseAddress(value)
		return SetTokenUSDPool{Pool: a}, err
	case "discount_token_per_usd":
		n, err := parseUint(value)
		return SetDiscountTokenPerUSD{Rate: n}, err
	case "bridge_pools":
		hop, bridge, err := parseAddressPair(field, value)
		return SetBridgePools{TokenBridgePool: hop, BridgeUSDPool: bridge}, err
	case "reference_mints":
		usd, bridge, err := parseAddressPair(field, value)
		return SetReferenceMints{USDMint: usd, BridgeMint: bridge}, err
	default:
		return nil, fmt.Errorf("unknown discount config field %q", field)
	}
}

func parseAddressPair(field, value string) (model.Address, model.Address, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return model.Address{}, model.Address{}, fmt.Errorf("%s needs two comma-separated keys", field)
	}
	first, err := model.ParseAddress(strings.TrimSpace(parts[0]))
	if err != nil {
		return model.Address{}, model.Address{}, err
	}
	second, err := model.ParseAddress(strings.TrimSpace(parts[1]))
	if err != nil {
		return model.Address{}, model.Address{}, err
	}
	return first, second, nil
}

func parseUint(value string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", value, err)
	}
	return n, nil
}
