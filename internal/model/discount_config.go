package model

import (
	"errors"
	"fmt"
)

// DiscountRateDenominator is the basis-point base of DiscountConfig.DiscountRate.
const DiscountRateDenominator = 10_000

// ManualRateScale scales DiscountConfig.DiscountTokenPerUSD (whole tokens per USD).
const ManualRateScale = 1_000_000

var ErrInvalidDiscountRate = errors.New("invalid discount rate")

// DiscountConfig configures protocol-fee settlement in a discount token.
// TokenUSDPool pairs the discount token with USDMint directly. TokenBridgePool and
// BridgeUSDPool form the one-hop route through BridgeMint.
type DiscountConfig struct {
	Bump                uint8   `json:"bump"`
	Mint                Address `json:"mint"`
	DiscountRate        uint64  `json:"discount_rate"`
	Authority           Address `json:"authority"`
	Treasury            Address `json:"treasury"`
	TokenUSDPool        Address `json:"token_usd_pool"`
	DiscountTokenPerUSD uint64  `json:"discount_token_per_usd"`
	USDMint             Address `json:"usd_mint"`
	BridgeMint          Address `json:"bridge_mint"`
	BridgeUSDPool       Address `json:"bridge_usd_pool"`
	TokenBridgePool     Address `json:"token_bridge_pool"`
}

func (c DiscountConfig) Validate() error {
	if c.DiscountRate > DiscountRateDenominator {
		return fmt.Errorf("%w: %d", ErrInvalidDiscountRate, c.DiscountRate)
	}
	if c.Mint.IsZero() {
		return fmt.Errorf("%w: discount mint", ErrInvalidAddress)
	}
	if c.Authority.IsZero() {
		return fmt.Errorf("%w: authority", ErrInvalidAddress)
	}
	if c.Treasury.IsZero() {
		return fmt.Errorf("%w: treasury", ErrInvalidAddress)
	}
	return nil
}

// ReferencePools lists the configured pricing pools that are set.
func (c DiscountConfig) ReferencePools() []Address {
	out := make([]Address, 0, 3)
	for _, key := range []Address{c.TokenUSDPool, c.TokenBridgePool, c.BridgeUSDPool} {
		if !key.IsZero() {
			out = append(out, key)
		}
	}
	return out
}
