package discount

import (
	"errors"

	"github.com/holiman/uint256"

	"cpamm/internal/curve"
	"cpamm/internal/model"
	"cpamm/internal/pricing"
)

var ErrInsufficientDiscountTokenBalance = errors.New("insufficient discount token balance")

// Quote is the discount-token settlement of one protocol fee. USD values are
// scaled by pricing.PriceScale.
type Quote struct {
	ProtocolFee   uint64        `json:"protocol_fee,string"`
	AssetPrice    pricing.Quote `json:"asset_price"`
	TokenPrice    pricing.Quote `json:"token_price"`
	FeeUSD        uint64        `json:"fee_usd,string"`
	DiscountedUSD uint64        `json:"discounted_usd,string"`
	Amount        uint64        `json:"amount,string"`
	// Skipped is set when the discounted fee rounds to zero discount tokens.
	Skipped bool `json:"skipped"`
}

// Settler converts protocol fees into discount-token amounts.
type Settler struct {
	resolver *pricing.Resolver
}

func NewSettler(resolver *pricing.Resolver) *Settler {
	return &Settler{resolver: resolver}
}

// Candidates lists every pool Quote may read when settling a fee paid in asset.
func (s *Settler) Candidates(asset model.Address, cfg model.DiscountConfig) []model.Address {
	return append(s.resolver.Candidates(asset), cfg.ReferencePools()...)
}

// Quote prices protocolFee (raw units of asset) in the discount token:
//
//	fee_usd    = protocol_fee * usd_price / 10^asset_decimals
//	discounted = fee_usd * (10_000 - rate) / 10_000
//	amount     = round_half_up(discounted * 10^token_decimals / token_price)
func (s *Settler) Quote(src pricing.PoolSource, protocolFee uint64, asset model.Address, assetDecimals uint8, cfg model.DiscountConfig, tokenDecimals uint8) (Quote, error) {
	q := Quote{ProtocolFee: protocolFee}
	if protocolFee == 0 {
		q.Skipped = true
		return q, nil
	}
	if cfg.DiscountRate > model.DiscountRateDenominator {
		return Quote{}, model.ErrInvalidDiscountRate
	}

	var err error
	if q.AssetPrice, err = s.resolver.USDPrice(src, asset); err != nil {
		return Quote{}, err
	}
	if q.TokenPrice, err = s.resolver.DiscountTokenPrice(src, cfg); err != nil {
		return Quote{}, err
	}

	assetScale, err := curve.Pow10(assetDecimals)
	if err != nil {
		return Quote{}, err
	}
	feeUSD := new(uint256.Int).Mul(uint256.NewInt(protocolFee), uint256.NewInt(q.AssetPrice.Price))
	feeUSD.Div(feeUSD, assetScale)
	if !feeUSD.IsUint64() {
		return Quote{}, curve.ErrOverflow
	}
	q.FeeUSD = feeUSD.Uint64()

	if q.DiscountedUSD, err = curve.MulDivFloor(q.FeeUSD, model.DiscountRateDenominator-cfg.DiscountRate, model.DiscountRateDenominator); err != nil {
		return Quote{}, err
	}

	tokenScale, err := curve.Pow10(tokenDecimals)
	if err != nil {
		return Quote{}, err
	}
	price := uint256.NewInt(q.TokenPrice.Price)
	amount, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(q.DiscountedUSD), tokenScale)
	if overflow {
		return Quote{}, curve.ErrOverflow
	}
	amount.Add(amount, new(uint256.Int).Rsh(price, 1))
	amount.Div(amount, price)
	if !amount.IsUint64() {
		return Quote{}, curve.ErrOverflow
	}
	q.Amount = amount.Uint64()
	q.Skipped = q.Amount == 0
	return q, nil
}
