package pricing

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"cpamm/internal/curve"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

// PriceScale is the fixed-point scale of every price.
const PriceScale = 1_000_000_000

var ErrNoPricePath = errors.New("no price path")

// PoolSource gives read access to pool records.
type PoolSource interface {
	Pool(key model.Address) (model.Pool, bool)
}

// Path names how a price was obtained.
type Path string

const (
	PathIdentity Path = "identity"
	PathDirect   Path = "direct"
	PathBridge   Path = "bridge"
	PathManual   Path = "manual"
)

// Quote is a price together with the pools it was read from.
type Quote struct {
	Price uint64          `json:"price,string"`
	Path  Path            `json:"path"`
	Pools []model.Address `json:"pools,omitempty"`
}

// SpotPrice returns the value of one whole base token in whole quote tokens,
// scaled by PriceScale: quote*1e9*10^base_dec / (base*10^quote_dec).
func SpotPrice(p model.Pool, base model.Address) (uint64, error) {
	baseSide, err := p.SideOf(base)
	if err != nil {
		return 0, err
	}
	quoteSide := baseSide.Other()
	baseReserve, err := p.TradingReserve(baseSide)
	if err != nil {
		return 0, err
	}
	quoteReserve, err := p.TradingReserve(quoteSide)
	if err != nil {
		return 0, err
	}
	if baseReserve == 0 || quoteReserve == 0 {
		return 0, curve.ErrZeroLiquidity
	}

	baseScale, err := curve.Pow10(p.Decimals(baseSide))
	if err != nil {
		return 0, err
	}
	quoteScale, err := curve.Pow10(p.Decimals(quoteSide))
	if err != nil {
		return 0, err
	}

	num := new(uint256.Int).Mul(uint256.NewInt(quoteReserve), uint256.NewInt(PriceScale))
	if _, overflow := num.MulOverflow(num, baseScale); overflow {
		return 0, curve.ErrOverflow
	}
	den, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(baseReserve), quoteScale)
	if overflow {
		return 0, curve.ErrOverflow
	}
	price := num.Div(num, den)
	if !price.IsUint64() {
		return 0, curve.ErrOverflow
	}
	return price.Uint64(), nil
}

// Compose chains two prices: (A in B) * (B in C) = A in C.
func Compose(first, second uint64) (uint64, error) {
	return curve.MulDivFloor(first, second, PriceScale)
}

// Config selects the reference assets and the fee schedules searched for reference pools.
type Config struct {
	USDMint            model.Address
	BridgeMint         model.Address
	ReferenceSchedules []model.Address
}

// Resolver prices assets in USD from pool reserves. Reference pools are found by
// key derivation over the configured schedules, never by scanning.
type Resolver struct {
	cfg     Config
	deriver ledger.Deriver
}

func NewResolver(cfg Config, deriver ledger.Deriver) *Resolver {
	return &Resolver{cfg: cfg, deriver: deriver}
}

func (r *Resolver) Config() Config {
	return r.cfg
}

// Candidates lists every pool key USDPrice may read for asset.
func (r *Resolver) Candidates(asset model.Address) []model.Address {
	out := make([]model.Address, 0, 3*len(r.cfg.ReferenceSchedules))
	for _, schedule := range r.cfg.ReferenceSchedules {
		out = append(out, r.deriver.PoolKey(schedule, asset, r.cfg.USDMint))
		if !r.cfg.BridgeMint.IsZero() {
			out = append(out, r.deriver.PoolKey(schedule, asset, r.cfg.BridgeMint))
			out = append(out, r.deriver.PoolKey(schedule, r.cfg.BridgeMint, r.cfg.USDMint))
		}
	}
	return out
}

func (r *Resolver) findPool(src PoolSource, x, y model.Address) (model.Pool, bool) {
	for _, schedule := range r.cfg.ReferenceSchedules {
		p, ok := src.Pool(r.deriver.PoolKey(schedule, x, y))
		if ok && p.HasLiquidity() {
			return p, true
		}
	}
	return model.Pool{}, false
}

// USDPrice returns the USD value of one whole unit of asset. It uses the asset
// itself when it is the USD mint, then a direct asset/USD pool, then a route
// through the bridge mint.
func (r *Resolver) USDPrice(src PoolSource, asset model.Address) (Quote, error) {
	if r.cfg.USDMint.IsZero() {
		return Quote{}, fmt.Errorf("%w: usd mint not configured", ErrNoPricePath)
	}
	if asset == r.cfg.USDMint {
		return Quote{Price: PriceScale, Path: PathIdentity}, nil
	}

	if p, ok := r.findPool(src, asset, r.cfg.USDMint); ok {
		price, err := SpotPrice(p, asset)
		if err != nil {
			return Quote{}, err
		}
		return Quote{Price: price, Path: PathDirect, Pools: []model.Address{p.Key}}, nil
	}

	if !r.cfg.BridgeMint.IsZero() && asset != r.cfg.BridgeMint {
		hop, okHop := r.findPool(src, asset, r.cfg.BridgeMint)
		bridge, okBridge := r.findPool(src, r.cfg.BridgeMint, r.cfg.USDMint)
		if okHop && okBridge {
			price, err := r.bridgePrice(hop, bridge, asset, r.cfg.BridgeMint)
			if err != nil {
				return Quote{}, err
			}
			return Quote{Price: price, Path: PathBridge, Pools: []model.Address{hop.Key, bridge.Key}}, nil
		}
	}

	return Quote{}, fmt.Errorf("%w: %s", ErrNoPricePath, asset)
}

func (r *Resolver) bridgePrice(hop, bridge model.Pool, asset, bridgeMint model.Address) (uint64, error) {
	inBridge, err := SpotPrice(hop, asset)
	if err != nil {
		return 0, err
	}
	bridgeUSD, err := SpotPrice(bridge, bridgeMint)
	if err != nil {
		return 0, err
	}
	return Compose(inBridge, bridgeUSD)
}

// DiscountTokenPrice returns the USD value of one whole discount token from the
// configured token/USD pool, then the token/bridge and bridge/USD pools, then the
// manual rate.
func (r *Resolver) DiscountTokenPrice(src PoolSource, cfg model.DiscountConfig) (Quote, error) {
	usd := cfg.USDMint
	if usd.IsZero() {
		usd = r.cfg.USDMint
	}
	bridgeMint := cfg.BridgeMint
	if bridgeMint.IsZero() {
		bridgeMint = r.cfg.BridgeMint
	}

	if p, ok := liquidPool(src, cfg.TokenUSDPool); ok && p.Contains(cfg.Mint) && p.Contains(usd) {
		price, err := SpotPrice(p, cfg.Mint)
		if err != nil {
			return Quote{}, err
		}
		if price > 0 {
			return Quote{Price: price, Path: PathDirect, Pools: []model.Address{p.Key}}, nil
		}
	}

	hop, okHop := liquidPool(src, cfg.TokenBridgePool)
	bridge, okBridge := liquidPool(src, cfg.BridgeUSDPool)
	if okHop && okBridge && hop.Contains(cfg.Mint) && hop.Contains(bridgeMint) && bridge.Contains(bridgeMint) && bridge.Contains(usd) {
		price, err := r.bridgePrice(hop, bridge, cfg.Mint, bridgeMint)
		if err != nil {
			return Quote{}, err
		}
		if price > 0 {
			return Quote{Price: price, Path: PathBridge, Pools: []model.Address{hop.Key, bridge.Key}}, nil
		}
	}

	if cfg.DiscountTokenPerUSD > 0 {
		price, err := curve.MulDivFloor(PriceScale, model.ManualRateScale, cfg.DiscountTokenPerUSD)
		if err != nil {
			return Quote{}, err
		}
		if price > 0 {
			return Quote{Price: price, Path: PathManual}, nil
		}
	}

	return Quote{}, fmt.Errorf("%w: discount token %s", ErrNoPricePath, cfg.Mint)
}

func liquidPool(src PoolSource, key model.Address) (model.Pool, bool) {
	if key.IsZero() {
		return model.Pool{}, false
	}
	p, ok := src.Pool(key)
	if !ok || !p.HasLiquidity() {
		return model.Pool{}, false
	}
	return p, true
}
