package model

import (
	"errors"
	"fmt"
)

var ErrUnknownAsset = errors.New("asset not in pool")

// PoolStatus is a bitmask of disabled operations.
type PoolStatus uint8

const (
	StatusSwapDisabled PoolStatus = 1 << iota
	StatusDepositDisabled
	StatusWithdrawDisabled
)

// Allows reports whether none of the bits in op are disabled.
func (s PoolStatus) Allows(op PoolStatus) bool {
	return s&op == 0
}

// Side selects one of the two pool assets.
type Side uint8

const (
	SideA Side = iota
	SideB
)

func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s Side) String() string {
	if s == SideA {
		return "a"
	}
	return "b"
}

// Pool is the record of one constant-product market.
// ReserveA/ReserveB are vault balances, which include accrued fee claims.
// LPSupply counts redeemable shares only; the permanently locked shares are not part of it.
type Pool struct {
	Key           Address    `json:"key"`
	FeeSchedule   Address    `json:"fee_schedule"`
	MintA         Address    `json:"mint_a"`
	MintB         Address    `json:"mint_b"`
	DecimalsA     uint8      `json:"decimals_a"`
	DecimalsB     uint8      `json:"decimals_b"`
	VaultA        Address    `json:"vault_a"`
	VaultB        Address    `json:"vault_b"`
	LPMint        Address    `json:"lp_mint"`
	ReserveA      uint64     `json:"reserve_a,string"`
	ReserveB      uint64     `json:"reserve_b,string"`
	LPSupply      uint64     `json:"lp_supply,string"`
	ProtocolFeesA uint64     `json:"protocol_fees_a,string"`
	ProtocolFeesB uint64     `json:"protocol_fees_b,string"`
	FundFeesA     uint64     `json:"fund_fees_a,string"`
	FundFeesB     uint64     `json:"fund_fees_b,string"`
	CreatorFeesA  uint64     `json:"creator_fees_a,string"`
	CreatorFeesB  uint64     `json:"creator_fees_b,string"`
	Creator       Address    `json:"creator"`
	Status        PoolStatus `json:"status"`
}

// SideOf returns which side of the pool holds mint.
func (p Pool) SideOf(mint Address) (Side, error) {
	switch mint {
	case p.MintA:
		return SideA, nil
	case p.MintB:
		return SideB, nil
	default:
		return SideA, fmt.Errorf("%w: %s", ErrUnknownAsset, mint)
	}
}

func (p Pool) Mint(side Side) Address {
	if side == SideA {
		return p.MintA
	}
	return p.MintB
}

func (p Pool) Decimals(side Side) uint8 {
	if side == SideA {
		return p.DecimalsA
	}
	return p.DecimalsB
}

// Claims returns the accrued protocol, fund and creator fees held in one vault.
func (p Pool) Claims(side Side) uint64 {
	if side == SideA {
		return p.ProtocolFeesA + p.FundFeesA + p.CreatorFeesA
	}
	return p.ProtocolFeesB + p.FundFeesB + p.CreatorFeesB
}

func (p Pool) Reserve(side Side) uint64 {
	if side == SideA {
		return p.ReserveA
	}
	return p.ReserveB
}

// TradingReserve is the vault balance minus the fee claims it holds.
func (p Pool) TradingReserve(side Side) (uint64, error) {
	reserve, claims := p.Reserve(side), p.Claims(side)
	if claims > reserve {
		return 0, fmt.Errorf("pool %s side %s: claims %d exceed reserve %d", p.Key, side, claims, reserve)
	}
	return reserve - claims, nil
}

// TradingReserves returns both trading reserves.
func (p Pool) TradingReserves() (uint64, uint64, error) {
	a, err := p.TradingReserve(SideA)
	if err != nil {
		return 0, 0, err
	}
	b, err := p.TradingReserve(SideB)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// HasLiquidity reports whether the pool can be traded against or priced from.
func (p Pool) HasLiquidity() bool {
	if p.LPSupply == 0 {
		return false
	}
	a, b, err := p.TradingReserves()
	return err == nil && a > 0 && b > 0
}

// Contains reports whether the pool trades mint.
func (p Pool) Contains(mint Address) bool {
	return mint == p.MintA || mint == p.MintB
}

// Mint is a registered asset and its decimals.
type Mint struct {
	Address  Address `json:"address"`
	Decimals uint8   `json:"decimals"`
}
