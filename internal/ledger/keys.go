package ledger

import (
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"

	"cpamm/internal/model"
)

// Seed prefixes for every derived record kind.
var (
	SeedFeeSchedule    = []byte("fee_schedule")
	SeedPool           = []byte("pool")
	SeedVault          = []byte("pool_vault")
	SeedLPMint         = []byte("pool_lp_mint")
	SeedDiscountConfig = []byte("discount_config")
)

var ErrNoBump = errors.New("no bump yields a usable key")

// Deriver derives record keys inside one namespace.
type Deriver struct {
	namespace []byte
}

func NewDeriver(namespace string) Deriver {
	return Deriver{namespace: []byte(namespace)}
}

// FindKey hashes keccak256(seeds || bump || namespace), trying bumps from 255
// down and returning the first that is not the null identity.
func (d Deriver) FindKey(seeds ...[]byte) (model.Address, uint8, error) {
	parts := make([][]byte, 0, len(seeds)+2)
	parts = append(parts, seeds...)
	parts = append(parts, nil, d.namespace)
	for bump := 255; bump > 0; bump-- {
		parts[len(seeds)] = []byte{byte(bump)}
		var key model.Address
		copy(key[:], crypto.Keccak256(parts...))
		if !key.IsZero() {
			return key, uint8(bump), nil
		}
	}
	return model.ZeroAddress, 0, ErrNoBump
}

func (d Deriver) mustKey(seeds ...[]byte) model.Address {
	key, _, err := d.FindKey(seeds...)
	if err != nil {
		// keccak of distinct inputs never yields 255 consecutive zero hashes.
		panic(err)
	}
	return key
}

func (d Deriver) FeeScheduleKey(index uint16) model.Address {
	var raw [2]byte
	binary.LittleEndian.PutUint16(raw[:], index)
	return d.mustKey(SeedFeeSchedule, raw[:])
}

// PoolKey is symmetric in the two mints.
func (d Deriver) PoolKey(schedule, mintA, mintB model.Address) model.Address {
	if mintB.Less(mintA) {
		mintA, mintB = mintB, mintA
	}
	return d.mustKey(SeedPool, schedule[:], mintA[:], mintB[:])
}

func (d Deriver) VaultKey(pool, mint model.Address) model.Address {
	return d.mustKey(SeedVault, pool[:], mint[:])
}

func (d Deriver) LPMintKey(pool model.Address) model.Address {
	return d.mustKey(SeedLPMint, pool[:])
}

// DiscountConfigKey returns the config key for a discount mint and its bump.
func (d Deriver) DiscountConfigKey(mint model.Address) (model.Address, uint8) {
	key, bump, err := d.FindKey(SeedDiscountConfig, mint[:])
	if err != nil {
		panic(err)
	}
	return key, bump
}
