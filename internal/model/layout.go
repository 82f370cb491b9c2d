package model

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// Persisted record sizes. Each layout keeps the canonical field order first and
// appends the extension fields after it.
const (
	DiscountConfigCanonicalSize = 8 + 1 + 32 + 8 + 32 + 32 + 32 + 8
	DiscountConfigSize          = DiscountConfigCanonicalSize + 4*32
	FeeScheduleSize             = 2 + 5*8 + 3*32
	PoolSize                    = 5*32 + 8 + 4*8 + 32 + 32 + 2*8 + 2*8 + 2 + 1
	MintSize                    = 1
)

var ErrLayout = errors.New("invalid record layout")

// DiscountConfigDiscriminator tags encoded discount configs.
var DiscountConfigDiscriminator = discriminator("DiscountConfig")

func discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

type discountConfigAccount struct {
	Bump                uint8   `borsh:"bump"`
	Mint                Address `borsh:"mint"`
	DiscountRate        uint64  `borsh:"discount_rate"`
	Authority           Address `borsh:"authority"`
	Treasury            Address `borsh:"treasury"`
	TokenUSDPool        Address `borsh:"token_usd_pool"`
	DiscountTokenPerUSD uint64  `borsh:"discount_token_per_usd"`
}

// discountConfigRoutes follows the canonical record. Records written without
// it decode with zero routes.
type discountConfigRoutes struct {
	USDMint         Address `borsh:"usd_mint"`
	BridgeMint      Address `borsh:"bridge_mint"`
	BridgeUSDPool   Address `borsh:"bridge_usd_pool"`
	TokenBridgePool Address `borsh:"token_bridge_pool"`
}

type feeScheduleAccount struct {
	Index           uint16  `borsh:"index"`
	TradeFeeRate    uint64  `borsh:"trade_fee_rate"`
	ProtocolFeeRate uint64  `borsh:"protocol_fee_rate"`
	FundFeeRate     uint64  `borsh:"fund_fee_rate"`
	CreatorFeeRate  uint64  `borsh:"creator_fee_rate"`
	PoolCreationFee uint64  `borsh:"pool_creation_fee"`
	Owner           Address `borsh:"owner"`
	FundOwner       Address `borsh:"fund_owner"`
	FeeReceiver     Address `borsh:"fee_receiver"`
}

type poolAccount struct {
	MintA         Address `borsh:"mint_a"`
	MintB         Address `borsh:"mint_b"`
	VaultA        Address `borsh:"vault_a"`
	VaultB        Address `borsh:"vault_b"`
	LPMint        Address `borsh:"lp_mint"`
	LPSupply      uint64  `borsh:"lp_supply"`
	ProtocolFeesA uint64  `borsh:"protocol_fees_a"`
	ProtocolFeesB uint64  `borsh:"protocol_fees_b"`
	FundFeesA     uint64  `borsh:"fund_fees_a"`
	FundFeesB     uint64  `borsh:"fund_fees_b"`
	Creator       Address `borsh:"creator"`
	FeeSchedule   Address `borsh:"fee_schedule"`
	ReserveA      uint64  `borsh:"reserve_a"`
	ReserveB      uint64  `borsh:"reserve_b"`
	CreatorFeesA  uint64  `borsh:"creator_fees_a"`
	CreatorFeesB  uint64  `borsh:"creator_fees_b"`
	DecimalsA     uint8   `borsh:"decimals_a"`
	DecimalsB     uint8   `borsh:"decimals_b"`
	Status        uint8   `borsh:"status"`
}

func encodeBorsh(buf *bytes.Buffer, values ...interface{}) error {
	enc := bin.NewBorshEncoder(buf)
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

func decodeBorsh(dec *bin.Decoder, v interface{}) error {
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrLayout, err)
	}
	return nil
}

func noTrailing(dec *bin.Decoder) error {
	if n := dec.Remaining(); n > 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrLayout, n)
	}
	return nil
}

// EncodeDiscountConfig writes the discriminator, the canonical discount config
// and its price routes.
func EncodeDiscountConfig(c DiscountConfig) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, DiscountConfigSize))
	buf.Write(DiscountConfigDiscriminator[:])
	err := encodeBorsh(buf,
		discountConfigAccount{
			Bump:                c.Bump,
			Mint:                c.Mint,
			DiscountRate:        c.DiscountRate,
			Authority:           c.Authority,
			Treasury:            c.Treasury,
			TokenUSDPool:        c.TokenUSDPool,
			DiscountTokenPerUSD: c.DiscountTokenPerUSD,
		},
		discountConfigRoutes{
			USDMint:         c.USDMint,
			BridgeMint:      c.BridgeMint,
			BridgeUSDPool:   c.BridgeUSDPool,
			TokenBridgePool: c.TokenBridgePool,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("encode discount config: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDiscountConfig accepts the full record or one that ends after
// discount_token_per_usd.
func DecodeDiscountConfig(data []byte) (DiscountConfig, error) {
	if len(data) < 8 || !bytes.Equal(data[:8], DiscountConfigDiscriminator[:]) {
		return DiscountConfig{}, fmt.Errorf("%w: discount config discriminator mismatch", ErrLayout)
	}
	dec := bin.NewBorshDecoder(data[8:])
	var acc discountConfigAccount
	if err := decodeBorsh(dec, &acc); err != nil {
		return DiscountConfig{}, err
	}
	c := DiscountConfig{
		Bump:                acc.Bump,
		Mint:                acc.Mint,
		DiscountRate:        acc.DiscountRate,
		Authority:           acc.Authority,
		Treasury:            acc.Treasury,
		TokenUSDPool:        acc.TokenUSDPool,
		DiscountTokenPerUSD: acc.DiscountTokenPerUSD,
	}
	if !dec.HasRemaining() {
		return c, nil
	}

	var routes discountConfigRoutes
	if err := decodeBorsh(dec, &routes); err != nil {
		return DiscountConfig{}, err
	}
	if err := noTrailing(dec); err != nil {
		return DiscountConfig{}, err
	}
	c.USDMint = routes.USDMint
	c.BridgeMint = routes.BridgeMint
	c.BridgeUSDPool = routes.BridgeUSDPool
	c.TokenBridgePool = routes.TokenBridgePool
	return c, nil
}

func EncodeFeeSchedule(f FeeSchedule) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, FeeScheduleSize))
	if err := encodeBorsh(buf, feeScheduleAccount(f)); err != nil {
		return nil, fmt.Errorf("encode fee schedule: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeFeeSchedule(data []byte) (FeeSchedule, error) {
	dec := bin.NewBorshDecoder(data)
	var acc feeScheduleAccount
	if err := decodeBorsh(dec, &acc); err != nil {
		return FeeSchedule{}, err
	}
	if err := noTrailing(dec); err != nil {
		return FeeSchedule{}, err
	}
	return FeeSchedule(acc), nil
}

// EncodePool writes the pool layout. The pool key is not part of the record.
func EncodePool(p Pool) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, PoolSize))
	err := encodeBorsh(buf, poolAccount{
		MintA:         p.MintA,
		MintB:         p.MintB,
		VaultA:        p.VaultA,
		VaultB:        p.VaultB,
		LPMint:        p.LPMint,
		LPSupply:      p.LPSupply,
		ProtocolFeesA: p.ProtocolFeesA,
		ProtocolFeesB: p.ProtocolFeesB,
		FundFeesA:     p.FundFeesA,
		FundFeesB:     p.FundFeesB,
		Creator:       p.Creator,
		FeeSchedule:   p.FeeSchedule,
		ReserveA:      p.ReserveA,
		ReserveB:      p.ReserveB,
		CreatorFeesA:  p.CreatorFeesA,
		CreatorFeesB:  p.CreatorFeesB,
		DecimalsA:     p.DecimalsA,
		DecimalsB:     p.DecimalsB,
		Status:        uint8(p.Status),
	})
	if err != nil {
		return nil, fmt.Errorf("encode pool %s: %w", p.Key, err)
	}
	return buf.Bytes(), nil
}

func DecodePool(key Address, data []byte) (Pool, error) {
	dec := bin.NewBorshDecoder(data)
	var acc poolAccount
	if err := decodeBorsh(dec, &acc); err != nil {
		return Pool{}, err
	}
	if err := noTrailing(dec); err != nil {
		return Pool{}, err
	}
	return Pool{
		Key:           key,
		FeeSchedule:   acc.FeeSchedule,
		MintA:         acc.MintA,
		MintB:         acc.MintB,
		DecimalsA:     acc.DecimalsA,
		DecimalsB:     acc.DecimalsB,
		VaultA:        acc.VaultA,
		VaultB:        acc.VaultB,
		LPMint:        acc.LPMint,
		ReserveA:      acc.ReserveA,
		ReserveB:      acc.ReserveB,
		LPSupply:      acc.LPSupply,
		ProtocolFeesA: acc.ProtocolFeesA,
		ProtocolFeesB: acc.ProtocolFeesB,
		FundFeesA:     acc.FundFeesA,
		FundFeesB:     acc.FundFeesB,
		CreatorFeesA:  acc.CreatorFeesA,
		CreatorFeesB:  acc.CreatorFeesB,
		Creator:       acc.Creator,
		Status:        PoolStatus(acc.Status),
	}, nil
}

func EncodeMint(m Mint) []byte {
	return []byte{m.Decimals}
}

func DecodeMint(key Address, data []byte) (Mint, error) {
	if len(data) != MintSize {
		return Mint{}, fmt.Errorf("%w: mint record is %d bytes", ErrLayout, len(data))
	}
	return Mint{Address: key, Decimals: data[0]}, nil
}
