package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func TestDiscountConfigLayout(t *testing.T) {
	cfg := DiscountConfig{
		Bump:                254,
		Mint:                Address{1},
		DiscountRate:        2_000,
		Authority:           Address{2},
		Treasury:            Address{3},
		TokenUSDPool:        Address{4},
		DiscountTokenPerUSD: 2_500_000,
		USDMint:             Address{5},
		BridgeMint:          Address{6},
		BridgeUSDPool:       Address{7},
		TokenBridgePool:     Address{8},
	}

	data, err := EncodeDiscountConfig(cfg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) != DiscountConfigSize {
		t.Fatalf("size mismatch: %d != %d", len(data), DiscountConfigSize)
	}
	if !bytes.Equal(data[:8], DiscountConfigDiscriminator[:]) {
		t.Fatalf("discriminator not written first")
	}
	if data[8] != 254 {
		t.Fatalf("bump at offset 8: %d", data[8])
	}
	if got := binary.LittleEndian.Uint64(data[41:49]); got != 2_000 {
		t.Fatalf("discount rate at offset 41: %d", got)
	}
	if got := binary.LittleEndian.Uint64(data[145:153]); got != 2_500_000 {
		t.Fatalf("manual rate at offset 145: %d", got)
	}

	decoded, err := DecodeDiscountConfig(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", cfg, decoded)
	}
}

func TestDiscountConfigLayoutRejectsWrongDiscriminator(t *testing.T) {
	data, err := EncodeDiscountConfig(DiscountConfig{Mint: Address{1}})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	data[0] ^= 0xff
	if _, err := DecodeDiscountConfig(data); !errors.Is(err, ErrLayout) {
		t.Fatalf("expected layout error, got %v", err)
	}
}

func TestDiscountConfigCanonicalRecord(t *testing.T) {
	cfg := DiscountConfig{
		Bump:                255,
		Mint:                Address{1},
		DiscountRate:        2_500,
		Authority:           Address{2},
		Treasury:            Address{3},
		TokenUSDPool:        Address{4},
		DiscountTokenPerUSD: 40_000_000,
		USDMint:             Address{5},
		BridgeMint:          Address{6},
	}
	data, err := EncodeDiscountConfig(cfg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	canonical := data[:DiscountConfigCanonicalSize]

	decoded, err := DecodeDiscountConfig(canonical)
	if err != nil {
		t.Fatalf("decode canonical record: %v", err)
	}
	cfg.USDMint, cfg.BridgeMint = Address{}, Address{}
	if !reflect.DeepEqual(cfg, decoded) {
		t.Fatalf("canonical mismatch: %+v != %+v", cfg, decoded)
	}

	if _, err := DecodeDiscountConfig(canonical[:len(canonical)-1]); !errors.Is(err, ErrLayout) {
		t.Fatalf("expected layout error for short record, got %v", err)
	}
	if _, err := DecodeDiscountConfig(data[:DiscountConfigCanonicalSize+32]); !errors.Is(err, ErrLayout) {
		t.Fatalf("expected layout error for partial routes, got %v", err)
	}
	if _, err := DecodeDiscountConfig(append(data, 0)); !errors.Is(err, ErrLayout) {
		t.Fatalf("expected layout error for trailing bytes, got %v", err)
	}
}

func TestFeeScheduleLayout(t *testing.T) {
	f := FeeSchedule{
		Index:           3,
		TradeFeeRate:    2_500,
		ProtocolFeeRate: 120_000,
		FundFeeRate:     40_000,
		CreatorFeeRate:  10_000,
		PoolCreationFee: 150_000_000,
		Owner:           Address{1},
		FundOwner:       Address{2},
		FeeReceiver:     Address{3},
	}

	data, err := EncodeFeeSchedule(f)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) != FeeScheduleSize {
		t.Fatalf("size mismatch: %d != %d", len(data), FeeScheduleSize)
	}
	if got := binary.LittleEndian.Uint16(data[0:2]); got != 3 {
		t.Fatalf("index at offset 0: %d", got)
	}
	if got := binary.LittleEndian.Uint64(data[2:10]); got != 2_500 {
		t.Fatalf("trade fee rate at offset 2: %d", got)
	}

	decoded, err := DecodeFeeSchedule(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !reflect.DeepEqual(f, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", f, decoded)
	}

	if _, err := DecodeFeeSchedule(data[:len(data)-1]); !errors.Is(err, ErrLayout) {
		t.Fatalf("expected layout error for short record, got %v", err)
	}
}

func TestPoolLayout(t *testing.T) {
	p := Pool{
		Key:           Address{99},
		FeeSchedule:   Address{10},
		MintA:         Address{1},
		MintB:         Address{2},
		DecimalsA:     9,
		DecimalsB:     6,
		VaultA:        Address{3},
		VaultB:        Address{4},
		LPMint:        Address{5},
		ReserveA:      1_000_000_000,
		ReserveB:      150_000_000,
		LPSupply:      387_298_234,
		ProtocolFeesA: 11,
		ProtocolFeesB: 12,
		FundFeesA:     13,
		FundFeesB:     14,
		CreatorFeesA:  15,
		CreatorFeesB:  16,
		Creator:       Address{6},
		Status:        StatusDepositDisabled,
	}

	data, err := EncodePool(p)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) != PoolSize {
		t.Fatalf("size mismatch: %d != %d", len(data), PoolSize)
	}
	if got := binary.LittleEndian.Uint64(data[160:168]); got != p.LPSupply {
		t.Fatalf("lp supply at offset 160: %d", got)
	}

	decoded, err := DecodePool(p.Key, data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !reflect.DeepEqual(p, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", p, decoded)
	}

	if _, err := DecodePool(p.Key, append(data, 0)); !errors.Is(err, ErrLayout) {
		t.Fatalf("expected layout error for trailing bytes, got %v", err)
	}
}
