package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestSwapEventDataJSONStringFields(t *testing.T) {
	payload := SwapEventData{
		InputMint:   Address{1},
		OutputMint:  Address{2},
		AmountIn:    18_000_000_000_000_000_000,
		AmountOut:   42,
		TradeFee:    45_000_000_000_000_000,
		ProtocolFee: 9_000_000_000_000_000,
		ReserveA:    1,
		ReserveB:    2,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"amount_in", "amount_out", "trade_fee", "protocol_fee", "reserve_a"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
	if decoded["input_mint"] != (Address{1}).String() {
		t.Fatalf("input_mint should be base58, got %v", decoded["input_mint"])
	}
}

func TestEventJSONRoundTrip(t *testing.T) {
	status := StatusSwapDisabled | StatusWithdrawDisabled
	events := []Event{
		{
			Seq:       7,
			Kind:      EventSwap,
			Pool:      Address{9},
			Actor:     Address{3},
			Timestamp: 1700000000,
			Swap: &SwapEventData{
				InputMint:      Address{1},
				OutputMint:     Address{2},
				AmountIn:       1_000_000,
				AmountOut:      996_006,
				TradeFee:       2_500,
				ProtocolFee:    500,
				LPFee:          2_000,
				DiscountMint:   Address{5},
				DiscountAmount: 123,
				ReserveA:       10_000_000,
				ReserveB:       9_003_994,
			},
		},
		{
			Seq:    8,
			Kind:   EventStatusUpdated,
			Pool:   Address{9},
			Actor:  Address{4},
			Status: &status,
		},
	}

	for _, original := range events {
		b, err := json.Marshal(original)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		var decoded Event
		if err := json.Unmarshal(b, &decoded); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}

		if !reflect.DeepEqual(original, decoded) {
			t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
		}
	}
}
