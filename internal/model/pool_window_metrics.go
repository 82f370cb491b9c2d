package model

import "time"

// PoolWindowMetrics stores aggregated metrics for a pool window.
type PoolWindowMetrics struct {
	PoolKey        string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	DiscountSwaps  uint64
	VolumeA        string
	VolumeB        string
	FeeA           string
	FeeB           string
	ProtocolFeeA   string
	ProtocolFeeB   string
	FeeRateA       *string
	FeeRateB       *string
	TVLA           *string
	TVLB           *string
	APR            *string
	FeeMethod      string
	TVLMethod      string
}

// PoolMeta is the static pool metadata tracked by aggregation.
type PoolMeta struct {
	Key          string `json:"key"`
	FeeSchedule  string `json:"fee_schedule"`
	TradeFeeRate uint64 `json:"trade_fee_rate"`
	MintA        string `json:"mint_a"`
	MintB        string `json:"mint_b"`
	DecimalsA    uint8  `json:"decimals_a"`
	DecimalsB    uint8  `json:"decimals_b"`
	FirstSeenSeq uint64 `json:"first_seen_seq"`
}
