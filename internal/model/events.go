package model

// EventKind names a committed engine operation.
type EventKind string

const (
	EventPoolCreated   EventKind = "pool_created"
	EventSwap          EventKind = "swap"
	EventDeposit       EventKind = "deposit"
	EventWithdraw      EventKind = "withdraw"
	EventFeesCollected EventKind = "fees_collected"
	EventStatusUpdated EventKind = "status_updated"
)

// Event is the journal record of one committed pool operation.
type Event struct {
	Seq       uint64    `json:"seq"`
	Kind      EventKind `json:"kind"`
	Pool      Address   `json:"pool"`
	Actor     Address   `json:"actor"`
	Timestamp uint64    `json:"timestamp"`

	Created   *PoolCreatedData `json:"created,omitempty"`
	Swap      *SwapEventData   `json:"swap,omitempty"`
	Liquidity *LiquidityData   `json:"liquidity,omitempty"`
	Collect   *CollectData     `json:"collect,omitempty"`
	Status    *PoolStatus      `json:"status,omitempty"`
}

// PoolCreatedData carries the static pool metadata.
type PoolCreatedData struct {
	FeeSchedule  Address `json:"fee_schedule"`
	TradeFeeRate uint64  `json:"trade_fee_rate"`
	MintA        Address `json:"mint_a"`
	MintB        Address `json:"mint_b"`
	DecimalsA    uint8   `json:"decimals_a"`
	DecimalsB    uint8   `json:"decimals_b"`
	AmountA      uint64  `json:"amount_a,string"`
	AmountB      uint64  `json:"amount_b,string"`
	LPMinted     uint64  `json:"lp_minted,string"`
	CreationFee  uint64  `json:"creation_fee,string"`
}

// SwapEventData is the settled swap. Reserves are the post-trade vault balances.
type SwapEventData struct {
	InputMint       Address `json:"input_mint"`
	OutputMint      Address `json:"output_mint"`
	AmountIn        uint64  `json:"amount_in,string"`
	AmountOut       uint64  `json:"amount_out,string"`
	TradeFee        uint64  `json:"trade_fee,string"`
	ProtocolFee     uint64  `json:"protocol_fee,string"`
	FundFee         uint64  `json:"fund_fee,string"`
	CreatorFee      uint64  `json:"creator_fee,string"`
	LPFee           uint64  `json:"lp_fee,string"`
	DiscountMint    Address `json:"discount_mint"`
	DiscountAmount  uint64  `json:"discount_amount,string"`
	DiscountSkipped bool    `json:"discount_skipped,omitempty"`
	ReserveA        uint64  `json:"reserve_a,string"`
	ReserveB        uint64  `json:"reserve_b,string"`
}

// LiquidityData is a deposit or withdrawal.
type LiquidityData struct {
	LPAmount uint64 `json:"lp_amount,string"`
	AmountA  uint64 `json:"amount_a,string"`
	AmountB  uint64 `json:"amount_b,string"`
	Reseeded bool   `json:"reseeded,omitempty"`
	ReserveA uint64 `json:"reserve_a,string"`
	ReserveB uint64 `json:"reserve_b,string"`
	LPSupply uint64 `json:"lp_supply,string"`
}

// CollectData is a fee-claim withdrawal.
type CollectData struct {
	Claim     string  `json:"claim"`
	Recipient Address `json:"recipient"`
	AmountA   uint64  `json:"amount_a,string"`
	AmountB   uint64  `json:"amount_b,string"`
}
