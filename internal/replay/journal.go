package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"cpamm/internal/model"
)

// OpKind names a journal operation.
type OpKind string

const (
	OpFund                 OpKind = "fund"
	OpRegisterMint         OpKind = "register_mint"
	OpCreateFeeSchedule    OpKind = "create_fee_schedule"
	OpUpdateFeeSchedule    OpKind = "update_fee_schedule"
	OpCreateDiscountConfig OpKind = "create_discount_config"
	OpUpdateDiscountConfig OpKind = "update_discount_config"
	OpCreatePool           OpKind = "create_pool"
	OpSwap                 OpKind = "swap"
	OpDeposit              OpKind = "deposit"
	OpWithdraw             OpKind = "withdraw"
	OpCollectProtocolFee   OpKind = "collect_protocol_fee"
	OpCollectFundFee       OpKind = "collect_fund_fee"
	OpCollectCreatorFee    OpKind = "collect_creator_fee"
	OpUpdatePoolStatus     OpKind = "update_pool_status"
)

// FieldUpdate is one named field change of an update operation.
type FieldUpdate struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Operation is one line of the replay journal. Which fields are read depends
// on Kind. Signer is the payer, owner, creator or authority of the operation.
type Operation struct {
	Seq       uint64 `json:"seq"`
	Timestamp uint64 `json:"timestamp"`
	Kind      OpKind `json:"op"`

	Signer        model.Address `json:"signer"`
	Pool          model.Address `json:"pool"`
	Mint          model.Address `json:"mint"`
	Decimals      uint8         `json:"decimals"`
	ScheduleIndex uint16        `json:"schedule_index"`
	MintA         model.Address `json:"mint_a"`
	MintB         model.Address `json:"mint_b"`
	Amount        uint64        `json:"amount"`
	AmountA       uint64        `json:"amount_a"`
	AmountB       uint64        `json:"amount_b"`
	MinAmountOut  uint64        `json:"min_amount_out"`
	DiscountMint  model.Address `json:"discount_mint"`

	FeeSchedule    *model.FeeSchedule    `json:"fee_schedule,omitempty"`
	DiscountConfig *model.DiscountConfig `json:"discount_config,omitempty"`
	Status         *model.PoolStatus     `json:"status,omitempty"`
	Updates        []FieldUpdate         `json:"updates,omitempty"`
}

// ReadJournal decodes a JSONL journal. Sequence numbers must be strictly
// increasing.
func ReadJournal(r io.Reader) ([]Operation, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var ops []Operation
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		var op Operation
		if err := json.Unmarshal(line, &op); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", lineNo, err)
		}
		if op.Kind == "" {
			return nil, fmt.Errorf("journal line %d: missing op", lineNo)
		}
		if n := len(ops); n > 0 && op.Seq <= ops[n-1].Seq {
			return nil, fmt.Errorf("journal line %d: seq %d not after %d", lineNo, op.Seq, ops[n-1].Seq)
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return ops, nil
}

func ReadJournalFile(path string) ([]Operation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()
	return ReadJournal(file)
}
