package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"cpamm/internal/amm"
	"cpamm/internal/model"
)

var (
	admin   = model.Address{0x01}
	owner   = model.Address{0x02}
	creator = model.Address{0x05}
	alice   = model.Address{0x06}
	bob     = model.Address{0x07}

	sol  = model.Address{0x11}
	usdc = model.Address{0x12}
	jup  = model.Address{0x13}
)

type memorySink struct {
	mu      sync.Mutex
	failN   int
	calls   int
	batches [][]model.Event
}

func (m *memorySink) PutEventBatch(_ context.Context, events []model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failN > 0 {
		m.failN--
		return errors.New("sink unavailable")
	}
	m.batches = append(m.batches, append([]model.Event(nil), events...))
	return nil
}

func (m *memorySink) events() []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Event
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func newEngine() *amm.Engine {
	return amm.NewEngine(amm.Config{
		Namespace:          "test",
		Admin:              admin,
		NativeMint:         sol,
		USDMint:            usdc,
		BridgeMint:         sol,
		ReferenceSchedules: []uint16{0},
	}, nil, nil, nil, nil)
}

// testJournal sets up two pools and trades on both of them.
func testJournal() []Operation {
	schedule := &model.FeeSchedule{
		Index:           0,
		TradeFeeRate:    2_500,
		ProtocolFeeRate: 200_000,
		Owner:           owner,
		FundOwner:       owner,
	}
	ops := []Operation{
		{Kind: OpRegisterMint, Mint: sol, Decimals: 9},
		{Kind: OpRegisterMint, Mint: usdc, Decimals: 6},
		{Kind: OpRegisterMint, Mint: jup, Decimals: 6},
		{Kind: OpCreateFeeSchedule, Signer: admin, FeeSchedule: schedule},
		{Kind: OpFund, Signer: creator, Mint: sol, Amount: 10_000_000_000_000},
		{Kind: OpFund, Signer: creator, Mint: usdc, Amount: 10_000_000_000_000},
		{Kind: OpFund, Signer: creator, Mint: jup, Amount: 10_000_000_000_000},
		{Kind: OpFund, Signer: alice, Mint: usdc, Amount: 1_000_000_000},
		{Kind: OpFund, Signer: bob, Mint: usdc, Amount: 1_000_000_000},
		{Kind: OpCreatePool, Signer: creator, MintA: sol, MintB: usdc, AmountA: 1_000_000_000_000, AmountB: 150_000_000_000},
		{Kind: OpCreatePool, Signer: creator, MintA: jup, MintB: usdc, AmountA: 1_000_000_000_000, AmountB: 500_000_000_000},
	}
	for i := 0; i < 6; i++ {
		ops = append(ops,
			Operation{Kind: OpSwap, Signer: alice, MintA: sol, MintB: usdc, Mint: usdc, Amount: 10_000_000},
			Operation{Kind: OpSwap, Signer: bob, MintA: jup, MintB: usdc, Mint: usdc, Amount: 20_000_000},
		)
	}
	ops = append(ops,
		// Rejected: minimum output cannot be met.
		Operation{Kind: OpSwap, Signer: alice, MintA: sol, MintB: usdc, Mint: usdc, Amount: 1_000, MinAmountOut: 1 << 40},
		Operation{Kind: OpDeposit, Signer: creator, MintA: jup, MintB: usdc, Amount: 1_000_000, AmountA: 1 << 50, AmountB: 1 << 50},
		Operation{Kind: OpCollectProtocolFee, Signer: owner, MintA: sol, MintB: usdc},
	)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	for i := range ops {
		ops[i].Seq = uint64(i + 1)
		ops[i].Timestamp = uint64(base) + uint64(i)*60
	}
	return ops
}

func TestRunOpsAppliesJournal(t *testing.T) {
	engine := newEngine()
	sink := &memorySink{}
	runner := NewRunner(RunConfig{BatchSize: 5, Workers: 4}, engine, sink, nil)

	ops := testJournal()
	stats, err := runner.RunOps(context.Background(), ops)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Rejected != 1 {
		t.Fatalf("rejected = %d, want 1", stats.Rejected)
	}
	if stats.Applied != len(ops)-1 {
		t.Fatalf("applied = %d, want %d", stats.Applied, len(ops)-1)
	}
	// 2 pools + 12 swaps + 1 deposit + 1 collect.
	if stats.Events != 16 || stats.Written != 16 {
		t.Fatalf("events = %d written = %d, want 16", stats.Events, stats.Written)
	}
	if stats.LastSeq != ops[len(ops)-1].Seq {
		t.Fatalf("last seq = %d", stats.LastSeq)
	}

	events := sink.events()
	for i := 1; i < len(events); i++ {
		if events[i].Seq <= events[i-1].Seq {
			t.Fatalf("events out of order at %d: %d after %d", i, events[i].Seq, events[i-1].Seq)
		}
	}
	for _, ev := range events {
		if ev.Timestamp == 0 {
			t.Fatalf("event %d has no timestamp", ev.Seq)
		}
	}
}

func TestRunOpsConcurrentMatchesSequential(t *testing.T) {
	ops := testJournal()

	sequential := newEngine()
	if _, err := NewRunner(RunConfig{BatchSize: 100, Workers: 1}, sequential, &memorySink{}, nil).RunOps(context.Background(), ops); err != nil {
		t.Fatalf("sequential run: %v", err)
	}
	concurrent := newEngine()
	if _, err := NewRunner(RunConfig{BatchSize: 100, Workers: 8}, concurrent, &memorySink{}, nil).RunOps(context.Background(), ops); err != nil {
		t.Fatalf("concurrent run: %v", err)
	}

	want := sequential.Registry().Pools()
	got := concurrent.Registry().Pools()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("pool state differs\n got: %+v\nwant: %+v", got, want)
	}
	for _, who := range []model.Address{alice, bob, creator, owner} {
		for _, mint := range []model.Address{sol, usdc, jup} {
			if a, b := sequential.Balance(who, mint), concurrent.Balance(who, mint); a != b {
				t.Fatalf("balance %s/%s: sequential %d concurrent %d", who, mint, a, b)
			}
		}
	}
}

func TestRunOpsCheckpointSkipsWrittenBatches(t *testing.T) {
	ops := testJournal()
	cfg := RunConfig{
		BatchSize:         10,
		Workers:           2,
		CheckpointEnabled: true,
		CheckpointPath:    filepath.Join(t.TempDir(), "checkpoint.json"),
	}

	first := &memorySink{}
	cfg.ToSeq = 20
	if _, err := NewRunner(cfg, newEngine(), first, nil).RunOps(context.Background(), ops); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := &memorySink{}
	cfg.ToSeq = 0
	stats, err := NewRunner(cfg, newEngine(), second, nil).RunOps(context.Background(), ops)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.Events != 16 {
		t.Fatalf("events = %d, want 16", stats.Events)
	}
	for _, ev := range second.events() {
		if ev.Seq <= 20 {
			t.Fatalf("event %d written twice", ev.Seq)
		}
	}
	if got := len(first.events()) + len(second.events()); got != 16 {
		t.Fatalf("total written = %d, want 16", got)
	}

	cp, ok, err := NewCheckpointStore(cfg.CheckpointPath, true).Load()
	if err != nil || !ok {
		t.Fatalf("load checkpoint: ok=%v err=%v", ok, err)
	}
	if cp.LastProcessedSeq != ops[len(ops)-1].Seq || cp.EventsWritten != 16 {
		t.Fatalf("checkpoint = %+v", cp)
	}
}

func TestRunOpsRetriesSink(t *testing.T) {
	sink := &memorySink{failN: 2}
	runner := NewRunner(RunConfig{BatchSize: 100, MaxRetries: 3, RetryBackoff: time.Millisecond}, newEngine(), sink, nil)
	if _, err := runner.RunOps(context.Background(), testJournal()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sink.calls != 3 {
		t.Fatalf("sink calls = %d, want 3", sink.calls)
	}

	failing := &memorySink{failN: 10}
	runner = NewRunner(RunConfig{BatchSize: 100, MaxRetries: 1, RetryBackoff: time.Millisecond}, newEngine(), failing, nil)
	if _, err := runner.RunOps(context.Background(), testJournal()); err == nil {
		t.Fatalf("expected sink error")
	}
}

func TestRunOpsValidatesConfig(t *testing.T) {
	if _, err := NewRunner(RunConfig{}, newEngine(), &memorySink{}, nil).RunOps(context.Background(), testJournal()); err == nil {
		t.Fatalf("expected batch size error")
	}
	if _, err := NewRunner(RunConfig{BatchSize: 1}, nil, &memorySink{}, nil).RunOps(context.Background(), testJournal()); err == nil {
		t.Fatalf("expected engine error")
	}
}

func TestApplyUnknownOp(t *testing.T) {
	_, err := Apply(context.Background(), newEngine(), Operation{Seq: 1, Kind: "mint_nft"})
	if err == nil || IsFatal(err) {
		t.Fatalf("unknown op should be a non-fatal rejection, got %v", err)
	}
	if !IsFatal(amm.ErrPersist) || !IsFatal(context.Canceled) {
		t.Fatalf("persist and cancel must be fatal")
	}
}

func TestReadJournal(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("# seed journal\n\n")
	for _, op := range testJournal()[:4] {
		line, err := json.Marshal(op)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	ops, err := ReadJournal(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(ops) != 4 {
		t.Fatalf("ops = %d, want 4", len(ops))
	}
	want := testJournal()[3]
	if !reflect.DeepEqual(ops[3], want) {
		t.Fatalf("op mismatch\n got: %+v\nwant: %+v", ops[3], want)
	}

	bad := []string{
		`{"seq":2,"op":"fund"}` + "\n" + `{"seq":2,"op":"fund"}`,
		`{"seq":1}`,
		`{"seq":1,"op":"fund","signer":"not-base58!"}`,
	}
	for _, input := range bad {
		if _, err := ReadJournal(strings.NewReader(input)); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestPartition(t *testing.T) {
	poolA := model.Address{0xa1}
	poolB := model.Address{0xb1}
	ops := []Operation{
		{Seq: 1, Kind: OpSwap, Signer: alice, Pool: poolA},
		{Seq: 2, Kind: OpSwap, Signer: bob, Pool: poolB},
		{Seq: 3, Kind: OpSwap, Signer: alice, Pool: poolA},
		{Seq: 4, Kind: OpSwap, Signer: alice, Pool: poolB},
		{Seq: 5, Kind: OpSwap, Signer: bob, Pool: poolB, DiscountMint: jup},
		{Seq: 6, Kind: OpDeposit, Signer: bob, Pool: poolA},
		{Seq: 7, Kind: OpFund, Signer: alice},
	}
	segments := Partition(ops, func(op Operation) model.Address { return op.Pool })

	if len(segments) != 5 {
		t.Fatalf("segments = %d, want 5", len(segments))
	}
	first := segments[0]
	if first.Len() != 3 || len(first.Lanes[poolA]) != 2 || len(first.Lanes[poolB]) != 1 {
		t.Fatalf("unexpected first segment: %+v", first)
	}
	// alice moves to another pool, which starts a new segment.
	if segments[1].Len() != 1 || segments[1].Lanes[poolB][0].Seq != 4 {
		t.Fatalf("unexpected second segment: %+v", segments[1])
	}
	if segments[2].Barrier == nil || segments[2].Barrier.Seq != 5 {
		t.Fatalf("discount swap must be a barrier: %+v", segments[2])
	}
	if segments[3].Lanes[poolA][0].Seq != 6 {
		t.Fatalf("unexpected fourth segment: %+v", segments[3])
	}
	if segments[4].Barrier == nil || segments[4].Barrier.Kind != OpFund {
		t.Fatalf("fund must be a barrier: %+v", segments[4])
	}

	total := 0
	for _, s := range segments {
		total += s.Len()
	}
	if total != len(ops) {
		t.Fatalf("partition lost ops: %d of %d", total, len(ops))
	}
}
