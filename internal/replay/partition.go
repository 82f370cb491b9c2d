package replay

import "cpamm/internal/model"

// Segment is a run of journal operations. A barrier segment holds a single
// operation that may touch several pools or global state. Otherwise Lanes maps
// each pool to its operations in journal order; lanes share no pool and no
// signer, so they may run concurrently.
type Segment struct {
	Barrier *Operation
	Lanes   map[model.Address][]Operation
}

// Len returns the number of operations in the segment.
func (s Segment) Len() int {
	if s.Barrier != nil {
		return 1
	}
	n := 0
	for _, ops := range s.Lanes {
		n += len(ops)
	}
	return n
}

// poolLocal reports whether op reads and writes a single pool and its signer's
// balances only.
func poolLocal(op Operation) bool {
	switch op.Kind {
	case OpSwap:
		return op.DiscountMint.IsZero()
	case OpDeposit, OpWithdraw, OpUpdatePoolStatus:
		return true
	default:
		return false
	}
}

// Partition splits ops into segments. keyOf resolves the pool an operation
// targets.
func Partition(ops []Operation, keyOf func(Operation) model.Address) []Segment {
	var (
		segments []Segment
		lanes    map[model.Address][]Operation
		signers  map[model.Address]model.Address
	)
	flush := func() {
		if len(lanes) > 0 {
			segments = append(segments, Segment{Lanes: lanes})
		}
		lanes = nil
		signers = nil
	}

	for i := range ops {
		op := ops[i]
		if !poolLocal(op) {
			flush()
			segments = append(segments, Segment{Barrier: &op})
			continue
		}
		pool := keyOf(op)
		if prev, ok := signers[op.Signer]; ok && prev != pool {
			flush()
		}
		if lanes == nil {
			lanes = make(map[model.Address][]Operation)
			signers = make(map[model.Address]model.Address)
		}
		lanes[pool] = append(lanes[pool], op)
		signers[op.Signer] = pool
	}
	flush()
	return segments
}
