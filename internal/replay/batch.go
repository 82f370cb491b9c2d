package replay

import "fmt"

// Batch is the run of operations whose seq falls in [From, To].
type Batch struct {
	From uint64
	To   uint64
	Ops  []Operation
}

// SplitBatches cuts ops into windows of batchSize sequence numbers aligned on
// the first operation. Windows with no operations are left out and the last
// window ends at the last operation.
func SplitBatches(ops []Operation, batchSize uint64) ([]Batch, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	for i := 1; i < len(ops); i++ {
		if ops[i].Seq <= ops[i-1].Seq {
			return nil, fmt.Errorf("seq %d not after %d", ops[i].Seq, ops[i-1].Seq)
		}
	}
	if len(ops) == 0 {
		return nil, nil
	}

	first, last := ops[0].Seq, ops[len(ops)-1].Seq
	var batches []Batch
	for start := 0; start < len(ops); {
		from := first + (ops[start].Seq-first)/batchSize*batchSize
		to := last
		if last-from >= batchSize {
			to = from + batchSize - 1
		}
		end := start
		for end < len(ops) && ops[end].Seq <= to {
			end++
		}
		batches = append(batches, Batch{From: from, To: to, Ops: ops[start:end]})
		start = end
	}
	return batches, nil
}
