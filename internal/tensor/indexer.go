package tensor

// Indexer maps flat indices of a broadcast output shape back to flat indices
// of an operand. Stretched and padded dimensions get stride 0.
type Indexer struct {
	outStrides []int
	inStrides  []int
	identity   bool
}

// NewIndexer prepares the mapping from out to in. in must broadcast to out
// without changing out.
func NewIndexer(in, out Shape) (*Indexer, error) {
	if len(in) > len(out) {
		return nil, &BroadcastError{A: in.Clone(), B: out.Clone(), Dim: 0}
	}

	offset := len(out) - len(in)
	origStrides := in.Strides()
	inStrides := make([]int, len(out))
	identity := len(in) == len(out)

	for i := range out {
		inIdx := i - offset
		switch {
		case inIdx < 0:
			inStrides[i] = 0
		case in[inIdx] == out[i]:
			inStrides[i] = origStrides[inIdx]
		case in[inIdx] == 1:
			inStrides[i] = 0
			identity = false
		default:
			return nil, &BroadcastError{A: in.Clone(), B: out.Clone(), Dim: i}
		}
	}

	return &Indexer{outStrides: out.Strides(), inStrides: inStrides, identity: identity}, nil
}

// Index returns the operand offset for output offset flat.
func (ix *Indexer) Index(flat int) int {
	if ix.identity {
		return flat
	}
	idx := 0
	for i, stride := range ix.outStrides {
		coord := flat / stride
		flat %= stride
		idx += coord * ix.inStrides[i]
	}
	return idx
}
