package scheduler

// Kind identifies how a [Strategy] addresses batches.
type Kind int

const (
	// KindOffset advances the cursor by a fixed batch size.
	KindOffset Kind = iota

	// KindIndex advances the cursor by one; batch sizing is left to fetch.
	KindIndex
)

// String returns "offset" or "index".
func (k Kind) String() string {
	switch k {
	case KindOffset:
		return "offset"
	case KindIndex:
		return "index"
	default:
		return "unknown"
	}
}

// Strategy is the key-and-advance rule shared by every worker of a run.
//
// The zero value is not useful; build one with [Offset] or [Index].
type Strategy struct {
	kind Kind
	size int
}

// Offset returns a strategy that claims (offset, size) pairs.
// Sizes below 1 are raised to 1.
func Offset(size int) Strategy {
	if size < 1 {
		size = 1
	}
	return Strategy{kind: KindOffset, size: size}
}

// Index returns a strategy that claims bare sequential indexes.
func Index() Strategy {
	return Strategy{kind: KindIndex}
}

// Kind reports the addressing mode.
func (s Strategy) Kind() Kind {
	return s.kind
}

// Size returns the batch size handed to fetch. It is 0 in index mode.
func (s Strategy) Size() int {
	if s.kind == KindIndex {
		return 0
	}
	return s.size
}

// Step returns how far the cursor advances per claim.
func (s Strategy) Step() int {
	if s.kind == KindIndex {
		return 1
	}
	return s.size
}
