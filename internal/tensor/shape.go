package tensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrShape is matched by every broadcasting failure.
var ErrShape = errors.New("tensor: incompatible shapes")

// BroadcastError reports the two shapes that could not be reconciled.
type BroadcastError struct {
	A, B Shape
	Dim  int
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("tensor: shapes %v and %v are not broadcast-compatible (dimension %d)", e.A, e.B, e.Dim)
}

func (e *BroadcastError) Is(target error) bool { return target == ErrShape }

// Shape holds the dimensions of a tensor. The empty shape is a scalar.
type Shape []int

func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Shape) Clone() Shape {
	c := make(Shape, len(s))
	copy(c, s)
	return c
}

// Strides returns row-major strides.
func (s Shape) Strides() []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

// Concat returns s followed by inner.
func (s Shape) Concat(inner ...int) Shape {
	out := make(Shape, 0, len(s)+len(inner))
	out = append(out, s...)
	return append(out, inner...)
}

func (s Shape) Validate() error {
	for i, d := range s {
		if d < 0 {
			return fmt.Errorf("tensor: negative dimension %d at axis %d", d, i)
		}
	}
	return nil
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	if len(s) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// BroadcastShapes returns the common shape of all operands.
func BroadcastShapes(shapes ...Shape) (Shape, error) {
	result := Shape{}
	for _, s := range shapes {
		next, err := broadcastPair(result, s)
		if err != nil {
			return nil, err
		}
		result = next
	}
	return result, nil
}

func broadcastPair(a, b Shape) (Shape, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)

	for i := 0; i < maxLen; i++ {
		aDim, bDim := 1, 1
		if ai := len(a) - 1 - i; ai >= 0 {
			aDim = a[ai]
		}
		if bi := len(b) - 1 - i; bi >= 0 {
			bDim = b[bi]
		}

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
		case bDim == 1:
			result[maxLen-1-i] = aDim
		default:
			return nil, &BroadcastError{A: a.Clone(), B: b.Clone(), Dim: maxLen - 1 - i}
		}
	}
	return result, nil
}

// CanBroadcastTo reports whether s stretches to target without changing target.
func (s Shape) CanBroadcastTo(target Shape) bool {
	_, err := NewIndexer(s, target)
	return err == nil
}
