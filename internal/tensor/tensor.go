package tensor

import (
	"fmt"
	"math"
	"strings"
)

// Tensor is a dense row-major float64 array.
type Tensor struct {
	shape Shape
	data  []float64
}

// New copies data into a tensor of the given shape.
func New(data []float64, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("tensor: %d values do not fill shape %v", len(data), shape)
	}
	d := make([]float64, len(data))
	copy(d, data)
	return &Tensor{shape: shape.Clone(), data: d}, nil
}

// Wrap builds a tensor that takes ownership of data. The caller must not
// touch data afterwards.
func Wrap(data []float64, shape Shape) *Tensor {
	if len(data) != shape.NumElements() {
		panic(fmt.Sprintf("tensor: %d values do not fill shape %v", len(data), shape))
	}
	return &Tensor{shape: shape.Clone(), data: data}
}

func Scalar(v float64) *Tensor {
	return &Tensor{shape: Shape{}, data: []float64{v}}
}

// Vector returns a rank-1 tensor.
func Vector(vs ...float64) *Tensor {
	d := make([]float64, len(vs))
	copy(d, vs)
	return &Tensor{shape: Shape{len(vs)}, data: d}
}

func Full(shape Shape, v float64) *Tensor {
	d := make([]float64, shape.NumElements())
	for i := range d {
		d[i] = v
	}
	return &Tensor{shape: shape.Clone(), data: d}
}

func Zeros(shape Shape) *Tensor { return Full(shape, 0) }

func Ones(shape Shape) *Tensor { return Full(shape, 1) }

func (t *Tensor) Shape() Shape { return t.shape.Clone() }

func (t *Tensor) Rank() int { return len(t.shape) }

func (t *Tensor) Size() int { return len(t.data) }

// Data returns a copy of the values.
func (t *Tensor) Data() []float64 {
	d := make([]float64, len(t.data))
	copy(d, t.data)
	return d
}

// Raw exposes the backing slice without copying. Read-only.
func (t *Tensor) Raw() []float64 { return t.data }

func (t *Tensor) Clone() *Tensor {
	return &Tensor{shape: t.shape.Clone(), data: t.Data()}
}

// At returns the element at the given multi-index. It panics on a bad
// index, like slice indexing does.
func (t *Tensor) At(idx ...int) float64 {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: index of rank %d for shape %v", len(idx), t.shape))
	}
	strides := t.shape.Strides()
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for axis %d of %v", v, i, t.shape))
		}
		off += v * strides[i]
	}
	return t.data[off]
}

// Item returns the single value of a one-element tensor.
func (t *Tensor) Item() float64 {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("tensor: Item on shape %v", t.shape))
	}
	return t.data[0]
}

// BroadcastTo materialises t at the target shape.
func (t *Tensor) BroadcastTo(shape Shape) (*Tensor, error) {
	ix, err := NewIndexer(t.shape, shape)
	if err != nil {
		return nil, err
	}
	out := make([]float64, shape.NumElements())
	for i := range out {
		out[i] = t.data[ix.Index(i)]
	}
	return &Tensor{shape: shape.Clone(), data: out}, nil
}

// Index selects entry i along the leading axis.
func (t *Tensor) Index(i int) (*Tensor, error) {
	if len(t.shape) == 0 {
		return nil, fmt.Errorf("tensor: cannot index a scalar")
	}
	if i < 0 || i >= t.shape[0] {
		return nil, fmt.Errorf("tensor: index %d out of range for shape %v", i, t.shape)
	}
	inner := t.shape[1:]
	n := inner.NumElements()
	return New(t.data[i*n:(i+1)*n], inner)
}

func (t *Tensor) Reshape(shape Shape) (*Tensor, error) {
	if shape.NumElements() != len(t.data) {
		return nil, fmt.Errorf("tensor: cannot reshape %v to %v", t.shape, shape)
	}
	return &Tensor{shape: shape.Clone(), data: t.Data()}, nil
}

// Map applies f elementwise.
func (t *Tensor) Map(f func(float64) float64) *Tensor {
	out := make([]float64, len(t.data))
	for i, v := range t.data {
		out[i] = f(v)
	}
	return &Tensor{shape: t.shape.Clone(), data: out}
}

// Any reports whether pred holds for some element.
func (t *Tensor) Any(pred func(float64) bool) bool {
	for _, v := range t.data {
		if pred(v) {
			return true
		}
	}
	return false
}

// Zip combines a and b elementwise after broadcasting.
func Zip(a, b *Tensor, f func(x, y float64) float64) (*Tensor, error) {
	shape, err := BroadcastShapes(a.shape, b.shape)
	if err != nil {
		return nil, err
	}
	ia, err := NewIndexer(a.shape, shape)
	if err != nil {
		return nil, err
	}
	ib, err := NewIndexer(b.shape, shape)
	if err != nil {
		return nil, err
	}
	out := make([]float64, shape.NumElements())
	for i := range out {
		out[i] = f(a.data[ia.Index(i)], b.data[ib.Index(i)])
	}
	return &Tensor{shape: shape, data: out}, nil
}

func Add(a, b *Tensor) (*Tensor, error) {
	return Zip(a, b, func(x, y float64) float64 { return x + y })
}

func Sub(a, b *Tensor) (*Tensor, error) {
	return Zip(a, b, func(x, y float64) float64 { return x - y })
}

func Mul(a, b *Tensor) (*Tensor, error) {
	return Zip(a, b, func(x, y float64) float64 { return x * y })
}

// Equal reports identical shapes and values.
func Equal(a, b *Tensor) bool {
	if !a.shape.Equal(b.shape) {
		return false
	}
	for i := range a.data {
		if a.data[i] != b.data[i] {
			return false
		}
	}
	return true
}

// AllClose reports |a-b| <= atol + rtol*|b| elementwise after broadcasting.
// Incompatible shapes are never close.
func AllClose(a, b *Tensor, rtol, atol float64) bool {
	diff, err := Zip(a, b, func(x, y float64) float64 {
		if math.IsNaN(x) || math.IsNaN(y) {
			return math.Inf(1)
		}
		if math.Abs(x-y) <= atol+rtol*math.Abs(y) {
			return 0
		}
		return 1
	})
	if err != nil {
		return false
	}
	return !diff.Any(func(v float64) bool { return v != 0 })
}

// Sum adds all elements.
func (t *Tensor) Sum() float64 {
	s := 0.0
	for _, v := range t.data {
		s += v
	}
	return s
}

func (t *Tensor) String() string {
	if len(t.shape) == 0 {
		return fmt.Sprintf("tensor(%g)", t.data[0])
	}
	var b strings.Builder
	b.WriteString("tensor(")
	const limit = 12
	b.WriteString("[")
	for i, v := range t.data {
		if i == limit {
			b.WriteString(" ...")
			break
		}
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%g", v)
	}
	fmt.Fprintf(&b, "], shape=%v)", t.shape)
	return b.String()
}
