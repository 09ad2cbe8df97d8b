package lattice

import (
	"fmt"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/tensor"
)

// parameters is the ordered, named parameter set of a leaf element. Every
// value is owned by the set; callers receive copies.
type parameters struct {
	names  []string
	values map[string]*tensor.Tensor
}

func (p *parameters) shapes() []tensor.Shape {
	shapes := make([]tensor.Shape, 0, len(p.names))
	for _, n := range p.names {
		shapes = append(shapes, p.values[n].Shape())
	}
	return shapes
}

// batchShape is always defined since set rejects incompatible values.
func (p *parameters) batchShape() tensor.Shape {
	shape, err := tensor.BroadcastShapes(p.shapes()...)
	if err != nil {
		return nil
	}
	return shape
}

func (p *parameters) get(name string) (*tensor.Tensor, error) {
	v, ok := p.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: no parameter %q", beam.ErrConfiguration, name)
	}
	return v.Clone(), nil
}

func (p *parameters) set(name string, value *tensor.Tensor) error {
	if _, ok := p.values[name]; !ok {
		return fmt.Errorf("%w: no parameter %q", beam.ErrConfiguration, name)
	}
	if value == nil {
		return fmt.Errorf("%w: %q is nil", beam.ErrInvalidParameter, name)
	}
	shapes := []tensor.Shape{value.Shape()}
	for _, n := range p.names {
		if n != name {
			shapes = append(shapes, p.values[n].Shape())
		}
	}
	if _, err := tensor.BroadcastShapes(shapes...); err != nil {
		return fmt.Errorf("setting %q: %w", name, err)
	}
	p.values[name] = value.Clone()
	return nil
}

func (p *parameters) broadcast(shape tensor.Shape) (*parameters, error) {
	out := &parameters{
		names:  append([]string(nil), p.names...),
		values: make(map[string]*tensor.Tensor, len(p.values)),
	}
	for _, n := range p.names {
		v := p.values[n]
		if !v.Shape().CanBroadcastTo(shape) {
			return nil, fmt.Errorf("%w: parameter %q shape %v cannot broadcast to %v", beam.ErrShape, n, v.Shape(), shape)
		}
		b, err := v.BroadcastTo(shape)
		if err != nil {
			return nil, err
		}
		out.values[n] = b
	}
	return out, nil
}

// batchedMap evaluates fill once per entry of the broadcast batch of args.
// fill receives the zeroed 6×6 matrix and offset of one entry plus the
// per-entry argument values in order.
func batchedMap(fill func(r, d, args []float64), args ...*tensor.Tensor) (beam.LinearMap, error) {
	shapes := make([]tensor.Shape, len(args))
	for i, a := range args {
		shapes[i] = a.Shape()
	}
	batch, err := tensor.BroadcastShapes(shapes...)
	if err != nil {
		return beam.LinearMap{}, err
	}
	vals := make([][]float64, len(args))
	for i, a := range args {
		b, err := a.BroadcastTo(batch)
		if err != nil {
			return beam.LinearMap{}, err
		}
		vals[i] = b.Raw()
	}

	const dd = beam.Dim * beam.Dim
	n := batch.NumElements()
	r := make([]float64, n*dd)
	d := make([]float64, n*beam.Dim)
	entry := make([]float64, len(args))
	for b := 0; b < n; b++ {
		for i := range vals {
			entry[i] = vals[i][b]
		}
		fill(r[b*dd:(b+1)*dd], d[b*beam.Dim:(b+1)*beam.Dim], entry)
	}
	return beam.NewLinearMap(tensor.Wrap(r, batch.Concat(beam.Dim, beam.Dim)), tensor.Wrap(d, batch.Concat(beam.Dim)))
}
