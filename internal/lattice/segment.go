package lattice

import (
	"fmt"
	"strings"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/tensor"
)

// Segment is an ordered sequence of elements tracked left to right.
type Segment struct {
	name     string
	elements []Element
}

// NewSegment builds a segment over elements, which may include other
// segments. It accepts WithName only.
func NewSegment(elements []Element, opts ...Option) (*Segment, error) {
	s, err := resolve(KindSegment, opts)
	if err != nil {
		return nil, err
	}
	for i, e := range elements {
		if e == nil {
			return nil, fmt.Errorf("%w: segment element %d is nil", beam.ErrInvalidParameter, i)
		}
	}
	seg := &Segment{name: s.name, elements: append([]Element(nil), elements...)}
	if seg.name == "" {
		seg.name = autoName(KindSegment)
	}
	if _, err := seg.batchShape(); err != nil {
		return nil, fmt.Errorf("segment %s: %w", seg.name, err)
	}
	return seg, nil
}

func (s *Segment) Name() string { return s.name }
func (s *Segment) Kind() string { return KindSegment }

// Elements returns the direct children in order.
func (s *Segment) Elements() []Element { return append([]Element(nil), s.elements...) }

// Flatten returns the leaf elements in tracking order.
func (s *Segment) Flatten() []Element {
	var out []Element
	for _, e := range s.elements {
		if sub, ok := e.(*Segment); ok {
			out = append(out, sub.Flatten()...)
			continue
		}
		out = append(out, e)
	}
	return out
}

// Element finds the first element named name, searching nested segments
// depth first.
func (s *Segment) Element(name string) (Element, bool) {
	for _, e := range s.elements {
		if e.Name() == name {
			return e, true
		}
		if sub, ok := e.(*Segment); ok {
			if found, ok := sub.Element(name); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// Length sums the element lengths with broadcasting.
func (s *Segment) Length() (*tensor.Tensor, error) {
	total := tensor.Scalar(0)
	for _, e := range s.elements {
		l, err := e.Length()
		if err != nil {
			return nil, err
		}
		total, err = tensor.Add(total, l)
		if err != nil {
			return nil, fmt.Errorf("segment %s length: %w", s.name, err)
		}
	}
	return total, nil
}

func (s *Segment) batchShape() (tensor.Shape, error) {
	shapes := make([]tensor.Shape, len(s.elements))
	for i, e := range s.elements {
		shapes[i] = e.BatchShape()
	}
	return tensor.BroadcastShapes(shapes...)
}

// BatchShape is the broadcast of the children's batch shapes, or nil if
// a later SetParameter made them incompatible.
func (s *Segment) BatchShape() tensor.Shape {
	shape, err := s.batchShape()
	if err != nil {
		return nil
	}
	return shape
}

// Track folds the beam through every element in order.
func (s *Segment) Track(b beam.Beam) (beam.Beam, error) {
	out := b
	for i, e := range s.elements {
		next, err := e.Track(out)
		if err != nil {
			return nil, fmt.Errorf("segment %s: element %d (%s): %w", s.name, i, e.Name(), err)
		}
		out = next
	}
	return out, nil
}

// Broadcast returns a new segment with every element broadcast to shape.
func (s *Segment) Broadcast(shape tensor.Shape) (Element, error) {
	elements := make([]Element, len(s.elements))
	for i, e := range s.elements {
		be, err := e.Broadcast(shape)
		if err != nil {
			return nil, fmt.Errorf("segment %s: element %d (%s): %w", s.name, i, e.Name(), err)
		}
		elements[i] = be
	}
	return &Segment{name: s.name, elements: elements}, nil
}

// Parameters lists the parameters of all leaves as "<element>.<parameter>".
func (s *Segment) Parameters() []string {
	var names []string
	for _, e := range s.Flatten() {
		for _, p := range e.Parameters() {
			names = append(names, e.Name()+"."+p)
		}
	}
	return names
}

func (s *Segment) Parameter(name string) (*tensor.Tensor, error) {
	e, param, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.Parameter(param)
}

func (s *Segment) SetParameter(name string, value *tensor.Tensor) error {
	e, param, err := s.lookup(name)
	if err != nil {
		return err
	}
	return e.SetParameter(param, value)
}

func (s *Segment) lookup(name string) (Element, string, error) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return nil, "", fmt.Errorf("%w: segment parameter %q is not of the form element.parameter", beam.ErrConfiguration, name)
	}
	e, ok := s.Element(name[:i])
	if !ok {
		return nil, "", fmt.Errorf("%w: segment %s has no element %q", beam.ErrConfiguration, s.name, name[:i])
	}
	return e, name[i+1:], nil
}
