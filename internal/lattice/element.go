package lattice

import (
	"fmt"
	"sync/atomic"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/tensor"
)

// Element kinds.
const (
	KindDrift               = "drift"
	KindHorizontalCorrector = "horizontal_corrector"
	KindVerticalCorrector   = "vertical_corrector"
	KindQuadrupole          = "quadrupole"
	KindMarker              = "marker"
	KindBPM                 = "bpm"
	KindSegment             = "segment"
)

// Parameter names.
const (
	ParamLength          = "length"
	ParamHorizontalAngle = "horizontal_angle"
	ParamVerticalAngle   = "vertical_angle"
	ParamK1              = "k1"
)

// Element is a beamline component.
type Element interface {
	Name() string
	Kind() string

	// Length is the element's length in m, shaped like its batch.
	Length() (*tensor.Tensor, error)

	// BatchShape is the broadcast of all parameter shapes.
	BatchShape() tensor.Shape

	// Track returns the outgoing beam. The incoming beam is not modified.
	Track(b beam.Beam) (beam.Beam, error)

	// Broadcast returns a copy with every parameter broadcast to shape.
	Broadcast(shape tensor.Shape) (Element, error)

	Parameters() []string
	Parameter(name string) (*tensor.Tensor, error)
	SetParameter(name string, value *tensor.Tensor) error
}

// Linear is an element acting as an affine phase-space map.
type Linear interface {
	Element

	// TransferMap builds the map for beams of the given energy. Its batch
	// shape is the broadcast of the parameter shapes and energy's shape.
	TransferMap(energy *tensor.Tensor) (beam.LinearMap, error)
}

var nameCounter atomic.Uint64

// autoName returns a process-wide unique name for an element of kind.
func autoName(kind string) string {
	return fmt.Sprintf("%s_%d", kind, nameCounter.Add(1))
}

// trackLinear applies e's transfer map to b.
func trackLinear(e Linear, b beam.Beam) (beam.Beam, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: %s: nil beam", beam.ErrInvalidParameter, e.Name())
	}
	m, err := e.TransferMap(b.Energy())
	if err != nil {
		return nil, err
	}
	return b.Transform(m)
}

// base carries what every leaf element shares: its name and its
// parameter set.
type base struct {
	name   string
	kind   string
	params *parameters
}

func newBase(kind string, s *settings) base {
	name := s.name
	if name == "" {
		name = autoName(kind)
	}
	return base{name: name, kind: kind, params: s.params}
}

func (b *base) Name() string { return b.name }
func (b *base) Kind() string { return b.kind }

func (b *base) Length() (*tensor.Tensor, error) {
	if v, ok := b.params.values[ParamLength]; ok {
		return v.Clone(), nil
	}
	return tensor.Scalar(0), nil
}

func (b *base) BatchShape() tensor.Shape { return b.params.batchShape() }

func (b *base) Parameters() []string { return append([]string(nil), b.params.names...) }

func (b *base) Parameter(name string) (*tensor.Tensor, error) {
	v, err := b.params.get(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	return v, nil
}

func (b *base) SetParameter(name string, value *tensor.Tensor) error {
	if err := b.params.set(name, value); err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	return nil
}

// broadcastBase returns a copy of b with parameters broadcast to shape.
func (b *base) broadcastBase(shape tensor.Shape) (base, error) {
	p, err := b.params.broadcast(shape)
	if err != nil {
		return base{}, fmt.Errorf("%s: %w", b.name, err)
	}
	return base{name: b.name, kind: b.kind, params: p}, nil
}

// value returns the stored tensor of a parameter known to exist.
func (b *base) value(name string) *tensor.Tensor { return b.params.values[name] }
