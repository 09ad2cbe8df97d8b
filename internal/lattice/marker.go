package lattice

import (
	"fmt"
	"sync"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/tensor"
)

// Marker is a zero-length element that leaves the beam unchanged. It names
// a position in the lattice.
type Marker struct {
	base
}

func NewMarker(opts ...Option) (*Marker, error) {
	s, err := resolve(KindMarker, opts)
	if err != nil {
		return nil, err
	}
	return &Marker{base: newBase(KindMarker, s)}, nil
}

func (m *Marker) TransferMap(energy *tensor.Tensor) (beam.LinearMap, error) {
	return beam.Identity(energy.Shape()), nil
}

func (m *Marker) Track(b beam.Beam) (beam.Beam, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: %s: nil beam", beam.ErrInvalidParameter, m.name)
	}
	return b, nil
}

func (m *Marker) Broadcast(shape tensor.Shape) (Element, error) {
	return &Marker{base: m.base}, nil
}

// BPM is a beam position monitor: a zero-length identity that records the
// centroid of the last beam tracked through it.
type BPM struct {
	base

	mu      sync.Mutex
	x, y    *tensor.Tensor
	reading bool
}

func NewBPM(opts ...Option) (*BPM, error) {
	s, err := resolve(KindBPM, opts)
	if err != nil {
		return nil, err
	}
	return &BPM{base: newBase(KindBPM, s)}, nil
}

func (m *BPM) TransferMap(energy *tensor.Tensor) (beam.LinearMap, error) {
	return beam.Identity(energy.Shape()), nil
}

func (m *BPM) Track(b beam.Beam) (beam.Beam, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: %s: nil beam", beam.ErrInvalidParameter, m.name)
	}
	x, y := b.Mu(beam.X), b.Mu(beam.Y)
	m.mu.Lock()
	m.x, m.y, m.reading = x, y, true
	m.mu.Unlock()
	return b, nil
}

// Reading returns the centroid (mu_x, mu_y) of the last tracked beam. ok
// is false until a beam has passed.
func (m *BPM) Reading() (x, y *tensor.Tensor, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.reading {
		return nil, nil, false
	}
	return m.x.Clone(), m.y.Clone(), true
}

// Broadcast returns a fresh monitor with the same name and no reading.
func (m *BPM) Broadcast(shape tensor.Shape) (Element, error) {
	return &BPM{base: m.base}, nil
}
