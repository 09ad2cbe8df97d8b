package lattice

import (
	"math"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/tensor"
)

// Quadrupole is a thick linear focusing magnet. Positive k1 focuses in x
// and defocuses in y.
type Quadrupole struct {
	base
}

// NewQuadrupole requires WithLength and accepts WithK1 (default 0, which
// reduces to a drift).
func NewQuadrupole(opts ...Option) (*Quadrupole, error) {
	s, err := resolve(KindQuadrupole, opts,
		param{name: ParamLength, required: true},
		param{name: ParamK1},
	)
	if err != nil {
		return nil, err
	}
	return &Quadrupole{base: newBase(KindQuadrupole, s)}, nil
}

func (q *Quadrupole) TransferMap(energy *tensor.Tensor) (beam.LinearMap, error) {
	return batchedMap(func(r, _, a []float64) {
		length, k1 := a[0], a[1]
		driftMatrix(r, length, a[2])
		setBlock(r, beam.X, focus(k1, length))
		setBlock(r, beam.Y, focus(-k1, length))
	}, q.value(ParamLength), q.value(ParamK1), energy)
}

func (q *Quadrupole) Track(b beam.Beam) (beam.Beam, error) { return trackLinear(q, b) }

func (q *Quadrupole) Broadcast(shape tensor.Shape) (Element, error) {
	nb, err := q.broadcastBase(shape)
	if err != nil {
		return nil, err
	}
	return &Quadrupole{base: nb}, nil
}

// focus returns the 2×2 matrix of a plane with strength k over length l.
func focus(k, l float64) [4]float64 {
	switch {
	case k > 0:
		sk := math.Sqrt(k)
		s, c := math.Sincos(sk * l)
		return [4]float64{c, s / sk, -sk * s, c}
	case k < 0:
		sk := math.Sqrt(-k)
		phi := sk * l
		sh, ch := math.Sinh(phi), math.Cosh(phi)
		return [4]float64{ch, sh / sk, sk * sh, ch}
	default:
		return [4]float64{1, l, 0, 1}
	}
}

func setBlock(r []float64, c beam.Coordinate, m [4]float64) {
	i := int(c)
	r[i*beam.Dim+i] = m[0]
	r[i*beam.Dim+i+1] = m[1]
	r[(i+1)*beam.Dim+i] = m[2]
	r[(i+1)*beam.Dim+i+1] = m[3]
}
