package lattice

import (
	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/tensor"
)

// Drift is a field-free section of beam pipe.
type Drift struct {
	base
}

// NewDrift builds a drift. WithLength is required.
func NewDrift(opts ...Option) (*Drift, error) {
	s, err := resolve(KindDrift, opts, param{name: ParamLength, required: true})
	if err != nil {
		return nil, err
	}
	return &Drift{base: newBase(KindDrift, s)}, nil
}

// TransferMap returns the drift matrix with no offset.
func (d *Drift) TransferMap(energy *tensor.Tensor) (beam.LinearMap, error) {
	return batchedMap(func(r, _, a []float64) {
		driftMatrix(r, a[0], a[1])
	}, d.value(ParamLength), energy)
}

func (d *Drift) Track(b beam.Beam) (beam.Beam, error) { return trackLinear(d, b) }

func (d *Drift) Broadcast(shape tensor.Shape) (Element, error) {
	nb, err := d.broadcastBase(shape)
	if err != nil {
		return nil, err
	}
	return &Drift{base: nb}, nil
}

// driftMatrix writes the transfer matrix of a drift of the given length
// for a beam of the given energy into r:
//
//	x   += L·xp
//	y   += L·yp
//	tau += −L/(β²γ²)·p
func driftMatrix(r []float64, length, energy float64) {
	for i := range r {
		r[i] = 0
	}
	for i := 0; i < beam.Dim; i++ {
		r[i*beam.Dim+i] = 1
	}
	r[int(beam.X)*beam.Dim+int(beam.XP)] = length
	r[int(beam.Y)*beam.Dim+int(beam.YP)] = length
	r[int(beam.Tau)*beam.Dim+int(beam.P)] = longitudinalSlip(length, energy)
}

func longitudinalSlip(length, energy float64) float64 {
	_, igamma2, b := beam.Kinematics(energy)
	if b == 0 {
		return 0
	}
	return -length * igamma2 / (b * b)
}
