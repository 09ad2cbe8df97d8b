// Package stats derives read-only statistics from any beam.
package stats

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/tensor"
)

// ErrDegenerate indicates a Twiss inversion of a plane with zero emittance.
var ErrDegenerate = errors.New("stats: degenerate phase space (zero emittance)")

// Mean returns the centroid of one coordinate, shaped like the batch.
func Mean(b beam.Beam, c beam.Coordinate) *tensor.Tensor { return b.Mu(c) }

// Sigma returns the standard deviation of one coordinate.
func Sigma(b beam.Beam, c beam.Coordinate) *tensor.Tensor { return b.Sigma(c) }

// Summary flattens the first and second moments of every batch entry.
type Summary struct {
	Batch  tensor.Shape
	Energy []float64
	Mu     [beam.Dim][]float64
	Sigma  [beam.Dim][]float64
}

// Summarize collects all means and standard deviations of b.
func Summarize(b beam.Beam) Summary {
	s := Summary{Batch: b.BatchShape(), Energy: b.Energy().Data()}
	for _, c := range beam.Coordinates() {
		s.Mu[c] = b.Mu(c).Data()
		s.Sigma[c] = b.Sigma(c).Data()
	}
	return s
}

// Len is the number of batch entries.
func (s Summary) Len() int { return len(s.Energy) }

// TwissParameters holds per-batch-entry Courant-Snyder parameters of one
// plane.
type TwissParameters struct {
	Plane     beam.Plane
	Beta      []float64
	Alpha     []float64
	Gamma     []float64
	Emittance []float64
}

// Twiss inverts the centered 2×2 covariance block of plane:
//
//	ε = sqrt(σ11 σ22 − σ12²),  β = σ11/ε,  α = −σ12/ε,  γ = σ22/ε
//
// The result is exact for uncoupled Gaussian beams and an approximation
// when the plane couples to others.
func Twiss(b beam.Beam, plane beam.Plane) (TwissParameters, error) {
	eps, blocks := emittance(b, plane)
	tw := TwissParameters{
		Plane:     plane,
		Beta:      make([]float64, len(eps)),
		Alpha:     make([]float64, len(eps)),
		Gamma:     make([]float64, len(eps)),
		Emittance: eps,
	}
	for i, e := range eps {
		if e == 0 || math.IsNaN(e) {
			return TwissParameters{}, fmt.Errorf("%w: %s plane, batch entry %d", ErrDegenerate, plane, i)
		}
		s11, s12, s22 := blocks[i][0], blocks[i][1], blocks[i][2]
		tw.Beta[i] = s11 / e
		tw.Alpha[i] = -s12 / e
		tw.Gamma[i] = s22 / e
	}
	return tw, nil
}

// Emittance returns the geometric RMS emittance of plane, shaped like the
// batch.
func Emittance(b beam.Beam, plane beam.Plane) *tensor.Tensor {
	eps, _ := emittance(b, plane)
	return tensor.Wrap(eps, b.BatchShape())
}

// NormalizedEmittance returns ε·βγ.
func NormalizedEmittance(b beam.Beam, plane beam.Plane) *tensor.Tensor {
	eps, _ := emittance(b, plane)
	energy := b.Energy().Raw()
	for i := range eps {
		gamma, _, beta := beam.Kinematics(energy[i])
		eps[i] *= beta * gamma
	}
	return tensor.Wrap(eps, b.BatchShape())
}

// emittance returns ε and the (σ11, σ12, σ22) block per batch entry.
// Round-off below zero clamps to 0.
func emittance(b beam.Beam, plane beam.Plane) ([]float64, [][3]float64) {
	cov := b.Cov().Raw()
	const dd = beam.Dim * beam.Dim
	n := len(cov) / dd
	i := int(plane.Position())

	eps := make([]float64, n)
	blocks := make([][3]float64, n)
	for k := 0; k < n; k++ {
		m := cov[k*dd : (k+1)*dd]
		s11, s12, s22 := m[i*beam.Dim+i], m[i*beam.Dim+i+1], m[(i+1)*beam.Dim+i+1]
		blocks[k] = [3]float64{s11, s12, s22}
		eps[k] = math.Sqrt(math.Max(s11*s22-s12*s12, 0))
	}
	return eps, blocks
}
