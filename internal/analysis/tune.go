package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/lattice"
	"github.com/san-kum/beamline/internal/tensor"
)

// MinTurns is the shortest record Tune accepts.
const MinTurns = 16

var (
	// ErrUnstable indicates a cell whose one-turn matrix has |trace| >= 2.
	ErrUnstable = errors.New("analysis: cell is not stable")

	// ErrTooFewTurns indicates a record shorter than MinTurns.
	ErrTooFewTurns = errors.New("analysis: too few turns")
)

// Orbit holds centroid readings at the cell exit, indexed
// [batch entry][turn].
type Orbit struct {
	Plane    beam.Plane
	Position [][]float64
	Angle    [][]float64
}

// Turns returns the record length.
func (o *Orbit) Turns() int {
	if len(o.Position) == 0 {
		return 0
	}
	return len(o.Position[0])
}

// TurnByTurn tracks b through cell turns times and records the centroid of
// both transverse planes after every pass.
func TurnByTurn(ctx context.Context, cell lattice.Element, b beam.Beam, turns int) (map[beam.Plane]*Orbit, error) {
	if turns <= 0 {
		return nil, fmt.Errorf("%w: turns must be positive, got %d", beam.ErrInvalidParameter, turns)
	}

	orbits := map[beam.Plane]*Orbit{
		beam.Horizontal: {Plane: beam.Horizontal},
		beam.Vertical:   {Plane: beam.Vertical},
	}
	cur := b
	for turn := 0; turn < turns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := cell.Track(cur)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", turn, err)
		}
		cur = next

		for plane, o := range orbits {
			pos := cur.Mu(plane.Position()).Raw()
			ang := cur.Mu(plane.Angle()).Raw()
			if o.Position == nil {
				o.Position = make([][]float64, len(pos))
				o.Angle = make([][]float64, len(pos))
				for i := range pos {
					o.Position[i] = make([]float64, 0, turns)
					o.Angle[i] = make([]float64, 0, turns)
				}
			}
			for i := range pos {
				o.Position[i] = append(o.Position[i], pos[i])
				o.Angle[i] = append(o.Angle[i], ang[i])
			}
		}
	}
	return orbits, nil
}

// CellMap composes the transfer maps of every leaf element of seg for
// beams of the given energy.
func CellMap(seg *lattice.Segment, energy *tensor.Tensor) (beam.LinearMap, error) {
	m := beam.Identity(energy.Shape())
	for _, e := range seg.Flatten() {
		le, ok := e.(lattice.Linear)
		if !ok {
			return beam.LinearMap{}, fmt.Errorf("%w: element %s has no transfer map", beam.ErrConfiguration, e.Name())
		}
		em, err := le.TransferMap(energy)
		if err != nil {
			return beam.LinearMap{}, err
		}
		if m, err = m.Then(em); err != nil {
			return beam.LinearMap{}, err
		}
	}
	return m, nil
}

// CellTune returns the fractional tune of one plane for every batch entry
// of m, from cos(2πQ) = (R11 + R22) / 2. The result lies in [0, 0.5].
func CellTune(m beam.LinearMap, plane beam.Plane) ([]float64, error) {
	n := m.BatchShape().NumElements()
	r := m.R.Raw()
	i := int(plane.Position())

	out := make([]float64, n)
	for b := 0; b < n; b++ {
		blk := r[b*beam.Dim*beam.Dim:]
		c := (blk[i*beam.Dim+i] + blk[(i+1)*beam.Dim+i+1]) / 2
		if math.Abs(c) >= 1 {
			return nil, fmt.Errorf("%w: %s half trace %g at batch entry %d", ErrUnstable, plane, c, b)
		}
		out[b] = math.Acos(c) / (2 * math.Pi)
	}
	return out, nil
}

// Spectrum returns the magnitude of the Hann-windowed spectrum of readings
// with the mean removed, one value per frequency bin from 0 to n/2.
func Spectrum(readings []float64) []float64 {
	n := len(readings)
	if n == 0 {
		return nil
	}
	mean := 0.0
	for _, v := range readings {
		mean += v
	}
	mean /= float64(n)

	seq := make([]float64, n)
	for i, v := range readings {
		seq[i] = v - mean
	}
	window.Hann(seq)

	coeff := fourier.NewFFT(n).Coefficients(nil, seq)
	out := make([]float64, len(coeff))
	for i, c := range coeff {
		out[i] = cmplx.Abs(c)
	}
	return out
}

// Tune returns the fractional tune of a turn-by-turn record: the position
// of the strongest spectral line, refined by parabolic interpolation
// between neighbouring bins. The result lies in [0, 0.5].
func Tune(readings []float64) (float64, error) {
	n := len(readings)
	if n < MinTurns {
		return 0, fmt.Errorf("%w: %d < %d", ErrTooFewTurns, n, MinTurns)
	}

	ps := Spectrum(readings)
	peak := 1
	for k := 2; k < len(ps); k++ {
		if ps[k] > ps[peak] {
			peak = k
		}
	}
	if ps[peak] == 0 {
		return 0, fmt.Errorf("%w: no oscillation in record", beam.ErrInvalidParameter)
	}

	k := float64(peak)
	if peak > 0 && peak < len(ps)-1 {
		a, b, c := ps[peak-1], ps[peak], ps[peak+1]
		if d := a - 2*b + c; d != 0 {
			k += 0.5 * (a - c) / d
		}
	}
	return math.Min(math.Max(k/float64(n), 0), 0.5), nil
}
