// Package optim tunes lattice parameters against a scalar objective.
//
// Every transform in the lattice is a pure function of its parameters, so
// objectives are smooth in them; gradients are taken by central finite
// differences.
package optim

import (
	"context"
	"fmt"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/lattice"
	"github.com/san-kum/beamline/internal/tensor"
	"github.com/san-kum/beamline/internal/track"
)

// Objective evaluates the lattice in its current parameter state.
type Objective func(ctx context.Context) (float64, error)

// Problem names the tunable parameters of an element or segment, using
// the names its Parameter method accepts.
type Problem struct {
	Lattice   lattice.Element
	Params    []string
	Objective Objective
}

func (p Problem) validate() error {
	if p.Lattice == nil || p.Objective == nil {
		return fmt.Errorf("%w: problem needs a lattice and an objective", beam.ErrConfiguration)
	}
	if len(p.Params) == 0 {
		return fmt.Errorf("%w: problem has no parameters", beam.ErrConfiguration)
	}
	return nil
}

// snapshot returns the current values of all parameters.
func (p Problem) snapshot() (map[string]*tensor.Tensor, error) {
	out := make(map[string]*tensor.Tensor, len(p.Params))
	for _, name := range p.Params {
		v, err := p.Lattice.Parameter(name)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func (p Problem) restore(values map[string]*tensor.Tensor) error {
	for name, v := range values {
		if err := p.Lattice.SetParameter(name, v); err != nil {
			return err
		}
	}
	return nil
}

// MetricObjective tracks b through l and returns the final value of a
// fresh metric.
func MetricObjective(l lattice.Element, b beam.Beam, newMetric func() track.Metric) Objective {
	return func(ctx context.Context) (float64, error) {
		m := newMetric()
		if _, err := track.New(l, track.WithMetric(m)).Run(ctx, b); err != nil {
			return 0, err
		}
		return m.Value(), nil
	}
}

// CentroidObjective tracks b through l and returns the squared centroid
// offset read by bpm, summed over batch entries.
func CentroidObjective(l lattice.Element, b beam.Beam, bpm *lattice.BPM) Objective {
	return func(ctx context.Context) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if _, err := l.Track(b); err != nil {
			return 0, err
		}
		x, y, ok := bpm.Reading()
		if !ok {
			return 0, fmt.Errorf("%w: monitor %s is not in the lattice", beam.ErrConfiguration, bpm.Name())
		}
		sum := 0.0
		for i, xv := range x.Raw() {
			yv := y.Raw()[i]
			sum += xv*xv + yv*yv
		}
		return sum, nil
	}
}
