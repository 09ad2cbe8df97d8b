package optim

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/lattice"
	"github.com/san-kum/beamline/internal/tensor"
)

// Measure reads one observable of the lattice in its current state.
type Measure func(ctx context.Context) (float64, error)

// MonitorMeasure tracks b through l and returns the centroid of batch
// entry 0 read by bpm in plane.
func MonitorMeasure(l lattice.Element, b beam.Beam, bpm *lattice.BPM, plane beam.Plane) Measure {
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
		if plane == beam.Vertical {
			return y.Raw()[0], nil
		}
		return x.Raw()[0], nil
	}
}

// Feedback is a discrete PID loop driving one scalar parameter until a
// measurement reaches Target. Each iteration is one time step.
type Feedback struct {
	Kp      float64
	Ki      float64
	Kd      float64
	Target  float64
	MaxIter int
	Tol     float64
	Logger  *zap.Logger

	integral float64
	prevErr  float64
	first    bool
}

func NewFeedback(kp, ki, kd, target float64) *Feedback {
	return &Feedback{
		Kp:     kp,
		Ki:     ki,
		Kd:     kd,
		Target: target,
		first:  true,
	}
}

// Compute returns the correction for error e = Target - measurement.
func (f *Feedback) Compute(e float64) float64 {
	if f.first {
		f.prevErr = e
		f.first = false
	}
	f.integral += e
	derivative := e - f.prevErr
	f.prevErr = e
	return f.Kp*e + f.Ki*f.integral + f.Kd*derivative
}

// Reset clears the loop state.
func (f *Feedback) Reset() {
	f.integral = 0
	f.prevErr = 0
	f.first = true
}

type FeedbackResult struct {
	Setting    float64
	Error      float64
	Iterations int
	Converged  bool
	History    []float64
}

// Run applies setting = initial + PID(error) to param of l after every
// measurement. The lattice is left at the last setting.
func (f *Feedback) Run(ctx context.Context, l lattice.Element, param string, measure Measure) (*FeedbackResult, error) {
	if l == nil || measure == nil {
		return nil, fmt.Errorf("%w: feedback needs a lattice and a measurement", beam.ErrConfiguration)
	}
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxIter := f.MaxIter
	if maxIter <= 0 {
		maxIter = 100
	}

	v, err := l.Parameter(param)
	if err != nil {
		return nil, err
	}
	if v.Size() != 1 {
		return nil, fmt.Errorf("%w: feedback parameter %s has shape %v, want a scalar", beam.ErrShape, param, v.Shape())
	}
	initial, shape := v.Raw()[0], v.Shape()
	f.Reset()

	res := &FeedbackResult{Setting: initial, History: make([]float64, 0, maxIter)}
	for res.Iterations < maxIter {
		y, err := measure(ctx)
		if err != nil {
			return nil, err
		}
		e := f.Target - y
		res.Error = e
		res.History = append(res.History, e)
		if math.Abs(e) <= f.Tol {
			res.Converged = true
			break
		}

		res.Setting = initial + f.Compute(e)
		if err := l.SetParameter(param, tensor.Full(shape, res.Setting)); err != nil {
			return nil, err
		}
		res.Iterations++
		logger.Debug("feedback step",
			zap.Int("iteration", res.Iterations),
			zap.Float64("error", e),
			zap.Float64("setting", res.Setting),
		)
	}
	return res, nil
}
