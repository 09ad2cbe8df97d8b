package optim

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/tensor"
)

// DefaultStep is the finite-difference step used when none is given.
const DefaultStep = 1e-7

// Gradient returns ∂f/∂p for every parameter, shaped like the parameter,
// by central differences with step h. Parameters are restored before
// returning.
func Gradient(ctx context.Context, p Problem, h float64) (map[string]*tensor.Tensor, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if h <= 0 {
		h = DefaultStep
	}
	orig, err := p.snapshot()
	if err != nil {
		return nil, err
	}

	grad := make(map[string]*tensor.Tensor, len(p.Params))
	for _, name := range p.Params {
		base := orig[name]
		data := base.Data()
		g := make([]float64, len(data))
		for k := range data {
			fp, err := evalAt(ctx, p, name, base, k, data[k]+h)
			if err != nil {
				_ = p.restore(orig)
				return nil, err
			}
			fm, err := evalAt(ctx, p, name, base, k, data[k]-h)
			if err != nil {
				_ = p.restore(orig)
				return nil, err
			}
			g[k] = (fp - fm) / (2 * h)
		}
		grad[name] = tensor.Wrap(g, base.Shape())
		if err := p.Lattice.SetParameter(name, base); err != nil {
			return nil, err
		}
	}
	return grad, nil
}

// evalAt sets entry k of parameter name to v and evaluates the objective.
func evalAt(ctx context.Context, p Problem, name string, base *tensor.Tensor, k int, v float64) (float64, error) {
	data := base.Data()
	data[k] = v
	if err := p.Lattice.SetParameter(name, tensor.Wrap(data, base.Shape())); err != nil {
		return 0, err
	}
	return p.Objective(ctx)
}

// GradientDescent minimises an objective with backtracking steps along
// the finite-difference gradient.
type GradientDescent struct {
	Rate    float64
	Step    float64
	MaxIter int
	Tol     float64
	Logger  *zap.Logger
}

type Solution struct {
	Params     map[string]*tensor.Tensor
	Value      float64
	Iterations int
}

// Minimize leaves the lattice at the best parameters found.
func (gd *GradientDescent) Minimize(ctx context.Context, p Problem) (*Solution, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	logger := gd.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rate, maxIter := gd.Rate, gd.MaxIter
	if rate <= 0 {
		rate = 1
	}
	if maxIter <= 0 {
		maxIter = 100
	}

	f, err := p.Objective(ctx)
	if err != nil {
		return nil, err
	}
	current, err := p.snapshot()
	if err != nil {
		return nil, err
	}

	iter := 0
	for ; iter < maxIter && f > gd.Tol; iter++ {
		grad, err := Gradient(ctx, p, gd.Step)
		if err != nil {
			return nil, err
		}
		if norm(grad) == 0 {
			break
		}

		improved := false
		for tries := 0; tries < 40; tries++ {
			candidate, err := stepFrom(current, grad, rate)
			if err != nil {
				return nil, err
			}
			if err := p.restore(candidate); err != nil {
				_ = p.restore(current)
				return nil, err
			}
			fc, err := p.Objective(ctx)
			if err != nil {
				_ = p.restore(current)
				return nil, err
			}
			if fc < f {
				f, current, improved = fc, candidate, true
				rate *= 2
				break
			}
			rate /= 2
		}
		if !improved {
			break
		}
		logger.Debug("descent step", zap.Int("iteration", iter), zap.Float64("objective", f), zap.Float64("rate", rate))
	}

	if err := p.restore(current); err != nil {
		return nil, err
	}
	return &Solution{Params: current, Value: f, Iterations: iter}, nil
}

func stepFrom(current, grad map[string]*tensor.Tensor, rate float64) (map[string]*tensor.Tensor, error) {
	out := make(map[string]*tensor.Tensor, len(current))
	for name, v := range current {
		g, ok := grad[name]
		if !ok {
			return nil, fmt.Errorf("%w: no gradient for %q", beam.ErrConfiguration, name)
		}
		next, err := tensor.Zip(v, g, func(x, d float64) float64 { return x - rate*d })
		if err != nil {
			return nil, err
		}
		out[name] = next
	}
	return out, nil
}

func norm(grad map[string]*tensor.Tensor) float64 {
	s := 0.0
	for _, g := range grad {
		for _, v := range g.Raw() {
			s += v * v
		}
	}
	return math.Sqrt(s)
}
