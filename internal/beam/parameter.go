package beam

import (
	"fmt"
	"math"

	"github.com/san-kum/beamline/internal/tensor"
)

// ParameterBeam summarises a beam by its first and second moments.
type ParameterBeam struct {
	mean   *tensor.Tensor // (*batch, 6)
	cov    *tensor.Tensor // (*batch, 6, 6)
	energy *tensor.Tensor // (*batch)
	batch  tensor.Shape
}

// FromTwiss builds a Gaussian summary beam from Twiss parameters. Accepts
// energy, beta/alpha/emittance per plane, sigma_tau, sigma_p and mu_*.
func FromTwiss(opts ...Option) (*ParameterBeam, error) {
	s, err := resolve(parameterTwiss, opts)
	if err != nil {
		return nil, err
	}
	m, err := twissMoments(s)
	if err != nil {
		return nil, err
	}
	return fromMoments(m), nil
}

// FromParameters builds a summary beam from per-coordinate sigmas, means
// and correlations, or from explicit moments given with [WithMoments].
func FromParameters(opts ...Option) (*ParameterBeam, error) {
	s, err := resolve(parameterParams, opts)
	if err != nil {
		return nil, err
	}
	m, err := parameterMoments(s)
	if err != nil {
		return nil, err
	}
	return fromMoments(m), nil
}

func fromMoments(m *moments) *ParameterBeam {
	return &ParameterBeam{mean: m.mean, cov: m.cov, energy: m.energy, batch: m.batch}
}

func (b *ParameterBeam) BatchShape() tensor.Shape { return b.batch.Clone() }
func (b *ParameterBeam) Energy() *tensor.Tensor   { return b.energy.Clone() }
func (b *ParameterBeam) Mean() *tensor.Tensor     { return b.mean.Clone() }
func (b *ParameterBeam) Cov() *tensor.Tensor      { return b.cov.Clone() }

// Mu reads one component of the mean vector.
func (b *ParameterBeam) Mu(c Coordinate) *tensor.Tensor {
	return b.component(b.mean.Raw(), Dim, int(c), nil)
}

// Sigma reads the square root of one diagonal covariance entry.
func (b *ParameterBeam) Sigma(c Coordinate) *tensor.Tensor {
	return b.component(b.cov.Raw(), Dim*Dim, int(c)*Dim+int(c), math.Sqrt)
}

func (b *ParameterBeam) component(src []float64, stride, off int, f func(float64) float64) *tensor.Tensor {
	n := b.batch.NumElements()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v := src[i*stride+off]
		if f != nil {
			v = f(v)
		}
		out[i] = v
	}
	return tensor.Wrap(out, b.batch)
}

func (b *ParameterBeam) MuX() *tensor.Tensor      { return b.Mu(X) }
func (b *ParameterBeam) MuXP() *tensor.Tensor     { return b.Mu(XP) }
func (b *ParameterBeam) MuY() *tensor.Tensor      { return b.Mu(Y) }
func (b *ParameterBeam) MuYP() *tensor.Tensor     { return b.Mu(YP) }
func (b *ParameterBeam) MuTau() *tensor.Tensor    { return b.Mu(Tau) }
func (b *ParameterBeam) MuP() *tensor.Tensor      { return b.Mu(P) }
func (b *ParameterBeam) SigmaX() *tensor.Tensor   { return b.Sigma(X) }
func (b *ParameterBeam) SigmaXP() *tensor.Tensor  { return b.Sigma(XP) }
func (b *ParameterBeam) SigmaY() *tensor.Tensor   { return b.Sigma(Y) }
func (b *ParameterBeam) SigmaYP() *tensor.Tensor  { return b.Sigma(YP) }
func (b *ParameterBeam) SigmaTau() *tensor.Tensor { return b.Sigma(Tau) }
func (b *ParameterBeam) SigmaP() *tensor.Tensor   { return b.Sigma(P) }

// Transform maps the mean through R·μ + D and the covariance through
// R·Σ·Rᵀ.
func (b *ParameterBeam) Transform(m LinearMap) (Beam, error) {
	batch, err := tensor.BroadcastShapes(b.batch, m.BatchShape())
	if err != nil {
		return nil, err
	}
	ib, err := tensor.NewIndexer(b.batch, batch)
	if err != nil {
		return nil, err
	}
	im, err := tensor.NewIndexer(m.BatchShape(), batch)
	if err != nil {
		return nil, err
	}
	energy, err := b.energy.BroadcastTo(batch)
	if err != nil {
		return nil, err
	}

	n := batch.NumElements()
	mean := make([]float64, n*Dim)
	cov := make([]float64, n*Dim*Dim)
	src, srcCov := b.mean.Raw(), b.cov.Raw()
	rs, ds := m.R.Raw(), m.D.Raw()

	for o := 0; o < n; o++ {
		bi, mi := ib.Index(o), im.Index(o)
		r := rs[mi*Dim*Dim : (mi+1)*Dim*Dim]
		matVec(mean[o*Dim:(o+1)*Dim], r, src[bi*Dim:(bi+1)*Dim])
		for i := 0; i < Dim; i++ {
			mean[o*Dim+i] += ds[mi*Dim+i]
		}
		congruence(cov[o*Dim*Dim:(o+1)*Dim*Dim], r, srcCov[bi*Dim*Dim:(bi+1)*Dim*Dim])
	}

	return &ParameterBeam{
		mean:   tensor.Wrap(mean, batch.Concat(Dim)),
		cov:    tensor.Wrap(cov, batch.Concat(Dim, Dim)),
		energy: energy,
		batch:  batch,
	}, nil
}

// Broadcast returns a beam with batch shape exactly shape.
func (b *ParameterBeam) Broadcast(shape tensor.Shape) (Beam, error) {
	if !b.batch.CanBroadcastTo(shape) {
		return nil, fmt.Errorf("%w: beam batch %v cannot broadcast to %v", ErrShape, b.batch, shape)
	}
	mean, err := b.mean.BroadcastTo(shape.Concat(Dim))
	if err != nil {
		return nil, err
	}
	cov, err := b.cov.BroadcastTo(shape.Concat(Dim, Dim))
	if err != nil {
		return nil, err
	}
	energy, err := b.energy.BroadcastTo(shape)
	if err != nil {
		return nil, err
	}
	return &ParameterBeam{mean: mean, cov: cov, energy: energy, batch: shape.Clone()}, nil
}

// Index selects entry i of the leading batch axis.
func (b *ParameterBeam) Index(i int) (Beam, error) {
	if len(b.batch) == 0 {
		return nil, fmt.Errorf("%w: beam has no batch axis", ErrShape)
	}
	mean, err := b.mean.Index(i)
	if err != nil {
		return nil, err
	}
	cov, err := b.cov.Index(i)
	if err != nil {
		return nil, err
	}
	energy, err := b.energy.Index(i)
	if err != nil {
		return nil, err
	}
	return &ParameterBeam{mean: mean, cov: cov, energy: energy, batch: b.batch[1:].Clone()}, nil
}

func (b *ParameterBeam) String() string {
	return fmt.Sprintf("ParameterBeam(batch=%v, mu_x=%v, sigma_x=%v, energy=%v)", b.batch, b.MuX(), b.SigmaX(), b.energy)
}
