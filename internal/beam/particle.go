package beam

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/beamline/internal/tensor"
)

// parallelRows is the smallest number of particle rows worth splitting
// across workers.
const parallelRows = 1 << 14

// ParticleBeam is an explicit ensemble of macro-particles.
type ParticleBeam struct {
	particles *tensor.Tensor // (*batch, N, 6)
	weights   *tensor.Tensor // (*batch, N)
	energy    *tensor.Tensor // (*batch)
	batch     tensor.Shape
	n         int
	uniform   bool
}

// NewParticleBeam wraps explicit particle coordinates shaped (*batch, N, 6).
// Accepts energy and weights.
func NewParticleBeam(particles *tensor.Tensor, opts ...Option) (*ParticleBeam, error) {
	s, err := resolve(particleFromArrays, opts)
	if err != nil {
		return nil, err
	}
	if particles == nil {
		return nil, fmt.Errorf("%w: particles are nil", ErrInvalidParameter)
	}
	ps := particles.Shape()
	if len(ps) < 2 || ps[len(ps)-1] != Dim {
		return nil, fmt.Errorf("%w: particles shape %v is not (*batch, N, 6)", ErrShape, ps)
	}
	n := ps[len(ps)-2]
	if n == 0 {
		return nil, fmt.Errorf("%w: particle beam needs at least one particle", ErrInvalidParameter)
	}
	pBatch := ps[:len(ps)-2]

	energy := s.get(kwEnergy, DefaultEnergy)
	weights, hasWeights := s.values[kwWeights]
	if !hasWeights {
		weights = tensor.Scalar(1)
	}

	shapes := []tensor.Shape{pBatch, energy.Shape()}
	ws := weights.Shape()
	if len(ws) > 0 {
		if ws[len(ws)-1] != n && ws[len(ws)-1] != 1 {
			return nil, fmt.Errorf("%w: weights shape %v does not match %d particles", ErrShape, ws, n)
		}
		shapes = append(shapes, ws[:len(ws)-1])
	}
	batch, err := tensor.BroadcastShapes(shapes...)
	if err != nil {
		return nil, err
	}
	if weights.Any(func(v float64) bool { return v < 0 }) {
		return nil, fmt.Errorf("%w: negative particle weight", ErrInvalidParameter)
	}

	p, err := particles.BroadcastTo(batch.Concat(n, Dim))
	if err != nil {
		return nil, err
	}
	w, err := weights.BroadcastTo(batch.Concat(n))
	if err != nil {
		return nil, err
	}
	e, err := energy.BroadcastTo(batch)
	if err != nil {
		return nil, err
	}
	return &ParticleBeam{particles: p, weights: w, energy: e, batch: batch, n: n, uniform: !hasWeights}, nil
}

// ParticleFromTwiss samples a Gaussian ensemble matching [FromTwiss].
// Additionally accepts num_particles and seed.
func ParticleFromTwiss(opts ...Option) (*ParticleBeam, error) {
	s, err := resolve(particleTwiss, opts)
	if err != nil {
		return nil, err
	}
	m, err := twissMoments(s)
	if err != nil {
		return nil, err
	}
	return sample(m, s.numParticles, s.seed)
}

// ParticleFromParameters samples a Gaussian ensemble matching
// [FromParameters]. Additionally accepts num_particles and seed.
func ParticleFromParameters(opts ...Option) (*ParticleBeam, error) {
	s, err := resolve(particleParams, opts)
	if err != nil {
		return nil, err
	}
	m, err := parameterMoments(s)
	if err != nil {
		return nil, err
	}
	return sample(m, s.numParticles, s.seed)
}

// sample draws n standard-normal vectors once and maps them into every
// batch entry through mean + S·z, where S = V·sqrt(Λ)·Vᵀ is the symmetric
// square root of Σ = V·Λ·Vᵀ. Eigenvalues below zero from round-off are
// clamped, so semidefinite covariances work.
func sample(m *moments, n int, seed uint64) (*ParticleBeam, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	z := make([]float64, n*Dim)
	for i := range z {
		z[i] = rng.NormFloat64()
	}

	nb := m.batch.NumElements()
	out := make([]float64, nb*n*Dim)
	means, covs := m.mean.Raw(), m.cov.Raw()

	for b := 0; b < nb; b++ {
		l, err := squareRoot(covs[b*Dim*Dim : (b+1)*Dim*Dim])
		if err != nil {
			return nil, err
		}
		mu := means[b*Dim : (b+1)*Dim]
		base := b * n * Dim
		tensor.ParallelFor(n, parallelRows, func(start, end int) {
			for k := start; k < end; k++ {
				dst := out[base+k*Dim : base+(k+1)*Dim]
				matVec(dst, l, z[k*Dim:(k+1)*Dim])
				for i := range dst {
					dst[i] += mu[i]
				}
			}
		})
	}

	return &ParticleBeam{
		particles: tensor.Wrap(out, m.batch.Concat(n, Dim)),
		weights:   tensor.Ones(m.batch.Concat(n)),
		energy:    m.energy,
		batch:     m.batch,
		n:         n,
		uniform:   true,
	}, nil
}

// squareRoot returns the symmetric square root of a 6×6 covariance.
func squareRoot(cov []float64) ([]float64, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(mat.NewSymDense(Dim, append([]float64(nil), cov...)), true); !ok {
		return nil, fmt.Errorf("%w: covariance eigendecomposition failed", ErrInvalidParameter)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	l := make([]float64, Dim*Dim)
	for k, lambda := range vals {
		s := math.Sqrt(math.Max(lambda, 0))
		if s == 0 {
			continue
		}
		for i := 0; i < Dim; i++ {
			vik := vecs.At(i, k) * s
			for j := 0; j < Dim; j++ {
				l[i*Dim+j] += vik * vecs.At(j, k)
			}
		}
	}
	return l, nil
}

func (b *ParticleBeam) BatchShape() tensor.Shape { return b.batch.Clone() }
func (b *ParticleBeam) Energy() *tensor.Tensor   { return b.energy.Clone() }

// NumParticles returns the ensemble size N.
func (b *ParticleBeam) NumParticles() int { return b.n }

// Particles returns a copy of the coordinates, shape (*batch, N, 6).
func (b *ParticleBeam) Particles() *tensor.Tensor { return b.particles.Clone() }

// Weights returns a copy of the particle weights, shape (*batch, N).
func (b *ParticleBeam) Weights() *tensor.Tensor { return b.weights.Clone() }

// columns extracts the six coordinate columns of batch entry bi.
func (b *ParticleBeam) columns(bi int) [Dim][]float64 {
	var cols [Dim][]float64
	src := b.particles.Raw()[bi*b.n*Dim : (bi+1)*b.n*Dim]
	for c := range cols {
		cols[c] = make([]float64, b.n)
	}
	for k := 0; k < b.n; k++ {
		for c := 0; c < Dim; c++ {
			cols[c][k] = src[k*Dim+c]
		}
	}
	return cols
}

func (b *ParticleBeam) weightsOf(bi int) []float64 {
	if b.uniform {
		return nil
	}
	return b.weights.Raw()[bi*b.n : (bi+1)*b.n]
}

func (b *ParticleBeam) column(bi int, c Coordinate) []float64 {
	src := b.particles.Raw()[bi*b.n*Dim : (bi+1)*b.n*Dim]
	col := make([]float64, b.n)
	for k := range col {
		col[k] = src[k*Dim+int(c)]
	}
	return col
}

// Mu is the weighted mean of one coordinate over the particle axis.
func (b *ParticleBeam) Mu(c Coordinate) *tensor.Tensor {
	nb := b.batch.NumElements()
	out := make([]float64, nb)
	for i := range out {
		out[i] = stat.Mean(b.column(i, c), b.weightsOf(i))
	}
	return tensor.Wrap(out, b.batch)
}

// Sigma is the weighted, unbiased standard deviation of one coordinate.
func (b *ParticleBeam) Sigma(c Coordinate) *tensor.Tensor {
	nb := b.batch.NumElements()
	out := make([]float64, nb)
	for i := range out {
		col := b.column(i, c)
		out[i] = math.Sqrt(math.Max(covariance(col, col, b.weightsOf(i)), 0))
	}
	return tensor.Wrap(out, b.batch)
}

func (b *ParticleBeam) Mean() *tensor.Tensor {
	nb := b.batch.NumElements()
	out := make([]float64, nb*Dim)
	for i := 0; i < nb; i++ {
		cols := b.columns(i)
		for c := range cols {
			out[i*Dim+c] = stat.Mean(cols[c], b.weightsOf(i))
		}
	}
	return tensor.Wrap(out, b.batch.Concat(Dim))
}

// Cov is the weighted, unbiased covariance over the particle axis.
func (b *ParticleBeam) Cov() *tensor.Tensor {
	nb := b.batch.NumElements()
	out := make([]float64, nb*Dim*Dim)
	for i := 0; i < nb; i++ {
		cols := b.columns(i)
		w := b.weightsOf(i)
		m := out[i*Dim*Dim : (i+1)*Dim*Dim]
		for r := 0; r < Dim; r++ {
			for c := r; c < Dim; c++ {
				v := covariance(cols[r], cols[c], w)
				m[r*Dim+c] = v
				m[c*Dim+r] = v
			}
		}
	}
	return tensor.Wrap(out, b.batch.Concat(Dim, Dim))
}

// covariance is the unbiased covariance of x and y. Weights are reliability
// weights: scaling all of them by one factor leaves the result unchanged.
// With nil weights it reduces to the n-1 estimator.
func covariance(x, y, w []float64) float64 {
	if w == nil {
		if len(x) < 2 {
			return 0
		}
		return stat.Covariance(x, y, nil)
	}
	mx, my := stat.Mean(x, w), stat.Mean(y, w)
	var sum, sw, sw2 float64
	for k, wk := range w {
		sum += wk * (x[k] - mx) * (y[k] - my)
		sw += wk
		sw2 += wk * wk
	}
	if sw <= 0 {
		return 0
	}
	denom := sw - sw2/sw
	if denom <= 0 {
		return 0
	}
	return sum / denom
}

func (b *ParticleBeam) MuX() *tensor.Tensor      { return b.Mu(X) }
func (b *ParticleBeam) MuXP() *tensor.Tensor     { return b.Mu(XP) }
func (b *ParticleBeam) MuY() *tensor.Tensor      { return b.Mu(Y) }
func (b *ParticleBeam) MuYP() *tensor.Tensor     { return b.Mu(YP) }
func (b *ParticleBeam) MuTau() *tensor.Tensor    { return b.Mu(Tau) }
func (b *ParticleBeam) MuP() *tensor.Tensor      { return b.Mu(P) }
func (b *ParticleBeam) SigmaX() *tensor.Tensor   { return b.Sigma(X) }
func (b *ParticleBeam) SigmaXP() *tensor.Tensor  { return b.Sigma(XP) }
func (b *ParticleBeam) SigmaY() *tensor.Tensor   { return b.Sigma(Y) }
func (b *ParticleBeam) SigmaYP() *tensor.Tensor  { return b.Sigma(YP) }
func (b *ParticleBeam) SigmaTau() *tensor.Tensor { return b.Sigma(Tau) }
func (b *ParticleBeam) SigmaP() *tensor.Tensor   { return b.Sigma(P) }

// Transform maps every particle through R·p + D. Particle count and order
// are preserved.
func (b *ParticleBeam) Transform(m LinearMap) (Beam, error) {
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
	weights, err := b.weights.BroadcastTo(batch.Concat(b.n))
	if err != nil {
		return nil, err
	}

	n := b.n
	out := make([]float64, batch.NumElements()*n*Dim)
	src := b.particles.Raw()
	rs, ds := m.R.Raw(), m.D.Raw()

	tensor.ParallelFor(batch.NumElements()*n, parallelRows, func(start, end int) {
		for row := start; row < end; row++ {
			o, k := row/n, row%n
			bi, mi := ib.Index(o), im.Index(o)
			r := rs[mi*Dim*Dim : (mi+1)*Dim*Dim]
			d := ds[mi*Dim : (mi+1)*Dim]
			p := src[(bi*n+k)*Dim : (bi*n+k+1)*Dim]
			dst := out[row*Dim : (row+1)*Dim]
			matVec(dst, r, p)
			for i := range dst {
				dst[i] += d[i]
			}
		}
	})

	return &ParticleBeam{
		particles: tensor.Wrap(out, batch.Concat(n, Dim)),
		weights:   weights,
		energy:    energy,
		batch:     batch,
		n:         n,
		uniform:   b.uniform,
	}, nil
}

// Broadcast replicates the ensemble across batch shape shape, keeping N
// and particle order.
func (b *ParticleBeam) Broadcast(shape tensor.Shape) (Beam, error) {
	if !b.batch.CanBroadcastTo(shape) {
		return nil, fmt.Errorf("%w: beam batch %v cannot broadcast to %v", ErrShape, b.batch, shape)
	}
	p, err := b.particles.BroadcastTo(shape.Concat(b.n, Dim))
	if err != nil {
		return nil, err
	}
	w, err := b.weights.BroadcastTo(shape.Concat(b.n))
	if err != nil {
		return nil, err
	}
	e, err := b.energy.BroadcastTo(shape)
	if err != nil {
		return nil, err
	}
	return &ParticleBeam{particles: p, weights: w, energy: e, batch: shape.Clone(), n: b.n, uniform: b.uniform}, nil
}

// Index selects entry i of the leading batch axis.
func (b *ParticleBeam) Index(i int) (Beam, error) {
	if len(b.batch) == 0 {
		return nil, fmt.Errorf("%w: beam has no batch axis", ErrShape)
	}
	p, err := b.particles.Index(i)
	if err != nil {
		return nil, err
	}
	w, err := b.weights.Index(i)
	if err != nil {
		return nil, err
	}
	e, err := b.energy.Index(i)
	if err != nil {
		return nil, err
	}
	return &ParticleBeam{particles: p, weights: w, energy: e, batch: b.batch[1:].Clone(), n: b.n, uniform: b.uniform}, nil
}

// AsParameterBeam reduces the ensemble to its moments.
func (b *ParticleBeam) AsParameterBeam() *ParameterBeam {
	return &ParameterBeam{mean: b.Mean(), cov: b.Cov(), energy: b.energy.Clone(), batch: b.batch.Clone()}
}

func (b *ParticleBeam) String() string {
	return fmt.Sprintf("ParticleBeam(batch=%v, n=%d, energy=%v)", b.batch, b.n, b.energy)
}
