package beam

import (
	"fmt"

	"github.com/san-kum/beamline/internal/tensor"
)

type keyword string

const (
	kwEnergy       keyword = "energy"
	kwBetaX        keyword = "beta_x"
	kwAlphaX       keyword = "alpha_x"
	kwEmittanceX   keyword = "emittance_x"
	kwBetaY        keyword = "beta_y"
	kwAlphaY       keyword = "alpha_y"
	kwEmittanceY   keyword = "emittance_y"
	kwMuX          keyword = "mu_x"
	kwMuXP         keyword = "mu_xp"
	kwMuY          keyword = "mu_y"
	kwMuYP         keyword = "mu_yp"
	kwMuTau        keyword = "mu_tau"
	kwMuP          keyword = "mu_p"
	kwSigmaX       keyword = "sigma_x"
	kwSigmaXP      keyword = "sigma_xp"
	kwSigmaY       keyword = "sigma_y"
	kwSigmaYP      keyword = "sigma_yp"
	kwSigmaTau     keyword = "sigma_tau"
	kwSigmaP       keyword = "sigma_p"
	kwCorX         keyword = "cor_x"
	kwCorY         keyword = "cor_y"
	kwCorTau       keyword = "cor_tau"
	kwMoments      keyword = "moments"
	kwNumParticles keyword = "num_particles"
	kwSeed         keyword = "seed"
	kwWeights      keyword = "weights"
)

// Defaults applied when an option is not given.
const (
	DefaultEnergy       = 1e8
	DefaultBeta         = 1.0
	DefaultEmittance    = 7.1971891e-13
	DefaultSigmaX       = 175.9e-6
	DefaultSigmaXP      = 4e-7
	DefaultSigmaTau     = 1e-6
	DefaultSigmaP       = 1e-6
	DefaultNumParticles = 100_000
)

// constructor names the entry point options are validated against.
type constructor string

const (
	parameterTwiss     constructor = "ParameterBeam.FromTwiss"
	parameterParams    constructor = "ParameterBeam.FromParameters"
	particleTwiss      constructor = "ParticleBeam.FromTwiss"
	particleParams     constructor = "ParticleBeam.FromParameters"
	particleFromArrays constructor = "NewParticleBeam"
)

var (
	meanKeywords  = []keyword{kwMuX, kwMuXP, kwMuY, kwMuYP, kwMuTau, kwMuP}
	twissKeywords = []keyword{kwBetaX, kwAlphaX, kwEmittanceX, kwBetaY, kwAlphaY, kwEmittanceY, kwSigmaTau, kwSigmaP}
	sigmaKeywords = []keyword{kwSigmaX, kwSigmaXP, kwSigmaY, kwSigmaYP, kwSigmaTau, kwSigmaP, kwCorX, kwCorY, kwCorTau}
	sampling      = []keyword{kwNumParticles, kwSeed}
)

var allowed = map[constructor]map[keyword]bool{
	parameterTwiss:     keywordSet([]keyword{kwEnergy}, meanKeywords, twissKeywords),
	parameterParams:    keywordSet([]keyword{kwEnergy, kwMoments}, meanKeywords, sigmaKeywords),
	particleTwiss:      keywordSet([]keyword{kwEnergy}, meanKeywords, twissKeywords, sampling),
	particleParams:     keywordSet([]keyword{kwEnergy, kwMoments}, meanKeywords, sigmaKeywords, sampling),
	particleFromArrays: keywordSet([]keyword{kwEnergy, kwWeights}),
}

func keywordSet(groups ...[]keyword) map[keyword]bool {
	set := make(map[keyword]bool)
	for _, g := range groups {
		for _, k := range g {
			set[k] = true
		}
	}
	return set
}

// Option configures a beam constructor.
type Option struct {
	key   keyword
	apply func(*settings) error
}

// Name returns the keyword the option sets.
func (o Option) Name() string { return string(o.key) }

type settings struct {
	values       map[keyword]*tensor.Tensor
	mean, cov    *tensor.Tensor
	numParticles int
	seed         uint64
}

func (s *settings) has(k keyword) bool {
	_, ok := s.values[k]
	return ok
}

// get returns the option value or a scalar default.
func (s *settings) get(k keyword, def float64) *tensor.Tensor {
	if v, ok := s.values[k]; ok {
		return v
	}
	return tensor.Scalar(def)
}

func resolve(c constructor, opts []Option) (*settings, error) {
	s := &settings{
		values:       make(map[keyword]*tensor.Tensor),
		numParticles: DefaultNumParticles,
	}
	seen := make(map[keyword]bool, len(opts))

	for _, opt := range opts {
		if opt.apply == nil {
			return nil, fmt.Errorf("%w: zero Option passed to %s", ErrConfiguration, c)
		}
		if !allowed[c][opt.key] {
			return nil, fmt.Errorf("%w: %s does not accept %q", ErrConfiguration, c, opt.key)
		}
		if seen[opt.key] {
			return nil, fmt.Errorf("%w: %q given more than once", ErrConfiguration, opt.key)
		}
		seen[opt.key] = true
		if err := opt.apply(s); err != nil {
			return nil, err
		}
	}

	if seen[kwMoments] {
		for _, k := range append(append([]keyword{}, meanKeywords...), sigmaKeywords...) {
			if seen[k] {
				return nil, fmt.Errorf("%w: %q conflicts with explicit moments", ErrConfiguration, k)
			}
		}
	}
	return s, nil
}

func tensorOption(k keyword, t *tensor.Tensor) Option {
	return Option{key: k, apply: func(s *settings) error {
		if t == nil {
			return fmt.Errorf("%w: %q is nil", ErrInvalidParameter, k)
		}
		s.values[k] = t
		return nil
	}}
}

// WithEnergy sets the reference energy in eV.
func WithEnergy(t *tensor.Tensor) Option { return tensorOption(kwEnergy, t) }

func WithBetaX(t *tensor.Tensor) Option      { return tensorOption(kwBetaX, t) }
func WithAlphaX(t *tensor.Tensor) Option     { return tensorOption(kwAlphaX, t) }
func WithEmittanceX(t *tensor.Tensor) Option { return tensorOption(kwEmittanceX, t) }
func WithBetaY(t *tensor.Tensor) Option      { return tensorOption(kwBetaY, t) }
func WithAlphaY(t *tensor.Tensor) Option     { return tensorOption(kwAlphaY, t) }
func WithEmittanceY(t *tensor.Tensor) Option { return tensorOption(kwEmittanceY, t) }

func WithMuX(t *tensor.Tensor) Option   { return tensorOption(kwMuX, t) }
func WithMuXP(t *tensor.Tensor) Option  { return tensorOption(kwMuXP, t) }
func WithMuY(t *tensor.Tensor) Option   { return tensorOption(kwMuY, t) }
func WithMuYP(t *tensor.Tensor) Option  { return tensorOption(kwMuYP, t) }
func WithMuTau(t *tensor.Tensor) Option { return tensorOption(kwMuTau, t) }
func WithMuP(t *tensor.Tensor) Option   { return tensorOption(kwMuP, t) }

func WithSigmaX(t *tensor.Tensor) Option   { return tensorOption(kwSigmaX, t) }
func WithSigmaXP(t *tensor.Tensor) Option  { return tensorOption(kwSigmaXP, t) }
func WithSigmaY(t *tensor.Tensor) Option   { return tensorOption(kwSigmaY, t) }
func WithSigmaYP(t *tensor.Tensor) Option  { return tensorOption(kwSigmaYP, t) }
func WithSigmaTau(t *tensor.Tensor) Option { return tensorOption(kwSigmaTau, t) }
func WithSigmaP(t *tensor.Tensor) Option   { return tensorOption(kwSigmaP, t) }

// WithCorX sets cov(x, xp). WithCorY and WithCorTau do the same for
// (y, yp) and (tau, p).
func WithCorX(t *tensor.Tensor) Option   { return tensorOption(kwCorX, t) }
func WithCorY(t *tensor.Tensor) Option   { return tensorOption(kwCorY, t) }
func WithCorTau(t *tensor.Tensor) Option { return tensorOption(kwCorTau, t) }

// WithWeights sets per-particle statistical weights, shape broadcastable to
// (*batch, N).
func WithWeights(t *tensor.Tensor) Option { return tensorOption(kwWeights, t) }

// WithMoments gives the mean (*batch, 6) and covariance (*batch, 6, 6)
// directly. It excludes every mu_*, sigma_* and cor_* option.
func WithMoments(mean, cov *tensor.Tensor) Option {
	return Option{key: kwMoments, apply: func(s *settings) error {
		if mean == nil || cov == nil {
			return fmt.Errorf("%w: moments need both mean and covariance", ErrInvalidParameter)
		}
		s.mean, s.cov = mean, cov
		return nil
	}}
}

// WithNumParticles sets the ensemble size of a sampled particle beam.
func WithNumParticles(n int) Option {
	return Option{key: kwNumParticles, apply: func(s *settings) error {
		if n <= 0 {
			return fmt.Errorf("%w: num_particles must be positive, got %d", ErrInvalidParameter, n)
		}
		s.numParticles = n
		return nil
	}}
}

// WithSeed fixes the sampling seed. Without it the seed is 0.
func WithSeed(seed uint64) Option {
	return Option{key: kwSeed, apply: func(s *settings) error {
		s.seed = seed
		return nil
	}}
}
