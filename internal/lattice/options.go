package lattice

import (
	"fmt"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/tensor"
)

const optName = "name"

// allowed lists the options each constructor accepts.
var allowed = map[string]map[string]bool{
	KindDrift:               {optName: true, ParamLength: true},
	KindHorizontalCorrector: {optName: true, ParamLength: true, ParamHorizontalAngle: true},
	KindVerticalCorrector:   {optName: true, ParamLength: true, ParamVerticalAngle: true},
	KindQuadrupole:          {optName: true, ParamLength: true, ParamK1: true},
	KindMarker:              {optName: true},
	KindBPM:                 {optName: true},
	KindSegment:             {optName: true},
}

// Option configures an element constructor.
type Option struct {
	key   string
	apply func(*settings) error
}

// Name returns the keyword the option sets.
func (o Option) Name() string { return o.key }

type settings struct {
	name   string
	values map[string]*tensor.Tensor
	params *parameters
}

// WithName sets the element name. Without it a name of the form
// <kind>_<n> is generated.
func WithName(name string) Option {
	return Option{key: optName, apply: func(s *settings) error {
		if name == "" {
			return fmt.Errorf("%w: empty element name", beam.ErrInvalidParameter)
		}
		s.name = name
		return nil
	}}
}

func tensorOption(key string, t *tensor.Tensor) Option {
	return Option{key: key, apply: func(s *settings) error {
		if t == nil {
			return fmt.Errorf("%w: %q is nil", beam.ErrInvalidParameter, key)
		}
		s.values[key] = t.Clone()
		return nil
	}}
}

// WithLength sets the element length in m.
func WithLength(t *tensor.Tensor) Option { return tensorOption(ParamLength, t) }

// WithHorizontalAngle sets the kick of a horizontal corrector in rad.
func WithHorizontalAngle(t *tensor.Tensor) Option { return tensorOption(ParamHorizontalAngle, t) }

// WithVerticalAngle sets the kick of a vertical corrector in rad.
func WithVerticalAngle(t *tensor.Tensor) Option { return tensorOption(ParamVerticalAngle, t) }

// WithK1 sets the quadrupole focusing strength in 1/m².
func WithK1(t *tensor.Tensor) Option { return tensorOption(ParamK1, t) }

// param declares one parameter of a constructor: its name, whether it must
// be given, and its default otherwise.
type param struct {
	name     string
	required bool
	def      float64
}

// resolve validates opts against kind and assembles the parameter set in
// the declared order.
func resolve(kind string, opts []Option, decl ...param) (*settings, error) {
	s := &settings{values: make(map[string]*tensor.Tensor)}
	seen := make(map[string]bool, len(opts))
	for _, opt := range opts {
		if opt.apply == nil {
			return nil, fmt.Errorf("%w: zero Option passed to %s", beam.ErrConfiguration, kind)
		}
		if !allowed[kind][opt.key] {
			return nil, fmt.Errorf("%w: %s does not accept %q", beam.ErrConfiguration, kind, opt.key)
		}
		if seen[opt.key] {
			return nil, fmt.Errorf("%w: %q given more than once", beam.ErrConfiguration, opt.key)
		}
		seen[opt.key] = true
		if err := opt.apply(s); err != nil {
			return nil, err
		}
	}

	p := &parameters{values: make(map[string]*tensor.Tensor, len(decl))}
	for _, d := range decl {
		v, ok := s.values[d.name]
		if !ok {
			if d.required {
				return nil, fmt.Errorf("%w: %s requires %q", beam.ErrConfiguration, kind, d.name)
			}
			v = tensor.Scalar(d.def)
		}
		p.names = append(p.names, d.name)
		p.values[d.name] = v
	}
	if _, err := tensor.BroadcastShapes(p.shapes()...); err != nil {
		return nil, fmt.Errorf("%s parameters: %w", kind, err)
	}
	s.params = p
	return s, nil
}
