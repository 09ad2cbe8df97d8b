package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/lattice"
	"github.com/san-kum/beamline/internal/tensor"
)

// Beam kinds and sources.
const (
	KindParameter = "parameter"
	KindParticle  = "particle"

	SourceTwiss      = "twiss"
	SourceParameters = "parameters"
)

type Config struct {
	Name    string        `yaml:"name"`
	Beam    BeamConfig    `yaml:"beam"`
	Lattice LatticeConfig `yaml:"lattice"`
}

// BeamConfig describes the incoming beam. Unset values take the beam
// package defaults.
type BeamConfig struct {
	Kind         string  `yaml:"kind"`
	Source       string  `yaml:"source"`
	NumParticles int     `yaml:"num_particles,omitempty"`
	Seed         *uint64 `yaml:"seed,omitempty"`
	Broadcast    []int   `yaml:"broadcast,omitempty,flow"`

	Energy TensorValue `yaml:"energy,omitempty"`

	BetaX      TensorValue `yaml:"beta_x,omitempty"`
	AlphaX     TensorValue `yaml:"alpha_x,omitempty"`
	EmittanceX TensorValue `yaml:"emittance_x,omitempty"`
	BetaY      TensorValue `yaml:"beta_y,omitempty"`
	AlphaY     TensorValue `yaml:"alpha_y,omitempty"`
	EmittanceY TensorValue `yaml:"emittance_y,omitempty"`

	MuX   TensorValue `yaml:"mu_x,omitempty"`
	MuXP  TensorValue `yaml:"mu_xp,omitempty"`
	MuY   TensorValue `yaml:"mu_y,omitempty"`
	MuYP  TensorValue `yaml:"mu_yp,omitempty"`
	MuTau TensorValue `yaml:"mu_tau,omitempty"`
	MuP   TensorValue `yaml:"mu_p,omitempty"`

	SigmaX   TensorValue `yaml:"sigma_x,omitempty"`
	SigmaXP  TensorValue `yaml:"sigma_xp,omitempty"`
	SigmaY   TensorValue `yaml:"sigma_y,omitempty"`
	SigmaYP  TensorValue `yaml:"sigma_yp,omitempty"`
	SigmaTau TensorValue `yaml:"sigma_tau,omitempty"`
	SigmaP   TensorValue `yaml:"sigma_p,omitempty"`

	CorX   TensorValue `yaml:"cor_x,omitempty"`
	CorY   TensorValue `yaml:"cor_y,omitempty"`
	CorTau TensorValue `yaml:"cor_tau,omitempty"`
}

type LatticeConfig struct {
	Name      string          `yaml:"name,omitempty"`
	Broadcast []int           `yaml:"broadcast,omitempty,flow"`
	Elements  []ElementConfig `yaml:"elements"`
}

// ElementConfig describes one element. Type "segment" nests Elements.
type ElementConfig struct {
	Type            string          `yaml:"type"`
	Name            string          `yaml:"name,omitempty"`
	Length          TensorValue     `yaml:"length,omitempty"`
	HorizontalAngle TensorValue     `yaml:"horizontal_angle,omitempty"`
	VerticalAngle   TensorValue     `yaml:"vertical_angle,omitempty"`
	K1              TensorValue     `yaml:"k1,omitempty"`
	Elements        []ElementConfig `yaml:"elements,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Name: "default",
		Beam: BeamConfig{Kind: KindParameter, Source: SourceTwiss},
		Lattice: LatticeConfig{
			Elements: []ElementConfig{{Type: "drift", Length: S(1)}},
		},
	}
}

// Load reads a YAML config on top of DefaultConfig. Unknown fields are
// rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", beam.ErrConfiguration, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a copy that shares no slices with c. Tensors are treated
// as immutable and shared.
func (c *Config) Clone() *Config {
	out := *c
	out.Beam.Broadcast = append([]int(nil), c.Beam.Broadcast...)
	if c.Beam.Seed != nil {
		seed := *c.Beam.Seed
		out.Beam.Seed = &seed
	}
	out.Lattice.Broadcast = append([]int(nil), c.Lattice.Broadcast...)
	out.Lattice.Elements = cloneElements(c.Lattice.Elements)
	return &out
}

func cloneElements(in []ElementConfig) []ElementConfig {
	if in == nil {
		return nil
	}
	out := make([]ElementConfig, len(in))
	for i, e := range in {
		out[i] = e
		out[i].Elements = cloneElements(e.Elements)
	}
	return out
}

// BuildBeam constructs the incoming beam. Fields that do not apply to the
// chosen kind and source fail with beam.ErrConfiguration.
func (c *Config) BuildBeam() (beam.Beam, error) {
	bc := c.Beam
	opts := bc.options()

	var (
		b   beam.Beam
		err error
	)
	switch {
	case bc.Kind == KindParameter && bc.Source == SourceTwiss:
		b, err = beam.FromTwiss(opts...)
	case bc.Kind == KindParameter && bc.Source == SourceParameters:
		b, err = beam.FromParameters(opts...)
	case bc.Kind == KindParticle && bc.Source == SourceTwiss:
		b, err = beam.ParticleFromTwiss(opts...)
	case bc.Kind == KindParticle && bc.Source == SourceParameters:
		b, err = beam.ParticleFromParameters(opts...)
	default:
		return nil, fmt.Errorf("%w: unknown beam kind %q / source %q", beam.ErrConfiguration, bc.Kind, bc.Source)
	}
	if err != nil {
		return nil, fmt.Errorf("beam: %w", err)
	}
	if bc.Broadcast != nil {
		return b.Broadcast(tensor.Shape(bc.Broadcast))
	}
	return b, nil
}

func (bc BeamConfig) options() []beam.Option {
	var opts []beam.Option
	add := func(v TensorValue, opt func(*tensor.Tensor) beam.Option) {
		if !v.IsZero() {
			opts = append(opts, opt(v.t))
		}
	}
	add(bc.Energy, beam.WithEnergy)
	add(bc.BetaX, beam.WithBetaX)
	add(bc.AlphaX, beam.WithAlphaX)
	add(bc.EmittanceX, beam.WithEmittanceX)
	add(bc.BetaY, beam.WithBetaY)
	add(bc.AlphaY, beam.WithAlphaY)
	add(bc.EmittanceY, beam.WithEmittanceY)
	add(bc.MuX, beam.WithMuX)
	add(bc.MuXP, beam.WithMuXP)
	add(bc.MuY, beam.WithMuY)
	add(bc.MuYP, beam.WithMuYP)
	add(bc.MuTau, beam.WithMuTau)
	add(bc.MuP, beam.WithMuP)
	add(bc.SigmaX, beam.WithSigmaX)
	add(bc.SigmaXP, beam.WithSigmaXP)
	add(bc.SigmaY, beam.WithSigmaY)
	add(bc.SigmaYP, beam.WithSigmaYP)
	add(bc.SigmaTau, beam.WithSigmaTau)
	add(bc.SigmaP, beam.WithSigmaP)
	add(bc.CorX, beam.WithCorX)
	add(bc.CorY, beam.WithCorY)
	add(bc.CorTau, beam.WithCorTau)
	if bc.NumParticles != 0 {
		opts = append(opts, beam.WithNumParticles(bc.NumParticles))
	}
	if bc.Seed != nil {
		opts = append(opts, beam.WithSeed(*bc.Seed))
	}
	return opts
}

// BuildLattice constructs the lattice as a segment.
func (c *Config) BuildLattice() (*lattice.Segment, error) {
	elements, err := buildElements(c.Lattice.Elements)
	if err != nil {
		return nil, err
	}
	var opts []lattice.Option
	if name := c.Lattice.Name; name != "" {
		opts = append(opts, lattice.WithName(name))
	} else if c.Name != "" {
		opts = append(opts, lattice.WithName(c.Name))
	}
	seg, err := lattice.NewSegment(elements, opts...)
	if err != nil {
		return nil, err
	}
	if c.Lattice.Broadcast == nil {
		return seg, nil
	}
	wide, err := seg.Broadcast(tensor.Shape(c.Lattice.Broadcast))
	if err != nil {
		return nil, err
	}
	return wide.(*lattice.Segment), nil
}

func buildElements(configs []ElementConfig) ([]lattice.Element, error) {
	elements := make([]lattice.Element, 0, len(configs))
	for i, ec := range configs {
		e, err := ec.build()
		if err != nil {
			return nil, fmt.Errorf("lattice element %d (%s): %w", i, ec.Type, err)
		}
		elements = append(elements, e)
	}
	return elements, nil
}

func (ec ElementConfig) build() (lattice.Element, error) {
	var opts []lattice.Option
	if ec.Name != "" {
		opts = append(opts, lattice.WithName(ec.Name))
	}
	add := func(v TensorValue, opt func(*tensor.Tensor) lattice.Option) {
		if !v.IsZero() {
			opts = append(opts, opt(v.t))
		}
	}
	add(ec.Length, lattice.WithLength)
	add(ec.HorizontalAngle, lattice.WithHorizontalAngle)
	add(ec.VerticalAngle, lattice.WithVerticalAngle)
	add(ec.K1, lattice.WithK1)

	if ec.Type != lattice.KindSegment && len(ec.Elements) > 0 {
		return nil, fmt.Errorf("%w: only segments have elements", beam.ErrConfiguration)
	}

	switch ec.Type {
	case "drift":
		return lattice.NewDrift(opts...)
	case "hcor", lattice.KindHorizontalCorrector:
		return lattice.NewHorizontalCorrector(opts...)
	case "vcor", lattice.KindVerticalCorrector:
		return lattice.NewVerticalCorrector(opts...)
	case "quad", lattice.KindQuadrupole:
		return lattice.NewQuadrupole(opts...)
	case lattice.KindMarker:
		return lattice.NewMarker(opts...)
	case lattice.KindBPM:
		return lattice.NewBPM(opts...)
	case lattice.KindSegment:
		children, err := buildElements(ec.Elements)
		if err != nil {
			return nil, err
		}
		return lattice.NewSegment(children, opts...)
	default:
		return nil, fmt.Errorf("%w: unknown element type %q", beam.ErrConfiguration, ec.Type)
	}
}
