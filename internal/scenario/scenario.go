// Package scenario runs scripted sequences of tracking runs described in
// YAML.
package scenario

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/config"
	"github.com/san-kum/beamline/internal/metrics"
	"github.com/san-kum/beamline/internal/storage"
	"github.com/san-kum/beamline/internal/tensor"
	"github.com/san-kum/beamline/internal/track"
)

// Scenario is an ordered list of tracking runs.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`

	// dir resolves relative config paths.
	dir string
}

// Step tracks one preset or config file. Params override lattice
// parameters by qualified name, filling the parameter's batch shape.
type Step struct {
	Preset  string             `yaml:"preset,omitempty"`
	Config  string             `yaml:"config,omitempty"`
	Params  map[string]float64 `yaml:"params,omitempty"`
	Metrics []string           `yaml:"metrics,omitempty,flow"`
	SaveAs  string             `yaml:"save_as,omitempty"`
}

// StepResult is the outcome of one step. RunID is empty when the runner
// has no store.
type StepResult struct {
	Index  int
	Name   string
	Result *track.Result
	RunID  string
}

// Load reads a scenario file. Config paths in its steps are resolved
// against the file's directory.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.dir = filepath.Dir(path)
	return sc, nil
}

func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", beam.ErrConfiguration, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks that every step names exactly one source.
func (sc *Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w: scenario %q has no steps", beam.ErrConfiguration, sc.Name)
	}
	for i, st := range sc.Steps {
		if (st.Preset == "") == (st.Config == "") {
			return fmt.Errorf("%w: step %d needs exactly one of preset and config", beam.ErrConfiguration, i+1)
		}
	}
	return nil
}

func (sc *Scenario) config(st Step) (*config.Config, error) {
	if st.Preset != "" {
		cfg := config.GetPreset(st.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("%w: unknown preset %q", beam.ErrConfiguration, st.Preset)
		}
		return cfg, nil
	}
	path := st.Config
	if !filepath.IsAbs(path) && sc.dir != "" {
		path = filepath.Join(sc.dir, path)
	}
	return config.Load(path)
}

// Runner executes scenarios. Store and Logger are optional.
type Runner struct {
	Registry *metrics.Registry
	Store    *storage.Store
	Logger   *zap.Logger
}

func NewRunner(store *storage.Store, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Registry: metrics.NewRegistry(), Store: store, Logger: logger}
}

// Run executes the steps in order and stops at the first failure,
// returning the results completed so far.
func (r *Runner) Run(ctx context.Context, sc *Scenario) ([]StepResult, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := r.Registry
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	if r.Store != nil {
		if err := r.Store.Init(); err != nil {
			return nil, err
		}
	}

	results := make([]StepResult, 0, len(sc.Steps))
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := r.step(ctx, sc, i, st, registry, logger)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) step(ctx context.Context, sc *Scenario, i int, st Step, registry *metrics.Registry, logger *zap.Logger) (StepResult, error) {
	cfg, err := sc.config(st)
	if err != nil {
		return StepResult{}, err
	}
	b, err := cfg.BuildBeam()
	if err != nil {
		return StepResult{}, err
	}
	seg, err := cfg.BuildLattice()
	if err != nil {
		return StepResult{}, err
	}

	names := make([]string, 0, len(st.Params))
	for name := range st.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cur, err := seg.Parameter(name)
		if err != nil {
			return StepResult{}, err
		}
		if err := seg.SetParameter(name, tensor.Full(cur.Shape(), st.Params[name])); err != nil {
			return StepResult{}, err
		}
	}

	ms, err := registry.Build(st.Metrics, nil)
	if err != nil {
		return StepResult{}, err
	}
	opts := []track.Option{track.WithLogger(logger)}
	for _, m := range ms {
		opts = append(opts, track.WithMetric(m))
	}
	tracker := track.New(seg, opts...)
	res, err := tracker.Run(ctx, b)
	if err != nil {
		return StepResult{}, err
	}

	name := st.SaveAs
	if name == "" {
		name = cfg.Name
	}
	out := StepResult{Index: i, Name: name, Result: res}
	logger.Info("scenario step done",
		zap.String("scenario", sc.Name),
		zap.Int("step", i+1),
		zap.String("name", name),
		zap.Int("params", len(st.Params)),
	)

	if r.Store == nil {
		return out, nil
	}
	meta := storage.RunMetadata{
		Name:         name,
		BeamKind:     cfg.Beam.Kind,
		NumParticles: cfg.Beam.NumParticles,
		Elements:     len(tracker.Elements()),
	}
	if cfg.Beam.Seed != nil {
		meta.Seed = *cfg.Beam.Seed
	}
	if out.RunID, err = r.Store.Save(meta, res); err != nil {
		return StepResult{}, err
	}
	return out, nil
}
