package metrics

import (
	"fmt"
	"sort"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/track"
)

// Registry builds metrics by name. Parameters are looked up in a flat map;
// missing ones take the factory's default.
type Registry struct {
	factories map[string]func(params map[string]float64) track.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]func(map[string]float64) track.Metric),
	}

	r.factories["max_beam_size"] = func(map[string]float64) track.Metric { return NewMaxBeamSize() }
	r.factories["orbit_rms"] = func(map[string]float64) track.Metric { return NewOrbitRMS() }
	r.factories["emittance_growth_x"] = func(map[string]float64) track.Metric {
		return NewEmittanceGrowth(beam.Horizontal)
	}
	r.factories["emittance_growth_y"] = func(map[string]float64) track.Metric {
		return NewEmittanceGrowth(beam.Vertical)
	}
	r.factories["aperture"] = func(params map[string]float64) track.Metric {
		radius, ok := params["radius"]
		if !ok {
			radius = 0.01
		}
		nsigma, ok := params["nsigma"]
		if !ok {
			nsigma = 3
		}
		return NewAperture(radius, nsigma)
	}

	return r
}

func (r *Registry) Get(name string, params map[string]float64) (track.Metric, error) {
	fn, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return fn(params), nil
}

// List returns the registered metric names in sorted order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults are the metrics attached to a run when none are requested.
func (r *Registry) Defaults() []track.Metric {
	return []track.Metric{
		NewMaxBeamSize(),
		NewOrbitRMS(),
		NewEmittanceGrowth(beam.Horizontal),
		NewEmittanceGrowth(beam.Vertical),
	}
}

// Build resolves every name, failing on the first unknown one.
func (r *Registry) Build(names []string, params map[string]float64) ([]track.Metric, error) {
	if len(names) == 0 {
		return r.Defaults(), nil
	}
	out := make([]track.Metric, 0, len(names))
	for _, name := range names {
		m, err := r.Get(name, params)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
