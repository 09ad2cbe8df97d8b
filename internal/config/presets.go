package config

import "sort"

func seed(v uint64) *uint64 { return &v }

var Presets = map[string]*Config{
	"drift": {
		Name: "drift",
		Beam: BeamConfig{
			Kind: KindParameter, Source: SourceTwiss,
			Energy: S(1.8e7), BetaX: S(5), BetaY: S(5),
		},
		Lattice: LatticeConfig{Elements: []ElementConfig{
			{Type: "drift", Name: "D1", Length: S(1)},
			{Type: "marker", Name: "END"},
		}},
	},
	"steering": {
		Name: "steering",
		Beam: BeamConfig{
			Kind: KindParticle, Source: SourceParameters,
			NumParticles: 10_000, Seed: seed(42), Broadcast: []int{3},
			Energy: T(1.8e7),
		},
		Lattice: LatticeConfig{Elements: []ElementConfig{
			{Type: "hcor", Name: "HCOR", Length: T(0.04, 0.04, 0.04), HorizontalAngle: T(0.001, 0.003, 0.001)},
			{Type: "drift", Name: "D1", Length: T(0.5, 0.5, 0.5)},
			{Type: "bpm", Name: "BPM1"},
		}},
	},
	"orbit": {
		Name: "orbit",
		Beam: BeamConfig{
			Kind: KindParameter, Source: SourceParameters,
			Energy: S(1e8), MuX: S(5e-4), MuY: S(-3e-4),
		},
		Lattice: LatticeConfig{Elements: []ElementConfig{
			{Type: "hcor", Name: "HCOR1", Length: S(0.1)},
			{Type: "vcor", Name: "VCOR1", Length: S(0.1)},
			{Type: "drift", Name: "D1", Length: S(1.5)},
			{Type: "quad", Name: "Q1", Length: S(0.2), K1: S(4)},
			{Type: "drift", Name: "D2", Length: S(1.5)},
			{Type: "bpm", Name: "BPM1"},
		}},
	},
	"fodo": {
		Name: "fodo",
		Beam: BeamConfig{
			Kind: KindParameter, Source: SourceTwiss,
			Energy: S(1e8), BetaX: S(8), AlphaX: S(-1.2), BetaY: S(3), AlphaY: S(0.6),
			EmittanceX: S(1e-8), EmittanceY: S(1e-8),
			MuX: S(1e-3), MuY: S(-5e-4),
		},
		Lattice: LatticeConfig{Elements: []ElementConfig{
			{Type: "segment", Name: "CELL1", Elements: fodoCell()},
			{Type: "segment", Name: "CELL2", Elements: fodoCell()},
			{Type: "marker", Name: "END"},
		}},
	},
}

func fodoCell() []ElementConfig {
	return []ElementConfig{
		{Type: "quad", Length: S(0.1), K1: S(10)},
		{Type: "drift", Length: S(1)},
		{Type: "quad", Length: S(0.1), K1: S(-10)},
		{Type: "drift", Length: S(1)},
	}
}

// GetPreset returns a copy of the named preset, nil if unknown.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

// ListPresets returns the preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
