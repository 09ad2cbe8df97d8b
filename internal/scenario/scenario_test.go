package scenario

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/config"
	"github.com/san-kum/beamline/internal/storage"
	"github.com/san-kum/beamline/internal/tensor"
)

const orbitStudy = `
name: orbit-study
description: kick the orbit preset
steps:
  - preset: orbit
    params:
      HCOR1.horizontal_angle: 0.001
    metrics: [orbit_rms]
    save_as: kicked
  - preset: drift
`

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(orbitStudy))
	require.NoError(t, err)

	assert.Equal(t, "orbit-study", sc.Name)
	require.Len(t, sc.Steps, 2)
	assert.Equal(t, 0.001, sc.Steps[0].Params["HCOR1.horizontal_angle"])
	assert.Equal(t, []string{"orbit_rms"}, sc.Steps[0].Metrics)
	assert.Equal(t, "drift", sc.Steps[1].Preset)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"no steps":     "name: empty\n",
		"two sources":  "steps:\n  - preset: drift\n    config: x.yaml\n",
		"no source":    "steps:\n  - save_as: x\n",
		"unknown keys": "steps:\n  - preset: drift\n    model: pendulum\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, beam.ErrConfiguration)
		})
	}
}

func TestRunMatchesDirectTracking(t *testing.T) {
	sc, err := Parse([]byte(orbitStudy))
	require.NoError(t, err)

	results, err := NewRunner(nil, nil).Run(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, results, 2)

	kicked := results[0]
	assert.Equal(t, "kicked", kicked.Name)
	assert.Empty(t, kicked.RunID)
	assert.Contains(t, kicked.Result.Metrics, "orbit_rms")
	assert.Len(t, kicked.Result.Metrics, 1)

	cfg := config.GetPreset("orbit")
	b, err := cfg.BuildBeam()
	require.NoError(t, err)
	seg, err := cfg.BuildLattice()
	require.NoError(t, err)
	require.NoError(t, seg.SetParameter("HCOR1.horizontal_angle", tensor.Scalar(1e-3)))
	want, err := seg.Track(b)
	require.NoError(t, err)

	assert.InDelta(t, want.Mu(beam.X).Item(), kicked.Result.Beam.Mu(beam.X).Item(), 1e-15)
	assert.InDelta(t, want.Mu(beam.XP).Item(), kicked.Result.Beam.Mu(beam.XP).Item(), 1e-15)

	assert.Equal(t, "drift", results[1].Name)
	assert.Len(t, results[1].Result.Metrics, 4)
}

func TestRunSaves(t *testing.T) {
	sc, err := Parse([]byte(orbitStudy))
	require.NoError(t, err)
	store := storage.New(filepath.Join(t.TempDir(), "runs"))

	results, err := NewRunner(store, nil).Run(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, strings.HasPrefix(results[0].RunID, "kicked_"))
	assert.True(t, strings.HasPrefix(results[1].RunID, "drift_"))

	runs, err := store.List()
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	meta, err := store.Load(results[0].RunID)
	require.NoError(t, err)
	assert.Equal(t, config.KindParameter, meta.BeamKind)
	assert.Contains(t, meta.Metrics, "orbit_rms")
}

func TestRunStopsAtFailedStep(t *testing.T) {
	doc := `
steps:
  - preset: drift
  - preset: drift
    params:
      NOPE.length: 1
  - preset: orbit
`
	sc, err := Parse([]byte(doc))
	require.NoError(t, err)

	results, err := NewRunner(nil, nil).Run(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2")
	assert.Len(t, results, 1)
}

func TestRunUnknownPreset(t *testing.T) {
	sc, err := Parse([]byte("steps:\n  - preset: cyclotron\n"))
	require.NoError(t, err)

	_, err = NewRunner(nil, nil).Run(context.Background(), sc)
	assert.ErrorIs(t, err, beam.ErrConfiguration)
}

func TestRunCanceled(t *testing.T) {
	sc, err := Parse([]byte(orbitStudy))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := NewRunner(nil, nil).Run(ctx, sc)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestLoadResolvesConfigPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, config.Save(filepath.Join(dir, "line.yaml"), config.GetPreset("drift")))
	path := filepath.Join(dir, "study.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: file\nsteps:\n  - config: line.yaml\n    params:\n      D1.length: 2\n"), 0644))

	sc, err := Load(path)
	require.NoError(t, err)

	results, err := NewRunner(nil, nil).Run(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, results, 1)

	stations := results[0].Result.Stations
	assert.InDelta(t, 2.0, stations[len(stations)-1].S, 1e-12)
}
