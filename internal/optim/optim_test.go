package optim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/lattice"
	"github.com/san-kum/beamline/internal/metrics"
	"github.com/san-kum/beamline/internal/tensor"
	"github.com/san-kum/beamline/internal/track"
)

const angleParam = "HCOR.horizontal_angle"

func steering(t *testing.T) (*lattice.Segment, *lattice.BPM, beam.Beam) {
	t.Helper()
	hcor, err := lattice.NewHorizontalCorrector(lattice.WithName("HCOR"), lattice.WithLength(tensor.Scalar(0.1)))
	require.NoError(t, err)
	drift, err := lattice.NewDrift(lattice.WithLength(tensor.Scalar(1.5)))
	require.NoError(t, err)
	bpm, err := lattice.NewBPM(lattice.WithName("BPM1"))
	require.NoError(t, err)
	seg, err := lattice.NewSegment([]lattice.Element{hcor, drift, bpm})
	require.NoError(t, err)
	b, err := beam.FromParameters(beam.WithMuX(tensor.Scalar(5e-4)))
	require.NoError(t, err)
	return seg, bpm, b
}

func TestGradient(t *testing.T) {
	seg, bpm, b := steering(t)
	p := Problem{Lattice: seg, Params: []string{angleParam}, Objective: CentroidObjective(seg, b, bpm)}

	grad, err := Gradient(context.Background(), p, 0)
	require.NoError(t, err)

	// f = (5e-4 + 1.5θ)², so df/dθ at θ = 0 is 2·1.5·5e-4.
	assert.InEpsilon(t, 1.5e-3, grad[angleParam].Item(), 1e-5)

	angle, err := seg.Parameter(angleParam)
	require.NoError(t, err)
	assert.Zero(t, angle.Item(), "parameter not restored")
}

func TestGradientDescentSteersToZero(t *testing.T) {
	seg, bpm, b := steering(t)
	p := Problem{Lattice: seg, Params: []string{angleParam}, Objective: CentroidObjective(seg, b, bpm)}

	gd := &GradientDescent{MaxIter: 200, Tol: 1e-18}
	sol, err := gd.Minimize(context.Background(), p)
	require.NoError(t, err)

	assert.LessOrEqual(t, sol.Value, 1e-18)
	assert.InDelta(t, -5e-4/1.5, sol.Params[angleParam].Item(), 1e-8)

	out, err := seg.Track(b)
	require.NoError(t, err)
	assert.InDelta(t, 0, out.Mu(beam.X).Item(), 1e-9)
}

func TestGradientDescentRestoresOnObjectiveError(t *testing.T) {
	seg, bpm, b := steering(t)
	errLost := errors.New("beam lost")
	centroid := CentroidObjective(seg, b, bpm)
	obj := func(ctx context.Context) (float64, error) {
		angle, err := seg.Parameter(angleParam)
		if err != nil {
			return 0, err
		}
		if a := angle.Item(); a > 1e-3 || a < -1e-3 {
			return 0, errLost
		}
		return centroid(ctx)
	}

	gd := &GradientDescent{MaxIter: 10}
	_, err := gd.Minimize(context.Background(), Problem{Lattice: seg, Params: []string{angleParam}, Objective: obj})
	require.ErrorIs(t, err, errLost)

	angle, err := seg.Parameter(angleParam)
	require.NoError(t, err)
	assert.Zero(t, angle.Item(), "lattice left at a failed candidate")
}

func TestGridSearch(t *testing.T) {
	seg, bpm, b := steering(t)
	gs := NewGridSearch([]string{angleParam}, [][]float64{{-1e-3, -3e-4, 0, 1e-3}})

	best, val, err := gs.Search(context.Background(), Problem{Lattice: seg, Objective: CentroidObjective(seg, b, bpm)})
	require.NoError(t, err)
	assert.Equal(t, -3e-4, best[angleParam])
	assert.InDelta(t, 2.5e-9, val, 1e-15)

	angle, err := seg.Parameter(angleParam)
	require.NoError(t, err)
	assert.Zero(t, angle.Item())
}

func TestGridSearchOverMetric(t *testing.T) {
	q, err := lattice.NewQuadrupole(lattice.WithName("Q"), lattice.WithLength(tensor.Scalar(0.2)))
	require.NoError(t, err)
	d, err := lattice.NewDrift(lattice.WithLength(tensor.Scalar(3)))
	require.NoError(t, err)
	seg, err := lattice.NewSegment([]lattice.Element{q, d})
	require.NoError(t, err)
	b, err := beam.FromTwiss(beam.WithBetaX(tensor.Scalar(10)), beam.WithBetaY(tensor.Scalar(10)))
	require.NoError(t, err)

	obj := MetricObjective(seg, b, func() track.Metric { return metrics.NewMaxBeamSize() })
	gs := NewGridSearch([]string{"Q.k1"}, [][]float64{{-2, 0, 2}})
	best, _, err := gs.Search(context.Background(), Problem{Lattice: seg, Objective: obj})
	require.NoError(t, err)
	// Any nonzero k1 defocuses one plane of a round beam at a waist.
	assert.Equal(t, 0.0, best["Q.k1"])
}

func TestProblemValidation(t *testing.T) {
	_, err := Gradient(context.Background(), Problem{}, 0)
	assert.ErrorIs(t, err, beam.ErrConfiguration)

	seg, bpm, b := steering(t)
	_, err = Gradient(context.Background(), Problem{
		Lattice:   seg,
		Params:    []string{"HCOR.vertical_angle"},
		Objective: CentroidObjective(seg, b, bpm),
	}, 0)
	assert.ErrorIs(t, err, beam.ErrConfiguration)
}
