package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/lattice"
	"github.com/san-kum/beamline/internal/tensor"
)

func fodo(t *testing.T, k1 *tensor.Tensor) *lattice.Segment {
	t.Helper()
	qf, err := lattice.NewQuadrupole(lattice.WithLength(tensor.Scalar(0.1)), lattice.WithK1(k1))
	require.NoError(t, err)
	qd, err := lattice.NewQuadrupole(lattice.WithLength(tensor.Scalar(0.1)), lattice.WithK1(k1.Map(func(v float64) float64 { return -v })))
	require.NoError(t, err)
	d1, err := lattice.NewDrift(lattice.WithLength(tensor.Scalar(1)))
	require.NoError(t, err)
	d2, err := lattice.NewDrift(lattice.WithLength(tensor.Scalar(1)))
	require.NoError(t, err)
	cell, err := lattice.NewSegment([]lattice.Element{qf, d1, qd, d2}, lattice.WithName("CELL"))
	require.NoError(t, err)
	return cell
}

func offsetBeam(t *testing.T) beam.Beam {
	t.Helper()
	b, err := beam.FromParameters(
		beam.WithEnergy(tensor.Scalar(1e8)),
		beam.WithMuX(tensor.Scalar(1e-3)),
		beam.WithMuY(tensor.Scalar(-5e-4)),
	)
	require.NoError(t, err)
	return b
}

func TestCellTune(t *testing.T) {
	cell := fodo(t, tensor.Scalar(10))
	m, err := CellMap(cell, tensor.Scalar(1e8))
	require.NoError(t, err)

	qx, err := CellTune(m, beam.Horizontal)
	require.NoError(t, err)
	qy, err := CellTune(m, beam.Vertical)
	require.NoError(t, err)

	require.Len(t, qx, 1)
	assert.InDelta(t, 0.178952, qx[0], 1e-5)
	assert.InDelta(t, qx[0], qy[0], 1e-9)
}

func TestCellTuneUnstable(t *testing.T) {
	d, err := lattice.NewDrift(lattice.WithLength(tensor.Scalar(2)))
	require.NoError(t, err)
	cell, err := lattice.NewSegment([]lattice.Element{d})
	require.NoError(t, err)

	m, err := CellMap(cell, tensor.Scalar(1e8))
	require.NoError(t, err)
	_, err = CellTune(m, beam.Horizontal)
	assert.ErrorIs(t, err, ErrUnstable)
}

func TestTurnByTurnMatchesCellTune(t *testing.T) {
	cell := fodo(t, tensor.Scalar(10))
	orbits, err := TurnByTurn(context.Background(), cell, offsetBeam(t), 1024)
	require.NoError(t, err)

	m, err := CellMap(cell, tensor.Scalar(1e8))
	require.NoError(t, err)

	for _, plane := range []beam.Plane{beam.Horizontal, beam.Vertical} {
		o := orbits[plane]
		require.Equal(t, 1024, o.Turns())
		want, err := CellTune(m, plane)
		require.NoError(t, err)
		got, err := Tune(o.Position[0])
		require.NoError(t, err)
		assert.InDelta(t, want[0], got, 5e-4, plane.String())
	}
}

func TestTurnByTurnBatch(t *testing.T) {
	cell := fodo(t, tensor.Vector(10, 8))
	orbits, err := TurnByTurn(context.Background(), cell, offsetBeam(t), 512)
	require.NoError(t, err)

	x := orbits[beam.Horizontal]
	require.Len(t, x.Position, 2)
	require.Len(t, x.Angle, 2)

	m, err := CellMap(cell, tensor.Scalar(1e8))
	require.NoError(t, err)
	want, err := CellTune(m, beam.Horizontal)
	require.NoError(t, err)
	require.Len(t, want, 2)
	assert.Greater(t, want[0], want[1])

	for i := range want {
		got, err := Tune(x.Position[i])
		require.NoError(t, err)
		assert.InDelta(t, want[i], got, 1e-3)
	}
}

func TestTurnByTurnCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := TurnByTurn(ctx, fodo(t, tensor.Scalar(10)), offsetBeam(t), 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTuneSinusoid(t *testing.T) {
	const q = 0.23
	readings := make([]float64, 512)
	for n := range readings {
		readings[n] = 2e-3*math.Cos(2*math.Pi*q*float64(n)+0.4) + 1e-4
	}

	got, err := Tune(readings)
	require.NoError(t, err)
	assert.InDelta(t, q, got, 1e-3)
}

func TestTuneRejects(t *testing.T) {
	_, err := Tune(make([]float64, MinTurns-1))
	assert.ErrorIs(t, err, ErrTooFewTurns)

	_, err = Tune(make([]float64, 64))
	assert.ErrorIs(t, err, beam.ErrInvalidParameter)

	_, err = TurnByTurn(context.Background(), fodo(t, tensor.Scalar(10)), offsetBeam(t), 0)
	assert.ErrorIs(t, err, beam.ErrInvalidParameter)
}
