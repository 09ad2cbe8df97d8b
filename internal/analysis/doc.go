// Package analysis measures betatron motion in periodic lattices.
//
// A cell is tracked turn after turn and the centroid readings are
// analysed in two ways:
//
//   - [CellTune]: the fractional tune from the trace of the one-turn
//     transfer matrix
//   - [Tune]: the fractional tune from the dominant line of the
//     turn-by-turn spectrum
//
// The two agree for a stable linear cell:
//
//	orbit, err := analysis.TurnByTurn(ctx, cell, b, 1024)
//	q, err := analysis.Tune(orbit.Position[0])
package analysis
