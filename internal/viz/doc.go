// Package viz renders tracking results in the terminal.
//
//   - [SummaryTable]: per-station moments styled with lipgloss
//   - [EnvelopePlot] and [OrbitPlot]: asciigraph line plots along the lattice
//   - [PhaseScatter]: Braille scatter of a particle distribution
//   - [TuneModel]: Bubble Tea model for steering one corrector by hand
//
// # Key Bindings (TuneModel)
//
//	←/→   - Decrease/increase the corrector angle
//	↑/↓   - Change the step size
//	0     - Reset the angle to zero
//	T     - Cycle color themes
//	Q     - Quit
package viz
