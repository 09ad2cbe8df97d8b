// Package beam defines the two beam representations transported through a
// lattice:
//
//   - [ParameterBeam]: mean vector and covariance matrix per batch entry
//   - [ParticleBeam]: explicit ensemble of macro-particles per batch entry
//
// Both carry a leading batch shape and a reference energy in eV, and both
// satisfy [Beam]. Phase-space vectors use the fixed coordinate order
// (x, xp, y, yp, tau, p); see [Coordinate].
//
// Beams are value-like: [Beam.Transform] and [Beam.Broadcast] return new
// beams and never write into the receiver.
//
// # Construction
//
// Constructors take functional options standing in for keyword arguments.
// Each constructor accepts a fixed set of options; passing one that belongs
// to another constructor fails with [ErrConfiguration]:
//
//	b, err := beam.FromTwiss(
//	    beam.WithEnergy(tensor.Vector(1.8e7)),
//	    beam.WithBetaX(tensor.Vector(5)),
//	    beam.WithBetaY(tensor.Vector(5)),
//	)
package beam
