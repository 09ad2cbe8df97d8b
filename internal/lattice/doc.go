// Package lattice provides beamline elements and their composition.
//
// Every element satisfies [Element]: it tracks a [beam.Beam] to a new beam
// of the same variant, broadcasting its own parameter batch shape against
// the beam's. Linear elements additionally expose their affine transfer map
// through [Linear]. The map is rebuilt from the current parameter values on
// every call, so [Element.SetParameter] takes effect on the next Track.
//
// A [Segment] is an ordered, possibly nested, sequence of elements and is
// itself an Element.
package lattice
