package beam

import (
	"errors"

	"github.com/san-kum/beamline/internal/tensor"
)

// Domain errors shared by the beam, lattice and stats packages.
var (
	// ErrConfiguration indicates an option or parameter that does not belong
	// to the chosen variant, a repeated option, or conflicting option groups.
	ErrConfiguration = errors.New("beam: configuration error")

	// ErrInvalidParameter indicates a value outside its physical domain.
	ErrInvalidParameter = errors.New("beam: invalid parameter")

	// ErrShape indicates incompatible batch shapes. Every
	// *tensor.BroadcastError matches it.
	ErrShape = tensor.ErrShape
)
