package beam

import "fmt"

// Coordinate indexes the 6D phase-space vector.
type Coordinate int

const (
	X Coordinate = iota
	XP
	Y
	YP
	Tau
	P
)

// Dim is the phase-space dimension.
const Dim = 6

var coordinateNames = [Dim]string{"x", "xp", "y", "yp", "tau", "p"}

func (c Coordinate) String() string {
	if c < 0 || int(c) >= Dim {
		return fmt.Sprintf("Coordinate(%d)", int(c))
	}
	return coordinateNames[c]
}

// Coordinates lists all coordinates in canonical order.
func Coordinates() []Coordinate {
	return []Coordinate{X, XP, Y, YP, Tau, P}
}

// Plane is a transverse plane.
type Plane int

const (
	Horizontal Plane = iota
	Vertical
)

// Position is the plane's position coordinate.
func (p Plane) Position() Coordinate {
	if p == Vertical {
		return Y
	}
	return X
}

// Angle is the plane's slope coordinate.
func (p Plane) Angle() Coordinate {
	if p == Vertical {
		return YP
	}
	return XP
}

func (p Plane) String() string {
	if p == Vertical {
		return "vertical"
	}
	return "horizontal"
}
