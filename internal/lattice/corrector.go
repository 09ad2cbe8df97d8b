package lattice

import (
	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/tensor"
)

// Corrector is a steering magnet acting in one transverse plane. The set of
// implementations is closed: [HorizontalCorrector] and [VerticalCorrector].
type Corrector interface {
	Linear

	// Plane is the plane the kick acts in.
	Plane() beam.Plane

	// Angle is the kick in rad.
	Angle() *tensor.Tensor

	// SetAngle changes the kick. It takes effect on the next Track.
	SetAngle(angle *tensor.Tensor) error

	corrector()
}

// HorizontalCorrector deflects the beam in x. Its map is a drift of the
// same length with the angle added to xp.
type HorizontalCorrector struct {
	base
}

// NewHorizontalCorrector requires WithLength and accepts
// WithHorizontalAngle (default 0). WithVerticalAngle is rejected.
func NewHorizontalCorrector(opts ...Option) (*HorizontalCorrector, error) {
	s, err := resolve(KindHorizontalCorrector, opts,
		param{name: ParamLength, required: true},
		param{name: ParamHorizontalAngle},
	)
	if err != nil {
		return nil, err
	}
	return &HorizontalCorrector{base: newBase(KindHorizontalCorrector, s)}, nil
}

func (c *HorizontalCorrector) corrector()        {}
func (c *HorizontalCorrector) Plane() beam.Plane { return beam.Horizontal }

// HorizontalAngle returns a copy of the kick in rad.
func (c *HorizontalCorrector) HorizontalAngle() *tensor.Tensor {
	return c.value(ParamHorizontalAngle).Clone()
}

// SetHorizontalAngle changes the kick.
func (c *HorizontalCorrector) SetHorizontalAngle(angle *tensor.Tensor) error {
	return c.SetParameter(ParamHorizontalAngle, angle)
}

func (c *HorizontalCorrector) Angle() *tensor.Tensor { return c.HorizontalAngle() }

func (c *HorizontalCorrector) SetAngle(angle *tensor.Tensor) error {
	return c.SetHorizontalAngle(angle)
}

func (c *HorizontalCorrector) TransferMap(energy *tensor.Tensor) (beam.LinearMap, error) {
	return kickMap(beam.Horizontal, c.value(ParamLength), c.value(ParamHorizontalAngle), energy)
}

func (c *HorizontalCorrector) Track(b beam.Beam) (beam.Beam, error) { return trackLinear(c, b) }

func (c *HorizontalCorrector) Broadcast(shape tensor.Shape) (Element, error) {
	nb, err := c.broadcastBase(shape)
	if err != nil {
		return nil, err
	}
	return &HorizontalCorrector{base: nb}, nil
}

// VerticalCorrector deflects the beam in y.
type VerticalCorrector struct {
	base
}

// NewVerticalCorrector requires WithLength and accepts WithVerticalAngle
// (default 0). WithHorizontalAngle is rejected.
func NewVerticalCorrector(opts ...Option) (*VerticalCorrector, error) {
	s, err := resolve(KindVerticalCorrector, opts,
		param{name: ParamLength, required: true},
		param{name: ParamVerticalAngle},
	)
	if err != nil {
		return nil, err
	}
	return &VerticalCorrector{base: newBase(KindVerticalCorrector, s)}, nil
}

func (c *VerticalCorrector) corrector()        {}
func (c *VerticalCorrector) Plane() beam.Plane { return beam.Vertical }

// VerticalAngle returns a copy of the kick in rad.
func (c *VerticalCorrector) VerticalAngle() *tensor.Tensor {
	return c.value(ParamVerticalAngle).Clone()
}

// SetVerticalAngle changes the kick.
func (c *VerticalCorrector) SetVerticalAngle(angle *tensor.Tensor) error {
	return c.SetParameter(ParamVerticalAngle, angle)
}

func (c *VerticalCorrector) Angle() *tensor.Tensor { return c.VerticalAngle() }

func (c *VerticalCorrector) SetAngle(angle *tensor.Tensor) error {
	return c.SetVerticalAngle(angle)
}

func (c *VerticalCorrector) TransferMap(energy *tensor.Tensor) (beam.LinearMap, error) {
	return kickMap(beam.Vertical, c.value(ParamLength), c.value(ParamVerticalAngle), energy)
}

func (c *VerticalCorrector) Track(b beam.Beam) (beam.Beam, error) { return trackLinear(c, b) }

func (c *VerticalCorrector) Broadcast(shape tensor.Shape) (Element, error) {
	nb, err := c.broadcastBase(shape)
	if err != nil {
		return nil, err
	}
	return &VerticalCorrector{base: nb}, nil
}

// kickMap is a drift followed by an angle offset in plane. The offset does
// not enter the covariance.
func kickMap(plane beam.Plane, length, angle, energy *tensor.Tensor) (beam.LinearMap, error) {
	slope := int(plane.Angle())
	return batchedMap(func(r, d, a []float64) {
		driftMatrix(r, a[0], a[2])
		d[slope] = a[1]
	}, length, angle, energy)
}
