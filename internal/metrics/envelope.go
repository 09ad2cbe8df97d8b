// Package metrics reduces tracked stations to scalar figures of merit.
package metrics

import (
	"math"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/track"
)

// MaxBeamSize is the largest transverse RMS size seen at any station and
// batch entry.
type MaxBeamSize struct {
	name string
	max  float64
}

func NewMaxBeamSize() *MaxBeamSize {
	return &MaxBeamSize{name: "max_beam_size"}
}

func (m *MaxBeamSize) Name() string { return m.name }

func (m *MaxBeamSize) Observe(st track.Station) {
	for _, c := range []beam.Coordinate{beam.X, beam.Y} {
		for _, v := range st.Summary.Sigma[c] {
			m.max = math.Max(m.max, v)
		}
	}
}

func (m *MaxBeamSize) Value() float64 { return m.max }

func (m *MaxBeamSize) Reset() { m.max = 0 }

// Aperture is the fraction of stations at which the beam, taken as the
// centroid plus nsigma RMS sizes, fits inside a round pipe of radius r.
type Aperture struct {
	name       string
	radius     float64
	nsigma     float64
	violations int
	samples    int
}

func NewAperture(radius, nsigma float64) *Aperture {
	return &Aperture{
		name:   "aperture",
		radius: radius,
		nsigma: nsigma,
	}
}

func (a *Aperture) Name() string { return a.name }

func (a *Aperture) Observe(st track.Station) {
	a.samples++
	s := st.Summary
	for i := 0; i < s.Len(); i++ {
		x := math.Abs(s.Mu[beam.X][i]) + a.nsigma*s.Sigma[beam.X][i]
		y := math.Abs(s.Mu[beam.Y][i]) + a.nsigma*s.Sigma[beam.Y][i]
		if math.Hypot(x, y) > a.radius {
			a.violations++
			return
		}
	}
}

func (a *Aperture) Value() float64 {
	if a.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(a.violations)/float64(a.samples)
}

func (a *Aperture) Reset() {
	a.violations = 0
	a.samples = 0
}
