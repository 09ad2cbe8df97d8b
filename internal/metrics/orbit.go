package metrics

import (
	"math"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/track"
)

// OrbitRMS is the RMS transverse centroid offset over all stations and
// batch entries.
type OrbitRMS struct {
	name    string
	sum     float64
	samples int
}

func NewOrbitRMS() *OrbitRMS {
	return &OrbitRMS{name: "orbit_rms"}
}

func (o *OrbitRMS) Name() string { return o.name }

func (o *OrbitRMS) Observe(st track.Station) {
	s := st.Summary
	for i := 0; i < s.Len(); i++ {
		x, y := s.Mu[beam.X][i], s.Mu[beam.Y][i]
		o.sum += x*x + y*y
		o.samples++
	}
}

func (o *OrbitRMS) Value() float64 {
	if o.samples == 0 {
		return 0
	}
	return math.Sqrt(o.sum / float64(o.samples))
}

func (o *OrbitRMS) Reset() {
	o.sum = 0
	o.samples = 0
}
