package metrics

import (
	"math"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/track"
)

// EmittanceGrowth is the largest relative change of the geometric
// emittance in plane between the first and the latest station, over all
// batch entries.
type EmittanceGrowth struct {
	name    string
	plane   beam.Plane
	initial []float64
	growth  float64
}

func NewEmittanceGrowth(plane beam.Plane) *EmittanceGrowth {
	name := "emittance_growth_x"
	if plane == beam.Vertical {
		name = "emittance_growth_y"
	}
	return &EmittanceGrowth{name: name, plane: plane}
}

func (e *EmittanceGrowth) Name() string { return e.name }

func (e *EmittanceGrowth) Observe(st track.Station) {
	eps := st.EmittanceX
	if e.plane == beam.Vertical {
		eps = st.EmittanceY
	}
	if e.initial == nil {
		e.initial = append([]float64(nil), eps...)
		return
	}

	if len(e.initial) == 0 {
		return
	}
	e.growth = 0
	for i, v := range eps {
		e0 := e.initial[i%len(e.initial)]
		if e0 == 0 {
			continue
		}
		e.growth = math.Max(e.growth, math.Abs(v-e0)/e0)
	}
}

func (e *EmittanceGrowth) Value() float64 { return e.growth }

func (e *EmittanceGrowth) Reset() {
	e.initial = nil
	e.growth = 0
}
