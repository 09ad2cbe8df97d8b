package track

import (
	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/stats"
)

// KindStart marks the station recording the incoming beam.
const KindStart = "start"

// Station is the beam state recorded after one element.
type Station struct {
	Index   int
	Element string
	Kind    string

	// S is the cumulative position in m of batch entry 0.
	S float64

	Summary    stats.Summary
	EmittanceX []float64
	EmittanceY []float64

	// Beam is the beam leaving the element.
	Beam beam.Beam
}

type Metric interface {
	Name() string
	Observe(st Station)
	Value() float64
	Reset()
}

type Observer interface {
	OnStation(st Station)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(st Station)

func (f ObserverFunc) OnStation(st Station) { f(st) }

type Result struct {
	Beam     beam.Beam
	Stations []Station
	Metrics  map[string]float64
}
