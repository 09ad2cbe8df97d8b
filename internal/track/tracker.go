// Package track propagates beams through a lattice element by element,
// recording statistics at every station.
package track

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/lattice"
	"github.com/san-kum/beamline/internal/stats"
)

type Tracker struct {
	lattice   lattice.Element
	logger    *zap.Logger
	metrics   []Metric
	observers []Observer
}

type Option func(*Tracker)

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

func WithMetric(m Metric) Option     { return func(t *Tracker) { t.AddMetric(m) } }
func WithObserver(o Observer) Option { return func(t *Tracker) { t.AddObserver(o) } }

func New(l lattice.Element, opts ...Option) *Tracker {
	t := &Tracker{
		lattice:   l,
		logger:    zap.NewNop(),
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) AddMetric(m Metric)     { t.metrics = append(t.metrics, m) }
func (t *Tracker) AddObserver(o Observer) { t.observers = append(t.observers, o) }

// Elements returns the leaf elements in tracking order.
func (t *Tracker) Elements() []lattice.Element {
	if seg, ok := t.lattice.(*lattice.Segment); ok {
		return seg.Flatten()
	}
	return []lattice.Element{t.lattice}
}

// Run tracks b through every leaf element. The final beam equals
// lattice.Track(b). ctx is checked between elements; on cancellation the
// partial result is returned with ctx.Err().
func (t *Tracker) Run(ctx context.Context, b beam.Beam) (*Result, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil beam", beam.ErrInvalidParameter)
	}
	elements := t.Elements()
	result := &Result{
		Stations: make([]Station, 0, len(elements)+1),
		Metrics:  make(map[string]float64),
	}
	for _, m := range t.metrics {
		m.Reset()
	}

	t.logger.Debug("tracking started",
		zap.String("lattice", t.lattice.Name()),
		zap.Int("elements", len(elements)),
		zap.Stringer("batch", b.BatchShape()),
	)

	s := 0.0
	t.record(result, Station{Index: 0, Element: KindStart, Kind: KindStart}, b)

	current := b
	for i, e := range elements {
		select {
		case <-ctx.Done():
			result.Beam = current
			return result, ctx.Err()
		default:
		}

		next, err := e.Track(current)
		if err != nil {
			t.logger.Warn("element failed", zap.String("element", e.Name()), zap.Error(err))
			return nil, fmt.Errorf("element %d (%s): %w", i, e.Name(), err)
		}
		length, err := e.Length()
		if err != nil {
			return nil, fmt.Errorf("element %d (%s): %w", i, e.Name(), err)
		}
		if raw := length.Raw(); len(raw) > 0 {
			s += raw[0]
		}
		t.record(result, Station{Index: i + 1, Element: e.Name(), Kind: e.Kind(), S: s}, next)
		current = next
	}

	result.Beam = current
	for _, m := range t.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	t.logger.Debug("tracking finished", zap.Int("stations", len(result.Stations)), zap.Float64("s", s))
	return result, nil
}

func (t *Tracker) record(result *Result, st Station, b beam.Beam) {
	st.Beam = b
	st.Summary = stats.Summarize(b)
	st.EmittanceX = stats.Emittance(b, beam.Horizontal).Data()
	st.EmittanceY = stats.Emittance(b, beam.Vertical).Data()

	for _, m := range t.metrics {
		m.Observe(st)
	}
	for _, o := range t.observers {
		o.OnStation(st)
	}
	result.Stations = append(result.Stations, st)
}
