package track

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/lattice"
)

// Sweep runs one independent tracking per value, concurrently. Build must
// return a fresh lattice and beam for every call since runs share nothing.
type Sweep struct {
	Build   func(value float64) (lattice.Element, beam.Beam, error)
	Metrics func() []Metric
	Limit   int
	Logger  *zap.Logger
}

// Run returns results in the order of values. The first failure cancels
// the remaining runs.
func (s *Sweep) Run(ctx context.Context, values []float64) ([]*Result, error) {
	if s.Build == nil {
		return nil, fmt.Errorf("%w: sweep has no Build function", beam.ErrConfiguration)
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := s.Limit
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result, len(values))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, v := range values {
		g.Go(func() error {
			l, b, err := s.Build(v)
			if err != nil {
				return fmt.Errorf("sweep value %g: %w", v, err)
			}
			opts := []Option{WithLogger(logger.With(zap.Int("run", i)))}
			if s.Metrics != nil {
				for _, m := range s.Metrics() {
					opts = append(opts, WithMetric(m))
				}
			}
			r, err := New(l, opts...).Run(ctx, b)
			if err != nil {
				return fmt.Errorf("sweep value %g: %w", v, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Debug("sweep finished", zap.Int("runs", len(values)), zap.Int("limit", limit))
	return results, nil
}
