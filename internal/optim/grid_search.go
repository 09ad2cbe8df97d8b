package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/tensor"
)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search evaluates the objective at every grid point, filling each
// parameter with the grid value across its batch shape. The lattice is
// restored afterwards; failing points are skipped.
func (g *GridSearch) Search(ctx context.Context, p Problem) (map[string]float64, float64, error) {
	p.Params = g.paramNames
	if err := p.validate(); err != nil {
		return nil, 0, err
	}
	if len(g.ranges) != len(g.paramNames) {
		return nil, 0, fmt.Errorf("%w: %d parameters but %d ranges", beam.ErrConfiguration, len(g.paramNames), len(g.ranges))
	}
	orig, err := p.snapshot()
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = p.restore(orig) }()

	best := math.Inf(1)
	var bestParams map[string]float64

	g.searchRecursive(ctx, p, orig, 0, make(map[string]float64), &best, &bestParams)

	if err := ctx.Err(); err != nil {
		return bestParams, best, err
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	p Problem,
	orig map[string]*tensor.Tensor,
	depth int,
	current map[string]float64,
	best *float64,
	bestParams *map[string]float64,
) {
	if ctx.Err() != nil {
		return
	}
	if depth == len(g.paramNames) {
		for name, v := range current {
			if err := p.Lattice.SetParameter(name, tensor.Full(orig[name].Shape(), v)); err != nil {
				return
			}
		}

		val, err := p.Objective(ctx)
		if err != nil {
			return
		}

		if val < *best {
			*best = val
			*bestParams = make(map[string]float64)
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.searchRecursive(ctx, p, orig, depth+1, newParams, best, bestParams)
	}
}
