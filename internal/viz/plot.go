package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/track"
)

const (
	plotHeight = 12
	plotWidth  = 80
)

func series(stations []track.Station, entry int, pick func(st track.Station) [beam.Dim][]float64, c beam.Coordinate, scale float64) ([]float64, error) {
	out := make([]float64, len(stations))
	for i, st := range stations {
		if entry < 0 || entry >= st.Summary.Len() {
			return nil, fmt.Errorf("viz: batch entry %d out of range for station %s", entry, st.Element)
		}
		out[i] = pick(st)[c][entry] * scale
	}
	return out, nil
}

func sigmas(st track.Station) [beam.Dim][]float64 { return st.Summary.Sigma }
func mus(st track.Station) [beam.Dim][]float64    { return st.Summary.Mu }

func plotPair(stations []track.Station, entry int, pick func(track.Station) [beam.Dim][]float64, caption string) (string, error) {
	if len(stations) == 0 {
		return "", fmt.Errorf("viz: no stations to plot")
	}
	x, err := series(stations, entry, pick, beam.X, 1e3)
	if err != nil {
		return "", err
	}
	y, err := series(stations, entry, pick, beam.Y, 1e3)
	if err != nil {
		return "", err
	}
	return asciigraph.PlotMany([][]float64{x, y},
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Precision(3),
		asciigraph.SeriesColors(asciigraph.Cyan, asciigraph.Magenta),
		asciigraph.Caption(caption),
	), nil
}

// EnvelopePlot draws sigma_x (cyan) and sigma_y (magenta) in mm against
// station index.
func EnvelopePlot(stations []track.Station, entry int) (string, error) {
	return plotPair(stations, entry, sigmas, "beam size [mm]: sigma_x cyan, sigma_y magenta")
}

// OrbitPlot draws the centroid mu_x (cyan) and mu_y (magenta) in mm.
func OrbitPlot(stations []track.Station, entry int) (string, error) {
	return plotPair(stations, entry, mus, "orbit [mm]: mu_x cyan, mu_y magenta")
}

// PhaseScatter draws (xs[i], ys[i]) on a w×h Braille canvas with the value
// range printed on the frame.
func PhaseScatter(xs, ys []float64, w, h int) (string, error) {
	if len(xs) != len(ys) {
		return "", fmt.Errorf("viz: %d x values for %d y values", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return "", fmt.Errorf("viz: no points to plot")
	}
	if w < 1 || h < 1 {
		return "", fmt.Errorf("viz: canvas %dx%d is empty", w, h)
	}

	bounds := BoundsOf(xs, ys)
	c := NewCanvas(w, h)
	c.Plot(xs, ys, bounds)

	var b strings.Builder
	fmt.Fprintf(&b, "%10.3e ┌%s┐\n", bounds.YMax, strings.Repeat("─", w))
	for i, row := range c.Grid {
		label := strings.Repeat(" ", 10)
		if i == h/2 {
			label = fmt.Sprintf("%10.3e", (bounds.YMax+bounds.YMin)/2)
		}
		fmt.Fprintf(&b, "%s │%s│\n", label, string(row))
	}
	fmt.Fprintf(&b, "%10.3e └%s┘\n", bounds.YMin, strings.Repeat("─", w))
	left := fmt.Sprintf("%.3e", bounds.XMin)
	right := fmt.Sprintf("%.3e", bounds.XMax)
	pad := max(w-len(left)-len(right)+2, 1)
	fmt.Fprintf(&b, "%s %s%s%s\n", strings.Repeat(" ", 10), left, strings.Repeat(" ", pad), right)
	return b.String(), nil
}
