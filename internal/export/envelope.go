package export

import (
	"fmt"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/track"
)

// EnvelopeSVG plots sigma_x and sigma_y in mm of one batch entry against
// the position s along the lattice.
func EnvelopeSVG(stations []track.Station, entry, width, height int) (string, error) {
	x := Series{Name: "sigma_x [mm]", Color: "#00ffff", Points: make([]Point, 0, len(stations))}
	y := Series{Name: "sigma_y [mm]", Color: "#ff00ff", Points: make([]Point, 0, len(stations))}
	for _, st := range stations {
		if entry < 0 || entry >= st.Summary.Len() {
			return "", fmt.Errorf("export: batch entry %d out of range for station %s", entry, st.Element)
		}
		x.Points = append(x.Points, Point{st.S, st.Summary.Sigma[beam.X][entry] * 1e3})
		y.Points = append(y.Points, Point{st.S, st.Summary.Sigma[beam.Y][entry] * 1e3})
	}
	return PlotToSVG([]Series{x, y}, width, height)
}
