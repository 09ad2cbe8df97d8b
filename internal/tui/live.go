// Package tui animates a tracking run in the terminal, one frame per
// station.
package tui

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/track"
)

const (
	width       = 71
	height      = 21
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

type point struct{ x, y int }

// LiveRenderer is a track.Observer drawing the transverse 1-sigma ellipse
// and the centroid trail of batch entry 0 in the x-y plane.
type LiveRenderer struct {
	out       io.Writer
	delay     time.Duration
	aperture  float64
	clear     bool
	canvas    [][]rune
	trail     []point
	lastFrame time.Time
}

// NewLiveRenderer draws frames to out. aperture is the half-width in m of
// the window; delay is the minimum time between frames.
func NewLiveRenderer(out io.Writer, aperture float64, delay time.Duration) *LiveRenderer {
	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
	}
	if aperture <= 0 {
		aperture = 5e-3
	}
	return &LiveRenderer{
		out:      out,
		delay:    delay,
		aperture: aperture,
		clear:    true,
		canvas:   canvas,
		trail:    make([]point, 0, 50),
	}
}

// SetClear controls whether each frame clears the screen first.
func (r *LiveRenderer) SetClear(clear bool) { r.clear = clear }

func (r *LiveRenderer) OnStation(st track.Station) {
	if r.delay > 0 {
		if wait := r.delay - time.Since(r.lastFrame); wait > 0 {
			time.Sleep(wait)
		}
		r.lastFrame = time.Now()
	}

	r.reset()
	r.drawAxes()

	sum := st.Summary
	if sum.Len() > 0 {
		mx, my := sum.Mu[beam.X][0], sum.Mu[beam.Y][0]
		sx, sy := sum.Sigma[beam.X][0], sum.Sigma[beam.Y][0]
		r.drawEllipse(mx, my, sx, sy)

		c := r.toCell(mx, my)
		r.trail = append(r.trail, c)
		if len(r.trail) > 50 {
			r.trail = r.trail[1:]
		}
		for _, p := range r.trail[:len(r.trail)-1] {
			r.set(p.x, p.y, '.')
		}
		r.set(c.x, c.y, '+')
	}

	r.render(st)
}

func (r *LiveRenderer) reset() {
	for y := range r.canvas {
		for x := range r.canvas[y] {
			r.canvas[y][x] = ' '
		}
	}
}

func (r *LiveRenderer) set(x, y int, c rune) {
	if x >= 0 && x < width && y >= 0 && y < height {
		r.canvas[y][x] = c
	}
}

// toCell maps a transverse position in m to a canvas cell; y grows upwards.
func (r *LiveRenderer) toCell(x, y float64) point {
	cx := int(math.Round(float64(width-1) / 2 * (1 + x/r.aperture)))
	cy := int(math.Round(float64(height-1) / 2 * (1 - y/r.aperture)))
	return point{cx, cy}
}

func (r *LiveRenderer) drawAxes() {
	cx, cy := width/2, height/2
	for i := 0; i < width; i++ {
		r.set(i, cy, '-')
	}
	for i := 0; i < height; i++ {
		r.set(cx, i, '|')
	}
	r.set(cx, cy, '+')
}

func (r *LiveRenderer) drawEllipse(mx, my, sx, sy float64) {
	const steps = 96
	for i := 0; i < steps; i++ {
		phi := 2 * math.Pi * float64(i) / steps
		p := r.toCell(mx+sx*math.Cos(phi), my+sy*math.Sin(phi))
		r.set(p.x, p.y, 'o')
	}
}

func (r *LiveRenderer) render(st track.Station) {
	var b strings.Builder
	if r.clear {
		b.WriteString(clearScreen)
	}
	fmt.Fprintf(&b, "  %s (%s)  s=%.3fm  window ±%.1fmm\n", st.Element, st.Kind, st.S, r.aperture*1e3)
	b.WriteString("  " + strings.Repeat("-", width) + "\n")

	for _, row := range r.canvas {
		b.WriteString("  ")
		b.WriteString(string(row))
		b.WriteString("\n")
	}

	b.WriteString("  " + strings.Repeat("-", width) + "\n")
	if sum := st.Summary; sum.Len() > 0 {
		fmt.Fprintf(&b, "  mu_x=%+.3emm mu_y=%+.3emm sigma_x=%.3emm sigma_y=%.3emm\n",
			sum.Mu[beam.X][0]*1e3, sum.Mu[beam.Y][0]*1e3,
			sum.Sigma[beam.X][0]*1e3, sum.Sigma[beam.Y][0]*1e3)
	}

	fmt.Fprint(r.out, b.String())
}

func (r *LiveRenderer) Start() { fmt.Fprint(r.out, hideCursor) }
func (r *LiveRenderer) Stop()  { fmt.Fprint(r.out, showCursor) }
