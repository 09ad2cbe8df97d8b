package viz

import (
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a grid of Braille cells, each holding 2x4 dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set turns on the dot at sub-pixel (x, y). The canvas is Width*2 dots wide
// and Height*4 dots tall; points outside are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// Dot reports whether the dot at sub-pixel (x, y) is set.
func (c *Canvas) Dot(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

// Clear resets the canvas
func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

// Count returns the number of dots set.
func (c *Canvas) Count() int {
	n := 0
	for _, row := range c.Grid {
		for _, r := range row {
			bits := int(r - brailleBlank)
			for bits != 0 {
				n += bits & 1
				bits >>= 1
			}
		}
	}
	return n
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// Bounds is a rectangle in data coordinates.
type Bounds struct {
	XMin, XMax float64
	YMin, YMax float64
}

// BoundsOf returns the extent of xs and ys. Degenerate axes are widened to
// unit span around their value.
func BoundsOf(xs, ys []float64) Bounds {
	b := Bounds{XMin: xs[0], XMax: xs[0], YMin: ys[0], YMax: ys[0]}
	for i := range xs {
		b.XMin, b.XMax = min(b.XMin, xs[i]), max(b.XMax, xs[i])
		b.YMin, b.YMax = min(b.YMin, ys[i]), max(b.YMax, ys[i])
	}
	if b.XMax == b.XMin {
		b.XMin, b.XMax = b.XMin-0.5, b.XMax+0.5
	}
	if b.YMax == b.YMin {
		b.YMin, b.YMax = b.YMin-0.5, b.YMax+0.5
	}
	return b
}

// Plot maps each (x, y) inside b to a dot. y grows upwards.
func (c *Canvas) Plot(xs, ys []float64, b Bounds) {
	w, h := c.Width*2, c.Height*4
	for i := range xs {
		px := int(float64(w-1) * (xs[i] - b.XMin) / (b.XMax - b.XMin))
		py := int(float64(h-1) * (ys[i] - b.YMin) / (b.YMax - b.YMin))
		c.Set(px, h-1-py)
	}
}
