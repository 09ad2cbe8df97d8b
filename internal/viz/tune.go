package viz

import (
	"context"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/lattice"
	"github.com/san-kum/beamline/internal/tensor"
	"github.com/san-kum/beamline/internal/track"
)

const (
	defaultTuneStep = 1e-4
	minTuneStep     = 1e-7
	maxTuneStep     = 1e-1
)

// TuneModel steers one corrector of a lattice and re-tracks the beam after
// every change.
type TuneModel struct {
	lattice   *lattice.Segment
	beam      beam.Beam
	corrector lattice.Corrector
	angle     float64
	step      float64
	result    *track.Result
	err       error
	theme     Theme
	width     int
	quitting  bool
}

// NewTuneModel looks up the corrector by name in l and tracks b once with
// its current angle (batch entry 0).
func NewTuneModel(l *lattice.Segment, b beam.Beam, corrector string) (TuneModel, error) {
	e, ok := l.Element(corrector)
	if !ok {
		return TuneModel{}, fmt.Errorf("viz: no element %q in %s", corrector, l.Name())
	}
	c, ok := e.(lattice.Corrector)
	if !ok {
		return TuneModel{}, fmt.Errorf("viz: element %q is a %s, not a corrector", corrector, e.Kind())
	}
	m := TuneModel{
		lattice:   l,
		beam:      b,
		corrector: c,
		angle:     c.Angle().Raw()[0],
		step:      defaultTuneStep,
		theme:     CurrentTheme,
		width:     80,
	}
	m.retrack()
	return m, nil
}

func (m TuneModel) Angle() float64        { return m.angle }
func (m TuneModel) Step() float64         { return m.step }
func (m TuneModel) Result() *track.Result { return m.result }
func (m TuneModel) Err() error            { return m.err }

func (m *TuneModel) retrack() {
	if err := m.corrector.SetAngle(tensor.Scalar(m.angle)); err != nil {
		m.err = err
		return
	}
	m.result, m.err = track.New(m.lattice).Run(context.Background(), m.beam)
}

func (m TuneModel) Init() tea.Cmd { return nil }

func (m TuneModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

func (m TuneModel) handleKey(msg tea.KeyMsg) (TuneModel, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "left", "h":
		m.angle -= m.step
		m.retrack()
	case "right", "l":
		m.angle += m.step
		m.retrack()
	case "up", "k":
		m.step = math.Min(m.step*10, maxTuneStep)
	case "down", "j":
		m.step = math.Max(m.step/10, minTuneStep)
	case "0":
		m.angle = 0
		m.retrack()
	case "t":
		m.theme = NextTheme(m.theme)
	}
	return m, nil
}

func (m TuneModel) View() string {
	if m.quitting {
		return ""
	}
	s := NewStyles(m.theme)
	var b strings.Builder

	b.WriteString(s.Title.Render(fmt.Sprintf("tune %s (%s plane)", m.corrector.Name(), m.corrector.Plane())) + "\n")
	b.WriteString(s.Separator(min(m.width, 60)) + "\n")
	b.WriteString(s.Metric("angle", fmt.Sprintf("%+.4e rad", m.angle)) + "   ")
	b.WriteString(s.Metric("step", fmt.Sprintf("%.0e", m.step)) + "\n\n")

	if m.err != nil {
		b.WriteString(s.Error.Render("error: "+m.err.Error()) + "\n")
	} else if m.result != nil && len(m.result.Stations) > 0 {
		b.WriteString(m.stationView(s))
	}

	b.WriteString("\n" + s.KeyHint.Render("←/→ angle  ↑/↓ step  0 reset  t theme  q quit"))
	return b.String()
}

func (m TuneModel) stationView(s Styles) string {
	stations := m.result.Stations
	last := stations[len(stations)-1].Summary
	width := min(max(m.width-20, 10), len(stations)*2)

	orbit := make([]float64, len(stations))
	size := make([]float64, len(stations))
	pos, ang := m.corrector.Plane().Position(), m.corrector.Plane().Angle()
	for i, st := range stations {
		orbit[i] = math.Abs(st.Summary.Mu[pos][0])
		size[i] = st.Summary.Sigma[pos][0]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", s.MetricLabel.Render(fmt.Sprintf("|mu_%s|  ", pos)), s.Sparkline(orbit, width))
	fmt.Fprintf(&b, "%s %s\n", s.MetricLabel.Render(fmt.Sprintf("sigma_%s", pos)), s.Sparkline(size, width))
	b.WriteString(s.Metric(fmt.Sprintf("exit mu_%s", pos), fmt.Sprintf("%+.4e", last.Mu[pos][0])) + "   ")
	b.WriteString(s.Metric(fmt.Sprintf("exit mu_%s", ang), fmt.Sprintf("%+.4e", last.Mu[ang][0])) + "\n")
	return b.String()
}
