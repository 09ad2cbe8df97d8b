package viz

import (
	"fmt"
	"strings"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/track"
)

const (
	tableHeaderFormat = "%3s  %-12s %-20s %8s  %11s  %11s  %11s  %11s"
	tableRowFormat    = "%3d  %-12s %-20s %8.3f  %11.4e  %11.4e  %11.4e  %11.4e"
)

func tableHeader() string {
	return fmt.Sprintf(tableHeaderFormat, "#", "element", "kind", "s [m]", "mu_x", "mu_y", "sigma_x", "sigma_y")
}

func tableRows(stations []track.Station, entry int) ([]string, error) {
	rows := make([]string, 0, len(stations))
	for _, st := range stations {
		sum := st.Summary
		if entry < 0 || entry >= sum.Len() {
			return nil, fmt.Errorf("viz: batch entry %d out of range for station %s with %d entries", entry, st.Element, sum.Len())
		}
		rows = append(rows, fmt.Sprintf(tableRowFormat,
			st.Index, st.Element, st.Kind, st.S,
			sum.Mu[beam.X][entry], sum.Mu[beam.Y][entry],
			sum.Sigma[beam.X][entry], sum.Sigma[beam.Y][entry],
		))
	}
	return rows, nil
}

// SummaryText formats the moments of one batch entry at every station as a
// plain aligned table.
func SummaryText(stations []track.Station, entry int) (string, error) {
	rows, err := tableRows(stations, entry)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(tableHeader() + "\n")
	for _, r := range rows {
		b.WriteString(r + "\n")
	}
	return b.String(), nil
}

// SummaryTable is SummaryText styled with the current theme inside a panel.
func SummaryTable(stations []track.Station, entry int) (string, error) {
	rows, err := tableRows(stations, entry)
	if err != nil {
		return "", err
	}
	s := NewStyles(CurrentTheme)

	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, s.Header.Render(tableHeader()))
	lines = append(lines, s.Separator(len(tableHeader())))
	for i, r := range rows {
		if i == len(rows)-1 {
			lines = append(lines, s.Selected.Render(r))
			continue
		}
		lines = append(lines, r)
	}

	title := s.Title.Render(fmt.Sprintf("beam statistics, batch entry %d", entry))
	return title + "\n" + s.Panel.Render(strings.Join(lines, "\n")), nil
}
