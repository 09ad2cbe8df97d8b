package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/beamline/internal/analysis"
	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/lattice"
)

var (
	cellName     string
	turns        int
	periodPreset string
)

func newBetatronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "betatron",
		Short: "betatron tunes of a periodic cell",
		Long: `Tracks the configured beam through --cell repeatedly and compares the
tune read from the turn-by-turn spectrum with the one-turn matrix tune.`,
		Args: cobra.NoArgs,
		RunE: runBetatron,
	}
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&periodPreset, "preset", "fodo", "use preset configuration")
	cmd.Flags().IntVar(&entry, "entry", 0, "batch entry to plot")
	cmd.Flags().StringVar(&cellName, "cell", "CELL1", "periodic segment, empty for the whole lattice")
	cmd.Flags().IntVar(&turns, "turns", 1024, "number of turns")
	return cmd
}

func runBetatron(cmd *cobra.Command, args []string) error {
	preset = periodPreset
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := cfg.BuildBeam()
	if err != nil {
		return err
	}
	seg, err := cfg.BuildLattice()
	if err != nil {
		return err
	}

	cell := seg
	if cellName != "" {
		e, ok := seg.Element(cellName)
		if !ok {
			return fmt.Errorf("no element %q", cellName)
		}
		if cell, ok = e.(*lattice.Segment); !ok {
			return fmt.Errorf("element %q is a %s, not a segment", cellName, e.Kind())
		}
	}

	m, err := analysis.CellMap(cell, b.Energy())
	if err != nil {
		return err
	}
	orbits, err := analysis.TurnByTurn(cmd.Context(), cell, b, turns)
	if err != nil {
		return err
	}
	logger.Debug("turn by turn complete", zap.String("cell", cell.Name()), zap.Int("turns", turns))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLANE\tENTRY\tMATRIX\tSPECTRUM")
	for _, plane := range []beam.Plane{beam.Horizontal, beam.Vertical} {
		matrix, err := analysis.CellTune(m, plane)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t%v\t-\n", plane, err)
			continue
		}
		o := orbits[plane]
		for i, pos := range o.Position {
			measured := "-"
			if q, err := analysis.Tune(pos); err == nil {
				measured = fmt.Sprintf("%.5f", q)
			}
			mq := matrix[0]
			if len(matrix) > 1 {
				mq = matrix[i]
			}
			fmt.Fprintf(w, "%s\t%d\t%.5f\t%s\n", plane, i, mq, measured)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	x := orbits[beam.Horizontal]
	if entry < 0 || entry >= len(x.Position) {
		return fmt.Errorf("batch entry %d out of range [0, %d)", entry, len(x.Position))
	}
	spectrum := analysis.Spectrum(x.Position[entry])
	if len(spectrum) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(spectrum[1:],
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("horizontal spectrum, %d turns", x.Turns())),
		))
	}
	return nil
}
