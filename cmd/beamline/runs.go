package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/beamline/internal/config"
	"github.com/san-kum/beamline/internal/export"
	"github.com/san-kum/beamline/internal/metrics"
	"github.com/san-kum/beamline/internal/storage"
	"github.com/san-kum/beamline/internal/viz"
)

var (
	// Phase plot axes
	xAxis string
	yAxis string

	outPath string
	svgKind string
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tBEAM\tPARTICLES\tBATCH\tELEMENTS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%v\t%d\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.BeamKind,
			run.NumParticles,
			run.Batch,
			run.Elements,
		)
	}

	return w.Flush()
}

// entryRecords keeps the records of the selected batch entry.
func entryRecords(runID string) ([]storage.StationRecord, error) {
	records, err := storage.New(dataDir).LoadStations(runID)
	if err != nil {
		return nil, err
	}
	out := make([]storage.StationRecord, 0, len(records))
	for _, r := range records {
		if r.Batch == entry {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("run %s has no data for batch entry %d", runID, entry)
	}
	return out, nil
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot beam size and orbit of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	cmd.Flags().IntVar(&entry, "entry", 0, "batch entry to plot")
	return cmd
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	meta, err := storage.New(dataDir).Load(runID)
	if err != nil {
		return err
	}
	records, err := entryRecords(runID)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("stations: %d, batch entry %d of %v\n\n", len(records), entry, meta.Batch)

	n := len(records)
	sx, sy := make([]float64, n), make([]float64, n)
	mx, my := make([]float64, n), make([]float64, n)
	for i, r := range records {
		sx[i], sy[i] = r.SigmaX*1e3, r.SigmaY*1e3
		mx[i], my[i] = r.MuX*1e3, r.MuY*1e3
	}

	for _, p := range []struct {
		data    [][]float64
		caption string
	}{
		{[][]float64{sx, sy}, "beam size [mm]: sigma_x cyan, sigma_y magenta"},
		{[][]float64{mx, my}, "orbit [mm]: mu_x cyan, mu_y magenta"},
	} {
		graph := asciigraph.PlotMany(p.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.SeriesColors(asciigraph.Cyan, asciigraph.Magenta),
			asciigraph.Caption(p.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func newPhaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase space scatter of the final particles",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	cmd.Flags().StringVar(&xAxis, "x-axis", "x", "horizontal coordinate")
	cmd.Flags().StringVar(&yAxis, "y-axis", "xp", "vertical coordinate")
	return cmd
}

// phaseData loads the stored particles of a run as two columns.
func phaseData(runID string) ([]float64, []float64, error) {
	cx, err := parseCoordinate(xAxis)
	if err != nil {
		return nil, nil, err
	}
	cy, err := parseCoordinate(yAxis)
	if err != nil {
		return nil, nil, err
	}
	particles, err := storage.New(dataDir).LoadParticles(runID)
	if err != nil {
		return nil, nil, err
	}
	if len(particles) == 0 {
		return nil, nil, fmt.Errorf("run %s has no particle data", runID)
	}

	xs := make([]float64, len(particles))
	ys := make([]float64, len(particles))
	for i, p := range particles {
		xs[i], ys[i] = p[cx], p[cy]
	}
	return xs, ys, nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	xs, ys, err := phaseData(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("phase space plot: %s\n", args[0])
	fmt.Printf("x-axis: %s, y-axis: %s, particles: %d\n\n", xAxis, yAxis, len(xs))

	plot, err := viz.PhaseScatter(xs, ys, 60, 20)
	if err != nil {
		return err
	}
	fmt.Print(plot)
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata and stations as json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).Export(args[0], outPath)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file, - for stdout")
	return cmd
}

func newExportCSVCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export station statistics as csv to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
}

func exportCSV(cmd *cobra.Command, args []string) error {
	records, err := storage.New(dataDir).LoadStations(args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no data to export")
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	header := []string{"element", "kind", "s", "batch", "mu_x", "mu_xp", "mu_y", "mu_yp", "sigma_x", "sigma_xp", "sigma_y", "sigma_yp"}
	if err := w.Write(header); err != nil {
		return err
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'e', 6, 64) }
	for _, r := range records {
		row := []string{
			r.Element, r.Kind, strconv.FormatFloat(r.S, 'f', 6, 64), strconv.Itoa(r.Batch),
			f(r.MuX), f(r.MuXP), f(r.MuY), f(r.MuYP),
			f(r.SigmaX), f(r.SigmaXP), f(r.SigmaY), f(r.SigmaYP),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func newExportSVGCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export the beam envelope or the phase space as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	cmd.Flags().StringVar(&svgKind, "kind", "envelope", "envelope or phase")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <run_id>_<kind>.svg)")
	cmd.Flags().IntVar(&entry, "entry", 0, "batch entry for the envelope")
	cmd.Flags().StringVar(&xAxis, "x-axis", "x", "horizontal coordinate for phase")
	cmd.Flags().StringVar(&yAxis, "y-axis", "xp", "vertical coordinate for phase")
	return cmd
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]

	var svg string
	switch svgKind {
	case "envelope":
		records, err := entryRecords(runID)
		if err != nil {
			return err
		}
		x := export.Series{Name: "sigma_x [mm]", Color: "#00ffff"}
		y := export.Series{Name: "sigma_y [mm]", Color: "#ff00ff"}
		for _, r := range records {
			x.Points = append(x.Points, export.Point{X: r.S, Y: r.SigmaX * 1e3})
			y.Points = append(y.Points, export.Point{X: r.S, Y: r.SigmaY * 1e3})
		}
		svg, err = export.PlotToSVG([]export.Series{x, y}, 800, 400)
		if err != nil {
			return err
		}
	case "phase":
		xs, ys, err := phaseData(runID)
		if err != nil {
			return err
		}
		c := viz.NewCanvas(100, 50)
		c.Plot(xs, ys, viz.BoundsOf(xs, ys))
		svg = export.CanvasToSVG(c, 4)
	default:
		return fmt.Errorf("unknown svg kind %q (envelope, phase)", svgKind)
	}

	path := outPath
	if path == "" {
		path = fmt.Sprintf("%s_%s.svg", runID, svgKind)
	}
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets or print one as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tBEAM\tSOURCE\tELEMENTS")
				for _, name := range config.ListPresets() {
					p := config.GetPreset(name)
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", name, p.Beam.Kind, p.Beam.Source, len(p.Lattice.Elements))
				}
				return w.Flush()
			}

			cfg := config.GetPreset(args[0])
			if cfg == nil {
				return fmt.Errorf("unknown preset: %s", args[0])
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "list available metrics",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range metrics.NewRegistry().List() {
				fmt.Println(name)
			}
		},
	}
}
