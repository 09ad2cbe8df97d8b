package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/config"
	"github.com/san-kum/beamline/internal/lattice"
	"github.com/san-kum/beamline/internal/metrics"
	"github.com/san-kum/beamline/internal/stats"
	"github.com/san-kum/beamline/internal/storage"
	"github.com/san-kum/beamline/internal/tensor"
	"github.com/san-kum/beamline/internal/track"
	"github.com/san-kum/beamline/internal/tui"
	"github.com/san-kum/beamline/internal/viz"
)

var (
	metricNames []string
	aperture    float64
	nsigma      float64
	noSave      bool
	live        bool
	frameDelay  int

	sweepParam string
	sweepFrom  float64
	sweepTo    float64
	sweepSteps int
	sweepLimit int
)

func addMetricFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&metricNames, "metric", nil, "metrics to evaluate (default: all but aperture)")
	cmd.Flags().Float64Var(&aperture, "aperture", 0.01, "pipe radius in m for the aperture metric")
	cmd.Flags().Float64Var(&nsigma, "nsigma", 3, "beam half-size in RMS units for the aperture metric")
}

func buildMetrics() ([]track.Metric, error) {
	return metrics.NewRegistry().Build(metricNames, map[string]float64{"radius": aperture, "nsigma": nsigma})
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "track a beam through a lattice and save the run",
		Args:  cobra.NoArgs,
		RunE:  runTracking,
	}
	addSourceFlags(cmd)
	addMetricFlags(cmd)
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	cmd.Flags().BoolVar(&live, "live", false, "animate the transverse beam at every station")
	cmd.Flags().IntVar(&frameDelay, "delay", 300, "milliseconds between live frames")
	return cmd
}

func runTracking(cmd *cobra.Command, args []string) error {
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
	ms, err := buildMetrics()
	if err != nil {
		return err
	}

	opts := []track.Option{track.WithLogger(logger)}
	for _, m := range ms {
		opts = append(opts, track.WithMetric(m))
	}
	if live {
		r := tui.NewLiveRenderer(os.Stdout, aperture, time.Duration(frameDelay)*time.Millisecond)
		r.Start()
		defer r.Stop()
		opts = append(opts, track.WithObserver(r))
	}

	tracker := track.New(seg, opts...)
	start := time.Now()
	res, err := tracker.Run(cmd.Context(), b)
	if err != nil {
		return err
	}
	logger.Info("tracking done",
		zap.String("config", cfg.Name),
		zap.Int("stations", len(res.Stations)),
		zap.Duration("elapsed", time.Since(start)),
	)

	table, err := viz.SummaryTable(res.Stations, entry)
	if err != nil {
		return err
	}
	fmt.Println(table)
	printMetrics(res.Metrics)

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	meta := storage.RunMetadata{
		Name:         cfg.Name,
		BeamKind:     cfg.Beam.Kind,
		NumParticles: cfg.Beam.NumParticles,
		Elements:     len(tracker.Elements()),
	}
	if cfg.Beam.Seed != nil {
		meta.Seed = *cfg.Beam.Seed
	}
	runID, err := st.Save(meta, res)
	if err != nil {
		return err
	}
	fmt.Printf("\nsaved run: %s\n", runID)
	return nil
}

func printMetrics(values map[string]float64) {
	if len(values) == 0 {
		return
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	s := viz.NewStyles(viz.CurrentTheme)
	fmt.Println()
	for _, name := range names {
		fmt.Println(s.Metric(fmt.Sprintf("%-20s", name), fmt.Sprintf("%.6g", values[name])))
	}
}

func newTwissCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "twiss",
		Short: "print Twiss parameters at every station",
		Args:  cobra.NoArgs,
		RunE:  printTwiss,
	}
	addSourceFlags(cmd)
	return cmd
}

func printTwiss(cmd *cobra.Command, args []string) error {
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
	res, err := track.New(seg, track.WithLogger(logger)).Run(cmd.Context(), b)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ELEMENT\tS [m]\tBETA_X\tALPHA_X\tEPS_X\tBETA_Y\tALPHA_Y\tEPS_Y")
	for _, st := range res.Stations {
		cols := []string{st.Element, fmt.Sprintf("%.3f", st.S)}
		for _, plane := range []beam.Plane{beam.Horizontal, beam.Vertical} {
			cols = append(cols, twissColumns(st.Beam, plane)...)
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	return w.Flush()
}

func twissColumns(b beam.Beam, plane beam.Plane) []string {
	tw, err := stats.Twiss(b, plane)
	if err != nil || entry < 0 || entry >= len(tw.Beta) {
		return []string{"-", "-", "-"}
	}
	return []string{
		fmt.Sprintf("%.4f", tw.Beta[entry]),
		fmt.Sprintf("%.4f", tw.Alpha[entry]),
		fmt.Sprintf("%.4e", tw.Emittance[entry]),
	}
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "track once per value of a lattice parameter",
		Long: `Runs independent trackings concurrently, setting --param (for example
HCOR.horizontal_angle) to evenly spaced values between --from and --to.`,
		Args: cobra.NoArgs,
		RunE: runSweep,
	}
	addSourceFlags(cmd)
	addMetricFlags(cmd)
	cmd.Flags().StringVar(&sweepParam, "param", "", "qualified parameter name")
	cmd.Flags().Float64Var(&sweepFrom, "from", 0, "first value")
	cmd.Flags().Float64Var(&sweepTo, "to", 1e-3, "last value")
	cmd.Flags().IntVar(&sweepSteps, "steps", 11, "number of values")
	cmd.Flags().IntVar(&sweepLimit, "jobs", 0, "concurrent runs (default GOMAXPROCS)")
	_ = cmd.MarkFlagRequired("param")
	return cmd
}

func linspace(from, to float64, n int) []float64 {
	if n <= 1 {
		return []float64{from}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = from + (to-from)*float64(i)/float64(n-1)
	}
	return out
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := buildMetrics(); err != nil {
		return err
	}

	sweep := &track.Sweep{
		Build: func(v float64) (lattice.Element, beam.Beam, error) {
			return sweepPoint(cfg, v)
		},
		Metrics: func() []track.Metric {
			ms, _ := buildMetrics()
			return ms
		},
		Limit:  sweepLimit,
		Logger: logger,
	}

	values := linspace(sweepFrom, sweepTo, sweepSteps)
	results, err := sweep.Run(cmd.Context(), values)
	if err != nil {
		return err
	}

	names := make([]string, 0)
	for name := range results[0].Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(sweepParam)+"\t"+strings.ToUpper(strings.Join(names, "\t")))
	for i, r := range results {
		row := []string{fmt.Sprintf("%.4e", values[i])}
		for _, name := range names {
			row = append(row, fmt.Sprintf("%.6g", r.Metrics[name]))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(names) > 0 && len(values) > 1 {
		data := make([]float64, len(results))
		for i, r := range results {
			data[i] = r.Metrics[names[0]]
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(60),
			asciigraph.Caption(fmt.Sprintf("%s vs %s", names[0], sweepParam)),
		))
	}
	return nil
}

// sweepPoint builds a fresh lattice and beam from cfg with param filled
// with v across its batch shape.
func sweepPoint(cfg *config.Config, v float64) (lattice.Element, beam.Beam, error) {
	b, err := cfg.BuildBeam()
	if err != nil {
		return nil, nil, err
	}
	seg, err := cfg.BuildLattice()
	if err != nil {
		return nil, nil, err
	}
	cur, err := seg.Parameter(sweepParam)
	if err != nil {
		return nil, nil, err
	}
	if err := seg.SetParameter(sweepParam, tensor.Full(cur.Shape(), v)); err != nil {
		return nil, nil, err
	}
	return seg, b, nil
}
