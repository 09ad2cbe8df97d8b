package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/config"
	"github.com/san-kum/beamline/internal/viz"
)

var (
	logger  = zap.NewNop()
	dataDir string
	verbose bool
	theme   string

	// Lattice and beam source
	configFile string
	preset     string

	// Output selection
	entry int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "beamline",
		Short:         "batched linear beam transport",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := zap.NewProductionConfig()
			cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			l, err := cfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logger = l
			viz.SetTheme(theme)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".beamline", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", viz.ThemeControlRoom.Name,
		"color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	rootCmd.AddCommand(
		newRunCmd(),
		newTwissCmd(),
		newSweepCmd(),
		newSteerCmd(),
		newBetatronCmd(),
		newScenarioCmd(),
		newTuneCmd(),
		newListCmd(),
		newPlotCmd(),
		newPhaseCmd(),
		newExportCmd(),
		newExportCSVCmd(),
		newExportSVGCmd(),
		newPresetsCmd(),
		newMetricsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// addSourceFlags registers the flags selecting the lattice and beam.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "drift", "use preset configuration")
	cmd.Flags().IntVar(&entry, "entry", 0, "batch entry to report")
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	cfg := config.GetPreset(preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
	}
	return cfg, nil
}

func parseCoordinate(name string) (beam.Coordinate, error) {
	for _, c := range beam.Coordinates() {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown coordinate %q", name)
}
