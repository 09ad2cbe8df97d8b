package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/lattice"
	"github.com/san-kum/beamline/internal/optim"
	"github.com/san-kum/beamline/internal/viz"
)

var (
	corrector string
	monitor   string
	method    string
	maxIter   int
	kp        float64
	ki        float64
	kd        float64
	gridRange float64
	gridSteps int
)

func newSteerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steer",
		Short: "set a corrector so the beam is centred at a monitor",
		Long: `Adjusts --corrector to zero the centroid read by --bpm, using
gradient descent (gd), a PID feedback loop (pid) or a grid search (grid).`,
		Args: cobra.NoArgs,
		RunE: runSteer,
	}
	addSourceFlags(cmd)
	cmd.Flags().StringVar(&corrector, "corrector", "", "corrector element name")
	cmd.Flags().StringVar(&monitor, "bpm", "", "monitor element name")
	cmd.Flags().StringVar(&method, "method", "gd", "gd, pid or grid")
	cmd.Flags().IntVar(&maxIter, "iterations", 100, "maximum iterations")
	cmd.Flags().Float64Var(&kp, "kp", 0.2, "pid kp")
	cmd.Flags().Float64Var(&ki, "ki", 0.3, "pid ki")
	cmd.Flags().Float64Var(&kd, "kd", 0.0, "pid kd")
	cmd.Flags().Float64Var(&gridRange, "range", 5e-3, "grid half-width in rad")
	cmd.Flags().IntVar(&gridSteps, "grid-steps", 101, "grid points")
	_ = cmd.MarkFlagRequired("corrector")
	_ = cmd.MarkFlagRequired("bpm")
	return cmd
}

// steeringSetup builds the configured lattice and resolves the corrector
// and monitor by name.
func steeringSetup() (*lattice.Segment, beam.Beam, lattice.Corrector, *lattice.BPM, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	b, err := cfg.BuildBeam()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	seg, err := cfg.BuildLattice()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	e, ok := seg.Element(corrector)
	if !ok {
		return nil, nil, nil, nil, fmt.Errorf("no element %q", corrector)
	}
	c, ok := e.(lattice.Corrector)
	if !ok {
		return nil, nil, nil, nil, fmt.Errorf("element %q is a %s, not a corrector", corrector, e.Kind())
	}
	e, ok = seg.Element(monitor)
	if !ok {
		return nil, nil, nil, nil, fmt.Errorf("no element %q", monitor)
	}
	bpm, ok := e.(*lattice.BPM)
	if !ok {
		return nil, nil, nil, nil, fmt.Errorf("element %q is a %s, not a bpm", monitor, e.Kind())
	}
	return seg, b, c, bpm, nil
}

func angleParam(c lattice.Corrector) string {
	if c.Plane() == beam.Vertical {
		return c.Name() + "." + lattice.ParamVerticalAngle
	}
	return c.Name() + "." + lattice.ParamHorizontalAngle
}

func runSteer(cmd *cobra.Command, args []string) error {
	seg, b, c, bpm, err := steeringSetup()
	if err != nil {
		return err
	}
	param := angleParam(c)
	ctx := cmd.Context()

	switch method {
	case "gd":
		gd := &optim.GradientDescent{MaxIter: maxIter, Tol: 1e-20, Logger: logger}
		p := optim.Problem{Lattice: seg, Params: []string{param}, Objective: optim.CentroidObjective(seg, b, bpm)}
		sol, err := gd.Minimize(ctx, p)
		if err != nil {
			return err
		}
		fmt.Printf("gradient descent: %d iterations, objective %.4e\n", sol.Iterations, sol.Value)
	case "pid":
		fb := optim.NewFeedback(kp, ki, kd, 0)
		fb.MaxIter = maxIter
		fb.Tol = 1e-12
		fb.Logger = logger
		res, err := fb.Run(ctx, seg, param, optim.MonitorMeasure(seg, b, bpm, c.Plane()))
		if err != nil {
			return err
		}
		fmt.Printf("feedback: %d iterations, converged %v, residual %.4e\n", res.Iterations, res.Converged, res.Error)
	case "grid":
		gs := optim.NewGridSearch([]string{param}, [][]float64{linspace(-gridRange, gridRange, gridSteps)})
		best, value, err := gs.Search(ctx, optim.Problem{Lattice: seg, Objective: optim.CentroidObjective(seg, b, bpm)})
		if err != nil {
			return err
		}
		if best == nil {
			return fmt.Errorf("grid search found no valid point")
		}
		if err := seg.SetParameter(param, c.Angle().Map(func(float64) float64 { return best[param] })); err != nil {
			return err
		}
		fmt.Printf("grid search: objective %.4e\n", value)
	default:
		return fmt.Errorf("unknown method %q (gd, pid, grid)", method)
	}

	if _, err := seg.Track(b); err != nil {
		return err
	}
	x, y, _ := bpm.Reading()
	fmt.Printf("%s = %v\n", param, c.Angle())
	fmt.Printf("%s reading: x=%v y=%v\n", bpm.Name(), x, y)
	return nil
}

func newTuneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "steer a corrector interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			m, err := viz.NewTuneModel(seg, b, corrector)
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	addSourceFlags(cmd)
	cmd.Flags().StringVar(&corrector, "corrector", "", "corrector element name")
	_ = cmd.MarkFlagRequired("corrector")
	return cmd
}
