package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/beamline/internal/scenario"
	"github.com/san-kum/beamline/internal/storage"
)

func newScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of tracking runs",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the runs")
	return cmd
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	var store *storage.Store
	if !noSave {
		store = storage.New(dataDir)
	}
	results, err := scenario.NewRunner(store, logger).Run(cmd.Context(), sc)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tNAME\tRUN\tMETRICS")
	for _, r := range results {
		names := make([]string, 0, len(r.Result.Metrics))
		for name := range r.Result.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		summary := ""
		for _, name := range names {
			summary += fmt.Sprintf("%s=%.4g ", name, r.Result.Metrics[name])
		}
		run := r.RunID
		if run == "" {
			run = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Index+1, r.Name, run, summary)
	}
	if ferr := w.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}
