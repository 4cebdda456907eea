package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shaunstanislauslau/torchgan/history"
)

var runsFlags struct {
	dbPath     string
	showConfig bool
}

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List training runs or dump one run's telemetry",
	Long: `Without arguments lists all runs in the history store. With a run ID,
full or unique prefix, prints that run's per-step telemetry and any
recorded metric scores.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	f := runsCmd.Flags()
	f.StringVar(&runsFlags.dbPath, "db", "torchgan.db", "History store path")
	f.BoolVar(&runsFlags.showConfig, "config", false, "Include the run's recorded config in the dump")
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store := history.NewRunStore(runsFlags.dbPath)
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	if len(args) == 0 {
		return listRuns(ctx, cmd, store)
	}
	return dumpRun(ctx, cmd, store, args[0])
}

func listRuns(ctx context.Context, cmd *cobra.Command, store *history.RunStore) error {
	runs, err := store.ListRuns(ctx)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded. Run 'torchgan train' first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tName\tStarted\tSteps\tLast k\n")
	fmt.Fprintf(w, "--\t----\t-------\t-----\t------\n")
	for _, run := range runs {
		steps, lastK := "0", "-"
		if latest, ok, err := store.LatestStep(ctx, run.ID); err != nil {
			return fmt.Errorf("read steps for %s: %w", shortID(run.ID), err)
		} else if ok {
			steps = fmt.Sprintf("%d", latest.Step)
			lastK = fmt.Sprintf("%.4f", latest.K)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			shortID(run.ID), run.Name, run.StartedAt.Format("2006-01-02 15:04:05"), steps, lastK)
	}
	return w.Flush()
}

func dumpRun(ctx context.Context, cmd *cobra.Command, store *history.RunStore, prefix string) error {
	run, err := findRun(ctx, store, prefix)
	if err != nil {
		return err
	}

	steps, err := store.Steps(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("read steps: %w", err)
	}
	scores, err := store.Scores(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("read scores: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:     %s\n", run.ID)
	fmt.Fprintf(out, "Name:    %s\n", run.Name)
	fmt.Fprintf(out, "Started: %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if runsFlags.showConfig && run.Config != "" {
		fmt.Fprintf(out, "Config:\n")
		for _, line := range strings.Split(strings.TrimRight(run.Config, "\n"), "\n") {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}

	if len(steps) > 0 {
		fmt.Fprintf(out, "\n")
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Step\tEpoch\tD loss\tG loss\tk\tConvergence\n")
		fmt.Fprintf(w, "----\t-----\t------\t------\t-\t-----------\n")
		for _, step := range steps {
			convergence := "-"
			if step.HasConvergence {
				convergence = fmt.Sprintf("%.6f", step.Convergence)
			}
			fmt.Fprintf(w, "%d\t%d\t%.6f\t%.6f\t%.6f\t%s\n",
				step.Step, step.Epoch, step.DiscriminatorLoss, step.GeneratorLoss, step.K, convergence)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(scores) > 0 {
		fmt.Fprintf(out, "\n")
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Step\tMetric\tValue\n")
		fmt.Fprintf(w, "----\t------\t-----\n")
		for _, score := range scores {
			fmt.Fprintf(w, "%d\t%s\t%.4f\n", score.Step, score.Metric, score.Value)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// findRun resolves a run by exact ID first, then by unique ID prefix.
func findRun(ctx context.Context, store *history.RunStore, prefix string) (history.Run, error) {
	run, ok, err := store.GetRun(ctx, prefix)
	if err != nil {
		return history.Run{}, fmt.Errorf("look up run: %w", err)
	}
	if ok {
		return run, nil
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return history.Run{}, fmt.Errorf("list runs: %w", err)
	}
	var matches []history.Run
	for _, candidate := range runs {
		if strings.HasPrefix(candidate.ID, prefix) {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return history.Run{}, fmt.Errorf("no run matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return history.Run{}, fmt.Errorf("%d runs match %q, use a longer prefix", len(matches), prefix)
	}
}
