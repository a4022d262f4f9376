package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"appbuilder/pkg/persistence"
)

func (a *App) newHistoryCmd() *cobra.Command {
	var limit int
	var dbPath string
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs, or the steps of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DatabasePath = dbPath
			}
			if cfg.DatabasePath == "" {
				return errors.New("run history is disabled (database_path is empty)")
			}

			store, err := persistence.Open(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open run history: %w", err)
			}
			defer func() { _ = store.Close() }()

			if len(args) == 1 {
				return showRun(cmd, store, args[0])
			}
			return listRuns(cmd, store, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().StringVar(&dbPath, "db", "", "run history database")
	return cmd
}

func listRuns(cmd *cobra.Command, store *persistence.Store, limit int) error {
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err //nolint:wrapcheck // persistence errors carry context
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tDURATION\tREQUEST")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			run.ID, run.StartedAt.Local().Format(time.DateTime), run.Status, duration(run), truncate(run.Request, 60))
	}
	return tw.Flush() //nolint:wrapcheck // stdout write error
}

func showRun(cmd *cobra.Command, store *persistence.Store, id string) error {
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err //nolint:wrapcheck // persistence errors carry context
	}
	steps, err := store.Steps(cmd.Context(), id)
	if err != nil {
		return err //nolint:wrapcheck // persistence errors carry context
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:     %s\n", run.ID)
	fmt.Fprintf(out, "Status:  %s\n", run.Status)
	fmt.Fprintf(out, "Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Root:    %s\n", run.ProjectRoot)
	fmt.Fprintf(out, "Request: %s\n", run.Request)
	if run.Error != "" {
		fmt.Fprintf(out, "Error:   %s\n", run.Error)
	}
	if len(steps) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tFILE\tOUTCOME\tATTEMPTS\tHASH")
	for _, s := range steps {
		hash := s.ContentHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", s.Index+1, s.Filepath, s.Kind, s.Attempts, hash)
	}
	return tw.Flush() //nolint:wrapcheck // stdout write error
}

func duration(run *persistence.Run) string {
	if run.FinishedAt == nil {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
