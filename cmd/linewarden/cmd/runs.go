package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/linewarden/internal/core/db"
	"github.com/solatis/linewarden/internal/types"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded bulk runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openStore()
		if err != nil {
			return err
		}
		defer closeFn()

		runs, err := store.ListRuns(context.Background(), runsLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tKIND\tSTARTED\tTOTAL\tOK\tFAILED")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
				r.ID, r.Kind, r.StartedAt.Format("2006-01-02 15:04:05"), r.Total, r.Succeeded, r.Failed)
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run and its per-subscriber results as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseRunID(args[0])
		if err != nil {
			return err
		}
		store, closeFn, err := openStore()
		if err != nil {
			return err
		}
		defer closeFn()

		ctx := context.Background()
		run, err := store.GetRun(ctx, id)
		if err != nil {
			return err
		}
		results, err := store.RunResults(ctx, id)
		if err != nil {
			return err
		}

		out := json.NewEncoder(cmd.OutOrStdout())
		out.SetIndent("", "  ")
		return out.Encode(struct {
			*db.RunRecord
			Results []db.ResultRecord `json:"results"`
		}{run, results})
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
}

func openStore() (*db.Store, func(), error) {
	a, err := setup()
	if err != nil {
		return nil, nil, err
	}
	if a.cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("--db-url or database.url required")
	}
	return a.store()
}
