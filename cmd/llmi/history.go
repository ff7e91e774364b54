package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/llm-inline/llmi/pkg/history"
	"github.com/llm-inline/llmi/pkg/presenter"
)

var historyCmd = &cobra.Command{
	Use:               "history [skill]",
	Short:             "Show recent skill runs",
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeSkillNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store := openHistory(ctx)
		if store == nil {
			return errors.New("history is disabled or unavailable")
		}
		defer closeHistory(ctx, store)

		limit, _ := cmd.Flags().GetInt("limit")
		name := ""
		if len(args) == 1 {
			name = args[0]
		}

		runs, err := store.Runs(ctx, name, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			presenter.Info("No runs recorded.")
			return nil
		}
		return writeRunTable(cmd.OutOrStdout(), runs)
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", history.DefaultRunLimit, "Maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func writeRunTable(w io.Writer, runs []history.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSKILL\tSTATUS\tDURATION\tDIAGNOSTIC")
	for _, run := range runs {
		status := "ok"
		if !run.Success {
			status = "failed"
		}
		diagnostic, _, _ := strings.Cut(run.Diagnostic, "\n")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			run.StartedAt.Local().Format(time.DateTime),
			run.Name,
			status,
			run.Duration.Round(time.Millisecond),
			diagnostic,
		)
	}
	return tw.Flush()
}
