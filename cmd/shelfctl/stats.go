package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"shelfdb/executor"
)

// statsJSON groups the report sections for --json output.
type statsJSON struct {
	Dashboard  resultJSON `json:"dashboard"`
	Categories resultJSON `json:"categories"`
	TopBooks   resultJSON `json:"top_books"`
	TopUsers   resultJSON `json:"top_users"`
}

func newStatsCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		Long: `The stats command prints the catalog dashboard, the per-category
breakdown, and the most borrowed books and most active users.

Example:
  shelfctl stats
  shelfctl stats --limit 3 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, log, err := openExecutor(opts)
			if log != nil {
				defer log.Sync()
			}
			if err != nil {
				return err
			}
			return runStats(cmd, ex, limit, opts.jsonOut)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", executor.DefaultTopLimit, "Entries in each top list")
	return cmd
}

func runStats(cmd *cobra.Command, ex *executor.Executor, limit int, jsonOut bool) error {
	var report statsJSON
	sections := []struct {
		title   string
		command string
		dst     *resultJSON
	}{
		{"Dashboard", "SHOW dashboard", &report.Dashboard},
		{"Categories", "SHOW categories", &report.Categories},
		{"Most borrowed books", fmt.Sprintf("TOP BOOKS %d", limit), &report.TopBooks},
		{"Most active users", fmt.Sprintf("TOP USERS %d", limit), &report.TopUsers},
	}

	out := cmd.OutOrStdout()
	for i, s := range sections {
		r, err := ex.Execute(s.command)
		if err != nil {
			return errors.Wrapf(executor.WrapError(err), "%s", s.command)
		}
		if jsonOut {
			*s.dst = toJSON(s.command, r)
			continue
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s\n\n", s.title)
		if err := printTable(out, r); err != nil {
			return err
		}
	}

	if jsonOut {
		return printJSON(out, report)
	}
	return nil
}
