package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shelfdb/executor"
)

func newExecCmd(opts *options) *cobra.Command {
	var trace bool
	cmd := &cobra.Command{
		Use:   "exec <command>...",
		Short: "Run one or more catalog commands",
		Long: `The exec command runs each argument as a separate command, in order,
against the same store. Execution stops at the first failing command.

Example:
  shelfctl exec "SEARCH BOOKS BY AUTHOR 'orwell'"
  shelfctl exec "BORROW 1001 104" "TOP BOOKS 3"
  shelfctl exec --data catalog.json --json "LIST USERS"
  shelfctl exec --trace "SEARCH BOOKS BY TITLE 'the'"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, log, err := openExecutor(opts)
			if log != nil {
				defer log.Sync()
			}
			if err != nil {
				return err
			}
			return runExec(cmd, ex, args, opts.jsonOut, trace)
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "Print timing for each command")
	return cmd
}

func runExec(cmd *cobra.Command, ex *executor.Executor, commands []string, jsonOut, trace bool) error {
	out := cmd.OutOrStdout()
	var results []resultJSON
	var runErr error

	for i, c := range commands {
		var (
			r   *executor.Result
			tr  *executor.Trace
			err error
		)
		if trace {
			r, tr, err = ex.ExecuteTraced(c)
		} else {
			r, err = ex.Execute(c)
		}
		if err != nil {
			runErr = executor.WrapError(err)
			break
		}
		if jsonOut {
			results = append(results, toJSON(c, r))
			if trace {
				results = append(results, toJSON("trace", executor.TraceToResult(tr)))
			}
			continue
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		if err := printTable(out, r); err != nil {
			return err
		}
		if trace {
			fmt.Fprintln(out)
			if err := printTable(out, executor.TraceToResult(tr)); err != nil {
				return err
			}
		}
	}

	if jsonOut && len(results) > 0 {
		if err := printJSON(out, results); err != nil {
			return err
		}
	}
	return runErr
}
