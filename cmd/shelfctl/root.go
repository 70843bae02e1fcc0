package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shelfdb/executor"
	"shelfdb/logging"
	"shelfdb/storage"
)

// options holds the global flags shared by every subcommand.
type options struct {
	dataFile string
	jsonOut  bool
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "shelfctl",
		Short: "Query a library catalog from the command line",
		Long: `shelfctl loads a catalog into memory and runs commands against it,
using the same command language as the shelfdb server.

The catalog comes from --data when given, otherwise the built-in sample
catalog is used. Changes are not written back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.dataFile, "data", "", "JSON catalog file to load")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Output in JSON format")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newExecCmd(opts),
		newStatsCmd(opts),
		newVersionCmd(),
	)
	return root
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// openExecutor builds a store from the global flags and wraps it in an
// executor. The returned logger must be synced by the caller.
func openExecutor(opts *options) (*executor.Executor, *zap.Logger, error) {
	log, err := logging.New(opts.logLevel)
	if err != nil {
		return nil, nil, err
	}

	store := storage.New(log)
	if opts.dataFile != "" {
		stats, err := storage.LoadFile(store, opts.dataFile)
		if err != nil {
			return nil, log, err
		}
		log.Info("catalog loaded",
			zap.String("file", opts.dataFile),
			zap.Int("books", stats.Books),
			zap.Int("users", stats.Users),
			zap.Int("skipped_books", stats.SkippedBooks),
			zap.Int("skipped_users", stats.SkippedUsers))
	} else if err := storage.Seed(store); err != nil {
		return nil, log, errors.Wrap(err, "seed sample catalog")
	}
	return executor.New(store), log, nil
}

// printError writes err the way psql does, with the SQLSTATE when known.
func printError(w io.Writer, err error) {
	var qe *executor.QueryError
	if errors.As(err, &qe) {
		fmt.Fprintf(w, "ERROR:  %s (SQLSTATE %s)\n", qe.Message, qe.Code)
		if qe.Detail != "" {
			fmt.Fprintf(w, "DETAIL:  %s\n", qe.Detail)
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
