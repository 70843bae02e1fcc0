package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shelfdb/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "shelfctl %s\n", info.Tag)
			fmt.Fprintf(out, "  commit: %s\n", info.Commit)
			fmt.Fprintf(out, "  built: %s\n", info.BuildTime)
			if info.GoVersion != "" {
				fmt.Fprintf(out, "  go: %s\n", info.GoVersion)
			}
		},
	}
}
