package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LocoMH/wwtbam-server/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wwtbam-server %s\n", version.String())
		},
	}
}
