package main

import (
	"fmt"

	"github.com/Harshitk-cp/credo/internal/buildconfig"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "credoctl %s (%s)\n", buildconfig.Version(), buildconfig.Commit())
	},
}
