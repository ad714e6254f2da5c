package cmd

import (
	"fmt"

	"github.com/jimger/wizz-aycf-route-finder/internal/build"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), build.Summary(programName))
	},
}

func resetCommandFlags() {
	searchDate = ""
	searchRefresh = false
	returnsDate = ""
	returnsFlight = ""
	returnsDestination = ""
	returnsRefresh = false
	exportFormat = ""
	exportOutput = ""
}
