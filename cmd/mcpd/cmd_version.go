package mcpd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sjzar/mcpd/pkg/version"
)

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&versionM, "module", "m", false, "module version information")
}

var versionM bool
var versionCmd = &cobra.Command{
	Use:   "version [-m]",
	Short: "Show the version of mcpd",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.GetMore(versionM))
	},
}
