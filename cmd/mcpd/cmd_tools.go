package mcpd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sjzar/mcpd/internal/mcpd"
)

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "print the tools/list payload")
}

var toolsJSON bool

var toolsCmd = &cobra.Command{
	Use:   "tools [--json]",
	Short: "List the tools the server exposes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		out, err := mcpd.New().CommandTools(configDir, nil, toolsJSON)
		if err != nil {
			return err
		}
		fmt.Print(out)
		if toolsJSON {
			fmt.Println()
		}
		return nil
	},
}
