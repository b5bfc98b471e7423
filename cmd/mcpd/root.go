package mcpd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sjzar/mcpd/internal/errors"
)

func init() {
	// windows only
	cobra.MousetrapHelpText = ""

	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "debug")
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", "", "config dir (default ~/.mcpd, or $MCPD_DIR)")
	rootCmd.PersistentPreRun = initLog
}

var configDir string

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Err(err).Msg("command execution failed")
		if Debug {
			log.Debug().Msg(errors.FormatErrorChain(err))
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "mcpd",
	Short:   "mcpd serves tools over the Model Context Protocol",
	Long:    `mcpd is an MCP tool server. It answers initialize, tools/list, tools/call and ping over an SSE stream or plain HTTP POST.`,
	Example: `mcpd server --addr 127.0.0.1:8000`,
	Args:    cobra.NoArgs,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}
