package mcpd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sjzar/mcpd/internal/mcpd"
)

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVarP(&serverAddr, "addr", "a", "", "listen address (default 0.0.0.0:8000)")
	serverCmd.Flags().StringVar(&serverAuthMode, "auth-mode", "", "none, api_key or jwt")
	serverCmd.Flags().StringVar(&serverAPIKey, "api-key", "", "shared key for api_key mode")
	serverCmd.Flags().IntVarP(&serverWorkers, "workers", "w", 0, "workers answering streamed messages")
	serverCmd.Flags().StringVar(&serverOTelEndpoint, "otel-endpoint", "", "OTLP/HTTP endpoint for traces")
}

var (
	serverAddr         string
	serverAuthMode     string
	serverAPIKey       string
	serverWorkers      int
	serverOTelEndpoint string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cmd.SilenceUsage = true
		return mcpd.New().CommandServer(ctx, configDir, serverCmdConf(cmd))
	},
}

// serverCmdConf holds only the flags given explicitly, so unset flags do
// not shadow the config file or env.
func serverCmdConf(cmd *cobra.Command) map[string]any {
	cmdConf := make(map[string]any)
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cmdConf["http_addr"] = serverAddr
	}
	if flags.Changed("auth-mode") {
		cmdConf["auth.mode"] = serverAuthMode
	}
	if flags.Changed("api-key") {
		cmdConf["auth.api_key"] = serverAPIKey
	}
	if flags.Changed("workers") {
		cmdConf["mcp.workers"] = serverWorkers
	}
	if flags.Changed("otel-endpoint") {
		cmdConf["otel.endpoint"] = serverOTelEndpoint
	}
	if Debug {
		cmdConf["log_level"] = "debug"
	}
	return cmdConf
}
