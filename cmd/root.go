package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fabrikmcp/internal/config"
	"fabrikmcp/internal/log"
)

var (
	configPath string
	logLevel   string

	// cfg is loaded once per invocation by the root PersistentPreRunE.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fabrik-mcp",
	Short: "An MCP server for RAG analysis and agent-configured Gemini queries",
	Long: `fabrik-mcp serves MCP tools that analyse retrieved RAG chunks, fetch agent
configurations from a remote API, and query Gemini with a system prompt built
from such a configuration.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			c.Log.Level = logLevel
			if err := config.Validate(c); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
		}
		log.SetLevel(c.Log.Level)
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", log.LevelInfo, "Log level: debug, info, warn or error")
}

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
