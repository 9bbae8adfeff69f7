package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"fabrikmcp/internal/jsonrpc"
)

var (
	callURL     string
	callArgs    string
	callTimeout time.Duration
)

var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Calls a tool on a fabrik-mcp server running the http transport",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var arguments map[string]any
		if callArgs != "" {
			if err := json.Unmarshal([]byte(callArgs), &arguments); err != nil {
				return fmt.Errorf("--args must be a JSON object: %w", err)
			}
		}

		client := jsonrpc.NewClient(callURL, &http.Client{Timeout: callTimeout})
		if _, err := client.Initialize(cmd.Context(), cfg.Server.Name+"-cli", cfg.Server.Version); err != nil {
			return fmt.Errorf("initialize %s: %w", callURL, err)
		}

		res, err := client.CallTool(cmd.Context(), args[0], arguments)
		if err != nil {
			return fmt.Errorf("call %s: %w", args[0], err)
		}
		if res.IsError {
			return fmt.Errorf("tool %s reported an error: %s", args[0], res.Text())
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Text())
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the tools of a fabrik-mcp server running the http transport",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := jsonrpc.NewClient(callURL, &http.Client{Timeout: callTimeout})
		if _, err := client.Initialize(cmd.Context(), cfg.Server.Name+"-cli", cfg.Server.Version); err != nil {
			return fmt.Errorf("initialize %s: %w", callURL, err)
		}

		list, err := client.ListTools(cmd.Context())
		if err != nil {
			return fmt.Errorf("list tools: %w", err)
		}
		for _, tool := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", tool.Name, tool.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&callURL, "url", "u", "http://localhost:8080/mcp", "The MCP endpoint")
	listCmd.Flags().DurationVar(&callTimeout, "timeout", 2*time.Minute, "Timeout of each request")

	rootCmd.AddCommand(callCmd)
	callCmd.Flags().StringVarP(&callURL, "url", "u", "http://localhost:8080/mcp", "The MCP endpoint")
	callCmd.Flags().StringVarP(&callArgs, "args", "a", "", "Tool arguments as a JSON object")
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 2*time.Minute, "Timeout of each request")
}
