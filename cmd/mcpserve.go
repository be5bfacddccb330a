//go:build integration

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/research-cli/pkg/mcp"
)

const serverVersion = "0.1.0"

var mcpServeCmd = &cobra.Command{
	Use:   "mcp-serve",
	Short: "Expose the research agent's tools over MCP on stdio",
	Long:  "Builds the same planner tool set the conversation agent uses (sql_query, document_search, web_search, market_quote) and serves it as an MCP server over stdio for any MCP-compatible client to call directly.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := buildConversationEnv(ctx)
		if err != nil {
			return fmt.Errorf("build conversation environment: %w", err)
		}
		defer env.Close()

		srv, err := mcp.NewServer("research-cli", serverVersion, env.Registry)
		if err != nil {
			return fmt.Errorf("build mcp server: %w", err)
		}

		return mcp.ServeStdio(srv)
	},
}

func init() {
	rootCmd.AddCommand(mcpServeCmd)
}
