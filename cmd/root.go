// Package cmd provides the filem CLI commands.
//
// Commands:
//   - serve: session-oriented HTTP server with SSE event streaming
//   - mcp: Model Context Protocol server on stdio for editor integration
//
// All commands handle SIGINT/SIGTERM via context cancellation.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "filem",
	Short: "filem - LLM-driven media file organizer",
	Long: `filem organizes media libraries with an LLM in the driver's seat.

It runs a session-oriented server on which a model inspects directory
structures, proposes Emby-style renames, and applies them through a small
set of audited file tools. The same toolset is also available as a
standalone MCP server for editors and other MCP clients.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
