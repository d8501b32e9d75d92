package main

import (
	"fmt"
	"os"

	"github.com/gridpoint-ai/gridpoint/internal/cli"
	"github.com/gridpoint-ai/gridpoint/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "gridpoint",
		Short: "Gridpoint CLI - RAG assistant for renewable energy project documents",
		Long: `Gridpoint CLI provides commands to manage projects and documents and to
ask questions grounded in your project files.

Environment variables:
  GRIDPOINT_API_KEY   API key for authentication (required)
  GRIDPOINT_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ProjectCmd())
	rootCmd.AddCommand(client.DocCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.AuthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
