package main

import (
	"fmt"
	"os"

	"github.com/gridpoint-ai/gridpoint/internal/cli"
	"github.com/gridpoint-ai/gridpoint/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gridpointd",
		Short: "Gridpoint daemon and admin CLI",
		Long:  "Gridpoint daemon for running the API server and managing users and API keys",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.UserCmd())
	rootCmd.AddCommand(admin.APIKeyCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
