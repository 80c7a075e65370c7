package main

import (
	"fmt"
	"os"

	"github.com/huddlehq/huddle/internal/cli"
	"github.com/huddlehq/huddle/internal/cli/daemon"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "huddled",
		Short: "Huddle daemon",
		Long:  "Huddle daemon for running the API server, applying migrations and rebuilding embedding indexes",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(daemon.ServeCmd())
	rootCmd.AddCommand(daemon.MigrateCmd())
	rootCmd.AddCommand(daemon.ReindexCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
