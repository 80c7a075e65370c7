package main

import (
	"fmt"
	"os"

	"github.com/huddlehq/huddle/internal/cli"
	"github.com/huddlehq/huddle/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "huddle",
		Short: "Huddle CLI - summaries, knowledge graphs and Q&A for meetings and documents",
		Long: `Huddle CLI talks to a huddled API server.

Environment variables:
  HUDDLE_API_URL   API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	client.AddPersistentFlags(rootCmd)
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.SourceCmd())
	rootCmd.AddCommand(client.SummaryCmd())
	rootCmd.AddCommand(client.GraphCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.HistoryCmd())
	rootCmd.AddCommand(client.SuggestionsCmd())
	rootCmd.AddCommand(client.TranslateCmd())
	rootCmd.AddCommand(client.InsightsCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
