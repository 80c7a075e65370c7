package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Translation is the API response to a translate request.
type Translation struct {
	SourceID    string `json:"source_id"`
	Language    string `json:"language"`
	Translation string `json:"translation"`
}

// Insights is the API response to an insights request.
type Insights struct {
	SourceID string `json:"source_id"`
	Insights string `json:"insights"`
}

// TranslateCmd creates the translate command.
func TranslateCmd() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:     "translate <source_id>",
		Short:   "Translate a source into another language",
		Example: `  huddle translate standup-0412 --language German`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			language = strings.TrimSpace(language)
			if language == "" {
				return fmt.Errorf("--language is required")
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var result Translation
			body := map[string]string{"language": language}
			if err := api.PostInto(cmd.Context(), sourcePath(args[0])+"/translate", body, &result); err != nil {
				return fmt.Errorf("translation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, result)
			}
			fmt.Fprintln(out, result.Translation)
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Target language (required)")
	_ = cmd.MarkFlagRequired("language")

	return cmd
}

// InsightsCmd creates the insights command.
func InsightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insights <source_id>",
		Short: "Generate insights about a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var result Insights
			if err := api.PostInto(cmd.Context(), sourcePath(args[0])+"/insights", nil, &result); err != nil {
				return fmt.Errorf("insights failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, result)
			}
			fmt.Fprintln(out, result.Insights)
			return nil
		},
	}
}
