package client

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/huddlehq/huddle/internal/pagination"
	"github.com/spf13/cobra"
)

// ChatAnswer is the API response to a chat question.
type ChatAnswer struct {
	Answer      string   `json:"answer"`
	Suggestions []string `json:"suggestions"`
	Mode        string   `json:"mode"`
}

// ChatTurn is one stored question and answer.
type ChatTurn struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	CreatedAt string `json:"created_at"`
}

// ChatCmd creates the chat command.
func ChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <source_id> <question...>",
		Short: "Ask a question about a source",
		Example: `  huddle chat standup-0412 "Who owns the release checklist?"
  huddle chat standup-0412 what did we decide about pricing`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := trimmedArgs(args[1:])
			if question == "" {
				return fmt.Errorf("question is required")
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var answer ChatAnswer
			path := "/chatbot/" + pathID(args[0]) + "/chat"
			if err := api.PostInto(cmd.Context(), path, map[string]string{"message": question}, &answer); err != nil {
				return fmt.Errorf("chat failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, answer)
			}

			fmt.Fprintln(out, answer.Answer)
			if len(answer.Suggestions) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "You could also ask:")
				for _, s := range answer.Suggestions {
					fmt.Fprintf(out, "  - %s\n", s)
				}
			}
			return nil
		},
	}

	return cmd
}

// HistoryCmd creates the history command.
func HistoryCmd() *cobra.Command {
	var (
		limit  int
		cursor string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "history <source_id>",
		Short: "Show the chat history of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var turns []ChatTurn
			next := cursor
			for {
				q := url.Values{}
				q.Set("limit", strconv.Itoa(limit))
				if next != "" {
					q.Set("cursor", next)
				}

				var page pagination.PageResult[ChatTurn]
				path := "/chatbot/" + pathID(args[0]) + "/history?" + q.Encode()
				if err := api.GetInto(cmd.Context(), path, &page); err != nil {
					return fmt.Errorf("failed to get history: %w", err)
				}

				turns = append(turns, page.Items...)
				next = page.Cursor
				if !all || !page.HasMore || next == "" {
					break
				}
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				result := map[string]interface{}{"items": turns}
				if !all && next != "" {
					result["cursor"] = next
				}
				return printJSON(out, result)
			}

			if len(turns) == 0 {
				fmt.Fprintln(out, "No chat history")
				return nil
			}
			for _, t := range turns {
				fmt.Fprintf(out, "[%s]\n", t.CreatedAt)
				fmt.Fprintf(out, "Q: %s\n", t.Question)
				fmt.Fprintf(out, "A: %s\n\n", t.Answer)
			}
			if !all && next != "" {
				fmt.Fprintf(out, "More history available: --cursor %s\n", next)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", pagination.DefaultLimit, "Turns per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor from a previous page")
	cmd.Flags().BoolVar(&all, "all", false, "Fetch every page")

	return cmd
}

// SuggestionsCmd creates the suggestions command.
func SuggestionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggestions <source_id>",
		Short: "Suggest questions to ask about a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var result struct {
				Suggestions []string `json:"suggestions"`
			}
			if err := api.GetInto(cmd.Context(), "/chatbot/"+pathID(args[0])+"/suggestions", &result); err != nil {
				return fmt.Errorf("failed to get suggestions: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, result)
			}
			for _, s := range result.Suggestions {
				fmt.Fprintf(out, "- %s\n", s)
			}
			return nil
		},
	}
}
