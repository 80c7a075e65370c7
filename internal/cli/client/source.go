package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/huddlehq/huddle/internal/pagination"
	"github.com/spf13/cobra"
)

// Source represents a stored source from the API.
type Source struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	Language  string `json:"language,omitempty"`
	Length    int    `json:"length"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// PutSourceResult is the API response to storing a source.
type PutSourceResult struct {
	Source      Source `json:"source"`
	IndexQueued bool   `json:"index_queued"`
	IndexJobID  string `json:"index_job_id,omitempty"`
}

// IndexInfo describes a built embedding index.
type IndexInfo struct {
	SourceID   string `json:"source_id"`
	Model      string `json:"model"`
	ChunkCount int    `json:"chunk_count"`
	Dimension  int    `json:"dimension"`
	CreatedAt  string `json:"created_at"`
}

// SourceCmd creates the source command group.
func SourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "source",
		Short:   "Store, list, show and delete sources",
		Aliases: []string{"src"},
	}

	cmd.AddCommand(sourcePutCmd())
	cmd.AddCommand(sourceListCmd())
	cmd.AddCommand(sourceAppendCmd())
	cmd.AddCommand(sourceGetCmd())
	cmd.AddCommand(sourceDeleteCmd())
	cmd.AddCommand(sourceIndexCmd())

	return cmd
}

func sourcePutCmd() *cobra.Command {
	var kind, title, language, file string

	cmd := &cobra.Command{
		Use:   "put <source_id>",
		Short: "Create or replace a source",
		Long: `Stores a meeting transcript or document under the given id.
The content is read from --file, or from stdin when --file is "-" or omitted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			return runSourcePut(cmd, args[0], map[string]string{
				"kind":     kind,
				"title":    title,
				"content":  content,
				"language": language,
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "meeting", "Source kind: meeting or document")
	cmd.Flags().StringVar(&title, "title", "", "Source title")
	cmd.Flags().StringVar(&language, "language", "", "Source language")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "File to read content from")

	return cmd
}

func readContent(stdin io.Reader, file string) (string, error) {
	if file == "" || file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file, err)
	}
	return string(data), nil
}

func runSourcePut(cmd *cobra.Command, id string, body map[string]string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Put(cmd.Context(), sourcePath(id), body)
	if err != nil {
		return fmt.Errorf("failed to store source: %w", err)
	}

	var result PutSourceResult
	if err := resp.Decode(&result); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if wantJSON(cmd) {
		return printJSON(out, result)
	}

	fmt.Fprintf(out, "Stored %s %q (%d characters)\n", result.Source.Kind, result.Source.ID, result.Source.Length)
	if result.IndexQueued {
		fmt.Fprintf(out, "Embedding index queued (job %s)\n", result.IndexJobID)
	}
	return nil
}

func sourceListCmd() *cobra.Command {
	var (
		search string
		kind   string
		limit  int
		cursor string
		all    bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List sources, newest first",
		Aliases: []string{"ls"},
		Example: `  huddle source list --search roadmap
  huddle source list --kind document --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var sources []Source
			next := cursor
			for {
				q := url.Values{}
				q.Set("limit", strconv.Itoa(limit))
				if search != "" {
					q.Set("search", search)
				}
				if kind != "" {
					q.Set("kind", kind)
				}
				if next != "" {
					q.Set("cursor", next)
				}

				var page pagination.PageResult[Source]
				if err := api.GetInto(cmd.Context(), "/sources?"+q.Encode(), &page); err != nil {
					return fmt.Errorf("failed to list sources: %w", err)
				}

				sources = append(sources, page.Items...)
				next = page.Cursor
				if !all || !page.HasMore || next == "" {
					break
				}
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				result := map[string]interface{}{"items": sources}
				if !all && next != "" {
					result["cursor"] = next
				}
				return printJSON(out, result)
			}

			if len(sources) == 0 {
				fmt.Fprintln(out, "No sources")
				return nil
			}
			for _, src := range sources {
				title := src.Title
				if title == "" {
					title = "-"
				}
				fmt.Fprintf(out, "%s\t%s\t%d\t%s\n", src.ID, src.Kind, src.Length, title)
			}
			if !all && next != "" {
				fmt.Fprintf(out, "More sources available: --cursor %s\n", next)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Only sources whose title or content contains this text")
	cmd.Flags().StringVar(&kind, "kind", "", "Only sources of this kind: meeting or document")
	cmd.Flags().IntVar(&limit, "limit", pagination.DefaultLimit, "Sources per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor from a previous page")
	cmd.Flags().BoolVar(&all, "all", false, "Fetch every page")

	return cmd
}

func sourceAppendCmd() *cobra.Command {
	var speaker string

	cmd := &cobra.Command{
		Use:   "append <source_id> <text...>",
		Short: "Append a transcribed segment to a meeting",
		Example: `  huddle source append standup-0412 --speaker Dana "Release is blocked on QA"`,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := trimmedArgs(args[1:])
			if text == "" {
				return fmt.Errorf("text is required")
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var result PutSourceResult
			body := map[string]string{"speaker": speaker, "text": text}
			if err := api.PostInto(cmd.Context(), sourcePath(args[0])+"/segments", body, &result); err != nil {
				return fmt.Errorf("failed to append segment: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, result)
			}
			fmt.Fprintf(out, "Appended to %q (%d characters)\n", result.Source.ID, result.Source.Length)
			if result.IndexJobID != "" {
				fmt.Fprintf(out, "Embedding index queued (job %s)\n", result.IndexJobID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&speaker, "speaker", "", "Speaker label (default \"Speaker A\")")

	return cmd
}

func sourceGetCmd() *cobra.Command {
	var metadataOnly bool

	cmd := &cobra.Command{
		Use:   "get <source_id>",
		Short: "Show a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			path := sourcePath(args[0])
			if metadataOnly {
				path += "?content=false"
			}

			var src Source
			if err := api.GetInto(cmd.Context(), path, &src); err != nil {
				return fmt.Errorf("failed to get source: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, src)
			}

			fmt.Fprintf(out, "ID: %s\n", src.ID)
			fmt.Fprintf(out, "Kind: %s\n", src.Kind)
			if src.Title != "" {
				fmt.Fprintf(out, "Title: %s\n", src.Title)
			}
			if src.Language != "" {
				fmt.Fprintf(out, "Language: %s\n", src.Language)
			}
			fmt.Fprintf(out, "Length: %d\n", src.Length)
			fmt.Fprintf(out, "Updated: %s\n", src.UpdatedAt)
			if !metadataOnly {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "--- Content ---")
				fmt.Fprintln(out, src.Content)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&metadataOnly, "metadata", false, "Omit the source content")

	return cmd
}

func sourceDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <source_id>",
		Short:   "Delete a source with its summary, graph, chat history and index",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if _, err := api.Delete(cmd.Context(), sourcePath(args[0])); err != nil {
				return fmt.Errorf("failed to delete source: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, map[string]interface{}{"deleted": true, "id": args[0]})
			}
			fmt.Fprintf(out, "Deleted %s\n", args[0])
			return nil
		},
	}
}

func sourceIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <source_id>",
		Short: "Build the embedding index of a source now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var info IndexInfo
			if err := api.PostInto(cmd.Context(), sourcePath(args[0])+"/index", nil, &info); err != nil {
				return fmt.Errorf("failed to build index: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, info)
			}
			fmt.Fprintf(out, "Indexed %s: %d chunks, %d dimensions (%s)\n", info.SourceID, info.ChunkCount, info.Dimension, info.Model)
			return nil
		},
	}
}

func sourcePath(id string) string {
	return "/sources/" + pathID(id)
}

func pathID(id string) string {
	return url.PathEscape(id)
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("output")
	return v
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func trimmedArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
