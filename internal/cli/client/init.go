package client

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// InitCmd creates the init command.
func InitCmd() *cobra.Command {
	var skipCheck, reset bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Configure the huddle CLI",
		Long: `Checks that the huddle API is reachable and saves its URL to the
user config file. The URL is prompted for when --api-url is not given.
--reset removes the saved config instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reset {
				return runReset(cmd)
			}
			apiURL, _ := cmd.Flags().GetString("api-url")
			return runInit(cmd, apiURL, skipCheck)
		},
	}

	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Save without checking the API health")
	cmd.Flags().BoolVar(&reset, "reset", false, "Remove the saved config")
	cmd.MarkFlagsMutuallyExclusive("reset", "skip-check")

	return cmd
}

func runInit(cmd *cobra.Command, apiURL string, skipCheck bool) error {
	if apiURL == "" {
		var err error
		apiURL, err = promptURL(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}
	apiURL = normalizeURL(apiURL)

	if !skipCheck {
		api := NewAPIClientWithConfig(apiURL, defaultTimeout)
		var health struct {
			Status string `json:"status"`
		}
		if err := api.GetInto(cmd.Context(), "/health", &health); err != nil {
			return fmt.Errorf("huddle API at %s is not reachable: %w", apiURL, err)
		}
	}

	if err := SaveGlobalConfig(&GlobalConfig{APIURL: apiURL}); err != nil {
		return err
	}
	configPath, _ := GetConfigPath()

	out := cmd.OutOrStdout()
	if wantJSON(cmd) {
		return printJSON(out, map[string]interface{}{
			"success": true,
			"api_url": apiURL,
			"config":  configPath,
		})
	}

	fmt.Fprintf(out, "Saved API URL %s to %s\n", apiURL, configPath)
	return nil
}

func runReset(cmd *cobra.Command) error {
	if err := DeleteGlobalConfig(); err != nil {
		return err
	}
	configPath, _ := GetConfigPath()

	out := cmd.OutOrStdout()
	if wantJSON(cmd) {
		return printJSON(out, map[string]interface{}{
			"success": true,
			"config":  configPath,
		})
	}
	fmt.Fprintf(out, "Removed %s\n", configPath)
	return nil
}

func promptURL(in io.Reader, prompt io.Writer) (string, error) {
	fmt.Fprintf(prompt, "API URL [%s]: ", defaultAPIURL)
	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read API URL: %w", err)
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultAPIURL, nil
	}
	return input, nil
}
