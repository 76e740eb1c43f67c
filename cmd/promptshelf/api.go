package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptshelf/internal/api"
	"github.com/jackzampolin/promptshelf/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running promptshelf server via HTTP.

These commands require a running server (promptshelf serve).
Use --server to specify a custom server URL and --user to pick the
identity sent with each request.

Examples:
  promptshelf api health                         # Check server health
  promptshelf api prompts list --tag writing     # List prompts by tag
  promptshelf api versions compare <id> 2 --color`,
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Prompt management commands",
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Version history commands",
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Tag catalog commands",
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Runtime settings commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

// addGroup attaches the commands of eps to parent.
func addGroup(parent *cobra.Command, eps []api.Endpoint) {
	for _, ep := range eps {
		if cmd := ep.Command(getServerURL); cmd != nil {
			parent.AddCommand(cmd)
		}
	}
}

func init() {
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Top level of api
	addGroup(apiCmd, []api.Endpoint{
		&endpoints.HealthEndpoint{},
		&endpoints.ReadyEndpoint{},
		&endpoints.StatusEndpoint{},
		&endpoints.MetricsEndpoint{},
		&endpoints.SwaggerEndpoint{},
		&endpoints.HighlightEndpoint{},
		&endpoints.ListPlatformsEndpoint{},
		&endpoints.SharedPromptEndpoint{},
	})

	addGroup(promptsCmd, endpoints.PromptCommands())
	addGroup(versionsCmd, endpoints.VersionCommands())
	addGroup(tagsCmd, endpoints.TagCommands())
	addGroup(settingsCmd, endpoints.SettingsCommands())

	apiCmd.AddCommand(promptsCmd)
	apiCmd.AddCommand(versionsCmd)
	apiCmd.AddCommand(tagsCmd)
	apiCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(apiCmd)
}
