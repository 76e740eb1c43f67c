package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptshelf/internal/api"
	"github.com/jackzampolin/promptshelf/internal/config"
	"github.com/jackzampolin/promptshelf/internal/home"
	"github.com/jackzampolin/promptshelf/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	userID       string
	userHeader   string
)

var rootCmd = &cobra.Command{
	Use:   "promptshelf",
	Short: "Personal prompt library with version history and word-level diffs",
	Long: `Promptshelf stores prompts for AI chat platforms, keeps a version
history for every edit, and highlights what changed between versions.

It includes:
  - A DefraDB-backed HTTP API with per-user prompt libraries
  - Tags, platform launch links and public share links
  - Positional and aligned word-level change highlighting
  - A CLI mirroring every API endpoint`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.promptshelf/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "promptshelf home directory (default: ~/.promptshelf)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVarP(
		&userID, "user", "u", os.Getenv("PROMPTSHELF_USER"), "user id sent to the server (env PROMPTSHELF_USER)",
	)
	rootCmd.PersistentFlags().StringVar(
		&userHeader, "user-header", api.DefaultUserHeader, "header that carries the user id",
	)

	// Set output format and identity before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
		api.SetUserID(userID)
		api.SetUserHeader(userHeader)
	}

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads --config, falling back to the home directory's config
// file when it exists.
func loadConfig(h *home.Dir) (*config.Manager, error) {
	path := cfgFile
	if path == "" && h != nil && h.ConfigExists() {
		path = h.ConfigPath()
	}
	return config.NewManager(path)
}
