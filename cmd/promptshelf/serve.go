package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptshelf/internal/defra"
	"github.com/jackzampolin/promptshelf/internal/home"
	"github.com/jackzampolin/promptshelf/internal/server"
)

var (
	serveHost     string
	servePort     string
	serveMemory   bool
	serveDefraURL string
	serveLogLevel string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the promptshelf server",
	Long: `Start the promptshelf HTTP server.

Unless --memory or a DefraDB URL is given, this also starts a DefraDB
container. When the server shuts down (via Ctrl+C or SIGTERM), DefraDB
is also stopped.

The server provides:
  - /health  - Basic server health check
  - /ready   - Readiness check (includes DefraDB status)
  - /api/... - Prompt, tag, version and settings endpoints

Examples:
  promptshelf serve                                 # Start on default port 8080
  promptshelf serve --port 3000                     # Start on custom port
  promptshelf serve --memory                        # Keep everything in memory
  promptshelf serve --defra-url http://db:9181      # Use an external DefraDB`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var level slog.Level
		if err := level.UnmarshalText([]byte(serveLogLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", serveLogLevel, err)
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cfgMgr, err := loadConfig(h)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()
		cfg := cfgMgr.Get()
		if file := cfgMgr.ConfigFile(); file != "" {
			logger.Info("loaded config", "file", file)
		}

		// Flags win over the config file
		host, port, defraURL := cfg.Server.Host, cfg.Server.Port, cfg.Defra.URL
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		if cmd.Flags().Changed("defra-url") {
			defraURL = serveDefraURL
		}

		var dataPath string
		if !serveMemory && defraURL == "" {
			dataPath = h.DataPath()
			if err := os.MkdirAll(dataPath, 0o755); err != nil {
				return err
			}
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			DefraURL:      defraURL,
			DefraDataPath: dataPath,
			DefraConfig: defra.DockerConfig{
				ContainerName: cfg.Defra.ContainerName,
				HomePath:      h.Path(),
				Image:         cfg.Defra.Image,
				HostPort:      cfg.Defra.Port,
			},
			Memory:        serveMemory,
			UserHeader:    cfg.Auth.UserHeader,
			Home:          h,
			ConfigManager: cfgMgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (overrides server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on (overrides server.port)")
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Keep all data in memory instead of DefraDB")
	serveCmd.Flags().StringVar(&serveDefraURL, "defra-url", "", "External DefraDB URL (overrides defra.url)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(serveCmd)
}
