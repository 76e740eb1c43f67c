package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/promptshelf/internal/api"
	"github.com/jackzampolin/promptshelf/internal/auth"
	"github.com/jackzampolin/promptshelf/internal/config"
	"github.com/jackzampolin/promptshelf/internal/defra"
	"github.com/jackzampolin/promptshelf/internal/home"
	"github.com/jackzampolin/promptshelf/internal/metrics"
	"github.com/jackzampolin/promptshelf/internal/prompts"
	"github.com/jackzampolin/promptshelf/internal/schema"
	"github.com/jackzampolin/promptshelf/internal/server/endpoints"
	"github.com/jackzampolin/promptshelf/internal/svcctx"
)

// Server is the promptshelf HTTP server.
// Unless it is pointed at an external DefraDB or runs in memory, it manages
// the DefraDB container lifecycle: starting it on server start and stopping
// it on shutdown.
type Server struct {
	httpServer   *http.Server
	listener     net.Listener
	defraManager *defra.DockerManager
	defraClient  *defra.Client
	configMgr    *config.Manager
	metrics      *metrics.Recorder
	home         *home.Dir
	logger       *slog.Logger
	cfg          Config

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080, "0" picks a free port)
	Port string
	// DefraURL connects to an externally managed DefraDB. No container is
	// started when it is set.
	DefraURL string
	// DefraDataPath is the path to persist DefraDB data
	DefraDataPath string
	// DefraConfig holds DefraDB container settings
	DefraConfig defra.DockerConfig
	// Memory keeps all data in process. DefraDB is not used.
	Memory bool
	// UserHeader carries the caller's identity (default: X-User-ID)
	UserHeader string
	// Home holds the PID file. Optional.
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.UserHeader == "" {
		cfg.UserHeader = auth.DefaultHeader
	}
	if cfg.DefraDataPath != "" {
		cfg.DefraConfig.DataPath = cfg.DefraDataPath
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		metrics:   metrics.NewRecorder(),
		home:      cfg.Home,
		logger:    cfg.Logger,
		cfg:       cfg,
	}

	if !cfg.Memory && cfg.DefraURL == "" {
		logger := cfg.Logger
		cfg.DefraConfig.OnReady = func(ctx context.Context, c *defra.Client) error {
			return schema.Initialize(ctx, c, logger)
		}
		defraManager, err := defra.NewDockerManager(cfg.DefraConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create defra manager: %w", err)
		}
		s.defraManager = defraManager
	}

	if cfg.ConfigManager != nil {
		header := cfg.UserHeader
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			cfg.Logger.Info("config reloaded",
				"default_platform", c.Defaults.Platform,
				"compare_mode", c.Defaults.CompareMode)
			if c.Auth.UserHeader != header {
				cfg.Logger.Warn("auth.user_header change takes effect after restart",
					"current", header, "configured", c.Auth.UserHeader)
			}
		})
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{DefraManager: s.defraManager}) {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit, s.requireUser)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(s.withRequestLog(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start initializes storage and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
// If an existing DefraDB container exists, it validates the configuration matches.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.home != nil {
		if pid := s.home.RunningPID(); pid != 0 {
			s.setNotRunning()
			return fmt.Errorf("server already running for %s (pid %d)", s.home.Path(), pid)
		}
		if err := s.home.WritePID(); err != nil {
			s.logger.Warn("failed to write pid file", "error", err)
		}
	}

	if err := s.initStores(ctx); err != nil {
		_ = s.shutdown()
		return err
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// initStores connects the prompt and settings stores and seeds defaults.
func (s *Server) initStores(ctx context.Context) error {
	var (
		promptStore prompts.Store
		configStore config.Store
	)

	switch {
	case s.cfg.Memory:
		s.logger.Info("using in-memory stores; data is lost on shutdown")
		promptStore = prompts.NewMemoryStore()
		configStore = config.NewMemoryStore()

	default:
		var client *defra.Client
		if s.defraManager != nil {
			if err := s.defraManager.ValidateExisting(ctx); err != nil {
				return fmt.Errorf("existing DefraDB container incompatible: %w", err)
			}
			s.logger.Info("starting DefraDB")
			if err := s.defraManager.Start(ctx); err != nil {
				return fmt.Errorf("failed to start DefraDB: %w", err)
			}
			client = s.defraManager.Client()
		} else {
			client = defra.NewClient(s.cfg.DefraURL)
			if err := client.WaitHealthy(ctx, 30, time.Second); err != nil {
				return fmt.Errorf("DefraDB health check failed: %w", err)
			}
			if err := schema.Initialize(ctx, client, s.logger); err != nil {
				return fmt.Errorf("schema initialization failed: %w", err)
			}
		}
		s.logger.Info("DefraDB is ready", "url", client.URL())

		s.defraClient = client
		promptStore = prompts.NewDefraStore(client, s.logger)
		configStore = config.NewStore(client)
	}

	var fileCfg *config.Config
	if s.configMgr != nil {
		fileCfg = s.configMgr.Get()
	}
	if err := config.SeedDefaults(ctx, configStore, config.EntriesFromConfig(fileCfg), s.logger); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}

	s.mu.Lock()
	s.services = &svcctx.Services{
		DefraClient:   s.defraClient,
		PromptService: prompts.NewService(promptStore, s.logger),
		ConfigStore:   configStore,
		Logger:        s.logger,
		Home:          s.home,
		Metrics:       s.metrics,
	}
	s.mu.Unlock()
	return nil
}

// shutdown performs graceful shutdown of both HTTP server and DefraDB.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.defraManager != nil {
		s.logger.Info("stopping DefraDB")
		if err := s.defraManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("DefraDB stop error", "error", err)
		}
		if err := s.defraManager.Close(); err != nil {
			s.logger.Error("DefraDB manager close error", "error", err)
		}
	}

	if s.home != nil {
		s.home.RemovePID()
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// DefraClient returns the DefraDB client.
// Returns nil before start and in memory mode.
func (s *Server) DefraClient() *defra.Client {
	return s.defraClient
}

// Addr returns the address the server listens on. After Start binds, it
// reflects the actual port when Port was "0".
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Metrics returns the server's metrics recorder.
func (s *Server) Metrics() *metrics.Recorder {
	return s.metrics
}

func (s *Server) currentServices() *svcctx.Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}
