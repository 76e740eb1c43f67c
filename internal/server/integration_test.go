package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jackzampolin/promptshelf/internal/config"
	"github.com/jackzampolin/promptshelf/internal/defra"
	"github.com/jackzampolin/promptshelf/internal/prompts"
	"github.com/jackzampolin/promptshelf/internal/server/endpoints"
	"github.com/jackzampolin/promptshelf/internal/testutil"
)

// TestServer_DefraLifecycle runs the server against a managed DefraDB container.
// This test requires Docker to be running.
func TestServer_DefraLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	cfg := testutil.NewServerConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	if err := config.WriteDefault(cfg.ConfigFile); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	cfgMgr, err := config.NewManager(cfg.ConfigFile)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	srv, err := New(Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		DefraDataPath: cfg.DefraDataPath,
		DefraConfig: defra.DockerConfig{
			ContainerName: cfg.DefraConfig.ContainerName,
			HostPort:      cfg.DefraConfig.HostPort,
			Labels:        cfg.DefraConfig.Labels,
		},
		ConfigManager: cfgMgr,
		Logger:        cfg.Logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	serverCtx, serverCancel := context.WithCancel(ctx)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(serverCtx)
	}()
	starter := testutil.StartServer{Cancel: serverCancel, Done: serverErr}
	t.Cleanup(starter.Stop)

	if err := testutil.WaitForServer(cfg.URL(), 2*time.Minute); err != nil {
		t.Fatalf("server did not start: %v", err)
	}

	t.Run("status reports a healthy container", func(t *testing.T) {
		status, err := testutil.GetStatus(cfg.URL())
		if err != nil {
			t.Fatalf("GetStatus() error = %v", err)
		}
		if status.Defra.Container != string(defra.StatusRunning) {
			t.Errorf("container = %q, want %q", status.Defra.Container, defra.StatusRunning)
		}
		if status.Defra.Health != "healthy" {
			t.Errorf("health = %q, want healthy", status.Defra.Health)
		}
	})

	t.Run("ready_endpoint", func(t *testing.T) {
		resp, err := http.Get(cfg.URL() + "/ready")
		if err != nil {
			t.Fatalf("ready check failed: %v", err)
		}
		defer resp.Body.Close()

		var health endpoints.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.StatusCode != http.StatusOK || health.Defra != "ok" {
			t.Errorf("ready = %d %+v, want 200 with defra ok", resp.StatusCode, health)
		}
	})

	t.Run("prompt round trip", func(t *testing.T) {
		var created prompts.Prompt
		status := doJSON(t, "POST", cfg.URL()+"/api/prompts", "alice", prompts.Input{
			Title:   ptr("Outline"),
			Content: ptr("Write an outline"),
			Tags:    ptr([]string{"writing"}),
		}, &created)
		if status != http.StatusCreated {
			t.Fatalf("create status = %d", status)
		}

		status = doJSON(t, "PATCH", cfg.URL()+"/api/prompts/"+created.ID, "alice",
			prompts.Input{Content: ptr("Write a detailed outline")}, nil)
		if status != http.StatusOK {
			t.Fatalf("update status = %d", status)
		}

		var cmp endpoints.CompareResponse
		status = doJSON(t, "GET", cfg.URL()+"/api/prompts/"+created.ID+"/versions/1/compare?mode=aligned", "alice", nil, &cmp)
		if status != http.StatusOK {
			t.Fatalf("compare status = %d", status)
		}
		if cmp.Stats.Added != 2 {
			t.Errorf("added = %d, want 2 (%+v)", cmp.Stats.Added, cmp.Result)
		}
	})

	t.Run("defra_client_works", func(t *testing.T) {
		client := srv.DefraClient()
		if client == nil {
			t.Fatal("DefraClient() returned nil")
		}
		if err := client.HealthCheck(ctx); err != nil {
			t.Errorf("DefraDB health check failed: %v", err)
		}
	})
}
