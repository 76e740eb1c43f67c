package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/promptshelf/internal/prompts"
	"github.com/jackzampolin/promptshelf/internal/server/endpoints"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startMemoryServer runs an in-memory server on a free port until the test ends.
func startMemoryServer(t *testing.T) (*Server, string) {
	t.Helper()

	srv, err := New(Config{Port: "0", Memory: true, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("server did not shut down")
		}
	})

	baseURL, err := waitForReady(srv, 10*time.Second)
	if err != nil {
		t.Fatalf("server did not start: %v", err)
	}
	return srv, baseURL
}

// waitForReady polls /ready once the listener is bound.
func waitForReady(srv *Server, timeout time.Duration) (string, error) {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		_, port, _ := net.SplitHostPort(srv.Addr())
		if port != "" && port != "0" {
			baseURL := "http://" + srv.Addr()
			resp, err := client.Get(baseURL + "/ready")
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return baseURL, nil
				}
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return "", fmt.Errorf("not ready after %v", timeout)
}

func doJSON(t *testing.T, method, url, user string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func ptr[T any](v T) *T { return &v }

func TestNew_Defaults(t *testing.T) {
	srv, err := New(Config{Memory: true, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := srv.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q, want %q", got, "127.0.0.1:8080")
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true before Start")
	}
	if srv.DefraClient() != nil {
		t.Error("DefraClient() should be nil in memory mode")
	}
}

func TestHandler_BeforeStart(t *testing.T) {
	srv, err := New(Config{Memory: true, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h := srv.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		want   int
	}{
		{"health is always up", "GET", "/health", "", http.StatusOK},
		{"ready reports not initialized", "GET", "/ready", "", http.StatusServiceUnavailable},
		{"anonymous prompt list is rejected first", "GET", "/api/prompts", "", http.StatusUnauthorized},
		{"prompt list waits for init", "GET", "/api/prompts", "alice", http.StatusServiceUnavailable},
		{"platforms need neither", "GET", "/api/platforms", "", http.StatusOK},
		{"unknown api path", "GET", "/api/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.user != "" {
				req.Header.Set("X-User-ID", tt.user)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d (body %s)", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
			}
			if rec.Header().Get(RequestIDHeader) == "" {
				t.Error("missing request id header")
			}
		})
	}
}

func TestHandler_RequestIDEchoed(t *testing.T) {
	srv, err := New(Config{Memory: true, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("request id = %q, want %q", got, "req-123")
	}
}

func TestServer_MemoryLifecycle(t *testing.T) {
	srv, baseURL := startMemoryServer(t)

	if !srv.IsRunning() {
		t.Fatal("IsRunning() = false, want true")
	}

	var created prompts.Prompt
	status := doJSON(t, "POST", baseURL+"/api/prompts", "alice", prompts.Input{
		Title:   ptr("Summarize"),
		Content: ptr("Summarize the text below"),
		Tags:    ptr([]string{"writing", " Work "}),
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", status, http.StatusCreated)
	}
	if created.Platform != "GPT" {
		t.Errorf("platform = %q, want seeded default GPT", created.Platform)
	}

	t.Run("list is scoped to the caller", func(t *testing.T) {
		var mine endpoints.PromptsListResponse
		doJSON(t, "GET", baseURL+"/api/prompts", "alice", nil, &mine)
		if len(mine.Prompts) != 1 {
			t.Errorf("alice sees %d prompts, want 1", len(mine.Prompts))
		}
		if mine.Limit != 50 {
			t.Errorf("limit = %d, want 50 from settings", mine.Limit)
		}

		var theirs endpoints.PromptsListResponse
		doJSON(t, "GET", baseURL+"/api/prompts", "bob", nil, &theirs)
		if len(theirs.Prompts) != 0 {
			t.Errorf("bob sees %d prompts, want 0", len(theirs.Prompts))
		}
		if got := doJSON(t, "GET", baseURL+"/api/prompts/"+created.ID, "bob", nil, nil); got != http.StatusNotFound {
			t.Errorf("bob get = %d, want 404", got)
		}
	})

	t.Run("tags are registered", func(t *testing.T) {
		var tags endpoints.TagsResponse
		doJSON(t, "GET", baseURL+"/api/tags", "alice", nil, &tags)
		if len(tags.Tags) != 2 {
			t.Errorf("tags = %+v, want 2", tags.Tags)
		}
	})

	t.Run("content updates create versions", func(t *testing.T) {
		var updated prompts.Prompt
		status := doJSON(t, "PATCH", baseURL+"/api/prompts/"+created.ID, "alice",
			prompts.Input{Content: ptr("Summarize the article below")}, &updated)
		if status != http.StatusOK {
			t.Fatalf("update status = %d", status)
		}

		var history prompts.PromptHistory
		doJSON(t, "GET", baseURL+"/api/prompts/"+created.ID+"/versions", "alice", nil, &history)
		if len(history.Versions) != 1 {
			t.Fatalf("versions = %d, want 1", len(history.Versions))
		}
		if history.Versions[0].Content != "Summarize the text below" {
			t.Errorf("version content = %q, want previous content", history.Versions[0].Content)
		}

		var cmp endpoints.CompareResponse
		status = doJSON(t, "GET", baseURL+"/api/prompts/"+created.ID+"/versions/1/compare?format=html", "alice", nil, &cmp)
		if status != http.StatusOK {
			t.Fatalf("compare status = %d", status)
		}
		if cmp.HTML == nil || !strings.Contains(cmp.HTML.New, "article") {
			t.Errorf("compare html = %+v, want highlighted new text", cmp.HTML)
		}
		if cmp.Stats.Removed != 1 || cmp.Stats.Added != 1 {
			t.Errorf("stats = %+v, want one removed and one added", cmp.Stats)
		}

		if got := doJSON(t, "GET", baseURL+"/api/prompts/"+created.ID+"/versions/9/compare", "alice", nil, nil); got != http.StatusNotFound {
			t.Errorf("missing version compare = %d, want 404", got)
		}
	})

	t.Run("shared link needs no identity", func(t *testing.T) {
		var shared prompts.Prompt
		if got := doJSON(t, "GET", baseURL+"/api/shared/"+created.ID, "", nil, &shared); got != http.StatusOK {
			t.Fatalf("shared status = %d, want 200", got)
		}
		if shared.Title != "Summarize" {
			t.Errorf("shared title = %q", shared.Title)
		}
	})

	t.Run("settings drive defaults", func(t *testing.T) {
		status := doJSON(t, "PUT", baseURL+"/api/settings/prompts.list_limit", "alice",
			endpoints.UpdateSettingRequest{Value: 5}, nil)
		if status != http.StatusOK {
			t.Fatalf("set status = %d", status)
		}
		var page endpoints.PromptsListResponse
		doJSON(t, "GET", baseURL+"/api/prompts", "alice", nil, &page)
		if page.Limit != 5 {
			t.Errorf("limit = %d, want 5", page.Limit)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if got := doJSON(t, "DELETE", baseURL+"/api/prompts/"+created.ID, "alice", nil, nil); got != http.StatusNoContent {
			t.Errorf("delete = %d, want 204", got)
		}
		if got := doJSON(t, "GET", baseURL+"/api/prompts/"+created.ID, "alice", nil, nil); got != http.StatusNotFound {
			t.Errorf("get after delete = %d, want 404", got)
		}
	})

	t.Run("requests are counted", func(t *testing.T) {
		summary, err := srv.Metrics().Summary()
		if err != nil {
			t.Fatalf("Summary() error = %v", err)
		}
		if summary.Requests == 0 {
			t.Error("no requests recorded")
		}
		if summary.PromptWrites["create"] != 1 {
			t.Errorf("create writes = %d, want 1", summary.PromptWrites["create"])
		}
	})
}

func TestServer_AlreadyRunning(t *testing.T) {
	srv, _ := startMemoryServer(t)
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
}
