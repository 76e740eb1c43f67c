package defra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy_500", http.StatusInternalServerError, true},
		{"unhealthy_503", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health-check" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			err := NewClient(server.URL).HealthCheck(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnhealthy) {
				t.Errorf("HealthCheck() error = %v, want ErrUnhealthy", err)
			}
		})
	}
}

func TestClient_HealthCheck_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewClient(server.URL).HealthCheck(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestClient_WaitHealthy(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.WaitHealthy(context.Background(), 5, time.Millisecond); err != nil {
		t.Fatalf("WaitHealthy() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("health checks = %d, want 3", got)
	}

	calls.Store(-100)
	if err := client.WaitHealthy(context.Background(), 2, time.Millisecond); err == nil {
		t.Error("WaitHealthy() should fail when attempts run out")
	}
}

func TestClient_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/graphql" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content-type: %s", ct)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"Prompt": [{"_docID": "abc123", "title": "Test"}]}}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Execute(context.Background(), `{ Prompt { _docID title } }`, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Error() != "" {
		t.Errorf("unexpected GraphQL error: %s", resp.Error())
	}

	docs, err := resp.Docs("Prompt")
	if err != nil {
		t.Fatalf("Docs() error = %v", err)
	}
	if len(docs) != 1 || String(docs[0], "title") != "Test" {
		t.Errorf("Docs() = %v", docs)
	}
}

func TestClient_Execute_WithVariables(t *testing.T) {
	var received GQLRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"Prompt": []}}`))
	}))
	defer server.Close()

	vars := map[string]any{"id": "test-id"}
	_, err := NewClient(server.URL).Execute(context.Background(), `query($id: String) { Prompt(filter: {_docID: {_eq: $id}}) { title } }`, vars)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if received.Variables["id"] != "test-id" {
		t.Errorf("variables not sent: %v", received.Variables)
	}
}

func TestClient_Execute_GraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors": [{"message": "field not found"}]}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Execute(context.Background(), `{ Invalid }`, nil)
	if err != nil {
		t.Fatalf("Execute() returned transport error: %v", err)
	}
	if resp.Error() != "field not found" {
		t.Errorf("unexpected error message: %q", resp.Error())
	}
}

func TestClient_Execute_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Execute(context.Background(), `{ Prompt { title } }`, nil)
	if err == nil || !strings.Contains(err.Error(), "upstream down") {
		t.Errorf("Execute() error = %v, want server error with body", err)
	}
}

func TestClient_AddSchema(t *testing.T) {
	var receivedSchema string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/schema" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "text/plain" {
			t.Errorf("unexpected content-type: %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		receivedSchema = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	schema := `type Tag { name: String }`
	if err := NewClient(server.URL).AddSchema(context.Background(), schema); err != nil {
		t.Fatalf("AddSchema() error = %v", err)
	}
	if receivedSchema != schema {
		t.Errorf("schema mismatch: got %q, want %q", receivedSchema, schema)
	}
}

func TestClient_AddSchema_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid schema syntax"))
	}))
	defer server.Close()

	if err := NewClient(server.URL).AddSchema(context.Background(), `invalid {`); err == nil {
		t.Error("expected error for invalid schema")
	}
}

func TestClient_Create(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GQLRequest
		json.NewDecoder(r.Body).Decode(&req)
		query = req.Query
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"create_Prompt": [{"_docID": "bae-abc123", "title": "Hello"}]}}`))
	}))
	defer server.Close()

	res, err := NewClient(server.URL).Create(context.Background(), "Prompt", map[string]any{
		"title": "Hello",
		"tags":  []string{"a", "b"},
	}, "title")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.DocID != "bae-abc123" {
		t.Errorf("unexpected docID: %s", res.DocID)
	}
	if res.Fields["title"] != "Hello" {
		t.Errorf("Fields = %v", res.Fields)
	}
	want := `mutation { create_Prompt(input: {tags: ["a", "b"], title: "Hello"}) { _docID title } }`
	if query != want {
		t.Errorf("mutation = %s\nwant %s", query, want)
	}
}

func TestClient_Create_GraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors": [{"message": "collection not found"}]}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Create(context.Background(), "Prompt", map[string]any{"title": "x"})
	if err == nil || !strings.Contains(err.Error(), "collection not found") {
		t.Errorf("Create() error = %v", err)
	}
}

func TestClient_UpdateRejectsUnsafeID(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	if _, err := client.Update(context.Background(), "Prompt", `x") { _docID } }`, map[string]any{}); err == nil {
		t.Error("Update() should reject unsafe IDs")
	}
	if err := client.Delete(context.Background(), "Prompt", ""); err == nil {
		t.Error("Delete() should reject empty IDs")
	}
}

func TestClient_URLNormalization(t *testing.T) {
	if got := NewClient("http://localhost:9181/").URL(); got != "http://localhost:9181" {
		t.Errorf("URL not normalized: %s", got)
	}
	if got := NewClient("http://localhost:9181").URL(); got != "http://localhost:9181" {
		t.Errorf("URL changed unexpectedly: %s", got)
	}
}

func TestMapToGraphQLInput(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]any
		want  string
	}{
		{"string value", map[string]any{"title": "Test"}, `{title: "Test"}`},
		{"control characters", map[string]any{"content": "a\nb\x07"}, `{content: "a\nb\u0007"}`},
		{"int value", map[string]any{"version": 42}, `{version: 42}`},
		{"bool value", map[string]any{"active": true}, `{active: true}`},
		{"string list", map[string]any{"tags": []string{"x"}}, `{tags: ["x"]}`},
		{"time value", map[string]any{"at": time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}, `{at: "2024-01-02T03:04:05Z"}`},
		{"keys sorted", map[string]any{"b": 1, "a": 2}, `{a: 2, b: 1}`},
		{"empty map", map[string]any{}, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mapToGraphQLInput(tt.input)
			if err != nil {
				t.Fatalf("mapToGraphQLInput() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("mapToGraphQLInput() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDocHelpers(t *testing.T) {
	doc := map[string]any{
		"title":      "x",
		"version":    float64(3),
		"tags":       []any{"a", 1, "b"},
		"created_at": "2024-05-01T10:00:00Z",
		"bad_time":   "yesterday",
	}

	if String(doc, "title") != "x" || String(doc, "missing") != "" {
		t.Error("String() mismatch")
	}
	if Int(doc, "version") != 3 || Int(doc, "title") != 0 {
		t.Error("Int() mismatch")
	}
	if got := Strings(doc, "tags"); len(got) != 2 || got[1] != "b" {
		t.Errorf("Strings() = %v", got)
	}
	if Time(doc, "created_at").Year() != 2024 || !Time(doc, "bad_time").IsZero() {
		t.Error("Time() mismatch")
	}
}
