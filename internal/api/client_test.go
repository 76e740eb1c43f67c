package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClient_SendsUserHeader(t *testing.T) {
	var gotUser, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get(DefaultUserHeader)
		gotCustom = r.Header.Get("X-Remote-User")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var resp map[string]bool
	if err := NewClient(srv.URL, WithUser("", "alice")).Get(context.Background(), "/", &resp); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotUser != "alice" {
		t.Errorf("user header = %q, want alice", gotUser)
	}
	if !resp["ok"] {
		t.Errorf("response = %v", resp)
	}

	if err := NewClient(srv.URL, WithUser("X-Remote-User", "bob")).Get(context.Background(), "/", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotCustom != "bob" {
		t.Errorf("custom header = %q, want bob", gotCustom)
	}
}

func TestClient_GlobalUser(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(DefaultUserHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	SetUserID("carol")
	defer SetUserID("")

	if err := NewClient(srv.URL).Delete(context.Background(), "/x"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got != "carol" {
		t.Errorf("user header = %q, want carol", got)
	}
}

func TestClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "prompt abc: not found"})
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Post(context.Background(), "/api/prompts", map[string]string{"title": "x"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v", err)
	}
}

func TestOutputTo(t *testing.T) {
	data := map[string]any{"title": "Summarize", "tags": []string{"a"}}

	var js bytes.Buffer
	if err := OutputTo(&js, OutputFormatJSON, data); err != nil {
		t.Fatalf("OutputTo(json) error = %v", err)
	}
	if !strings.Contains(js.String(), `"title": "Summarize"`) {
		t.Errorf("json output = %s", js.String())
	}

	var ym bytes.Buffer
	if err := OutputTo(&ym, OutputFormatYAML, data); err != nil {
		t.Fatalf("OutputTo(yaml) error = %v", err)
	}
	if !strings.Contains(ym.String(), "title: Summarize") {
		t.Errorf("yaml output = %s", ym.String())
	}

	if err := OutputTo(&ym, "xml", data); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestOutputToFile(t *testing.T) {
	SetOutputFormat("json")
	defer SetOutputFormat("yaml")

	path := filepath.Join(t.TempDir(), "spec.json")
	if err := OutputToFile(map[string]string{"swagger": "2.0"}, path); err != nil {
		t.Fatalf("OutputToFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not json: %v", err)
	}
	if got["swagger"] != "2.0" {
		t.Errorf("got %v", got)
	}
}
