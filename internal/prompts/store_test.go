package prompts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/promptshelf/internal/defra"
)

// fakeDefra answers GraphQL requests from handler and records every request.
type fakeDefra struct {
	mu       sync.Mutex
	requests []defra.GQLRequest
}

func (f *fakeDefra) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Query
	}
	return out
}

func newFakeDefra(t *testing.T, handler func(req defra.GQLRequest) defra.GQLResponse) (*DefraStore, *fakeDefra) {
	t.Helper()
	f := &fakeDefra{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req defra.GQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(handler(req))
	}))
	t.Cleanup(server.Close)

	store := NewDefraStore(defra.NewClient(server.URL), nil)
	store.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return store, f
}

func data(key string, docs ...map[string]any) defra.GQLResponse {
	list := make([]any, len(docs))
	for i, d := range docs {
		list[i] = d
	}
	return defra.GQLResponse{Data: map[string]any{key: list}}
}

func promptDoc(id, user string) map[string]any {
	return map[string]any{
		"_docID":     id,
		"user_id":    user,
		"title":      "Title " + id,
		"content":    "content of " + id,
		"platform":   nil,
		"tags":       []any{"a"},
		"version":    nil,
		"created_at": "2024-02-01T10:00:00Z",
	}
}

func TestDefraStore_ListPrompts(t *testing.T) {
	store, fake := newFakeDefra(t, func(req defra.GQLRequest) defra.GQLResponse {
		return data("Prompt", promptDoc("bae-1", "alice"), promptDoc("bae-2", "alice"))
	})

	got, err := store.ListPrompts(context.Background(), "alice", ListFilter{Tag: "a", Platform: "claude", Search: "poem", Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "bae-1", got[0].ID)
	require.Equal(t, DefaultPlatform, got[0].Platform)
	require.Equal(t, DefaultVersionLabel, got[0].Version)
	require.Equal(t, []string{"a"}, got[0].Tags)
	require.Equal(t, 2024, got[0].CreatedAt.Year())

	q := fake.queries()[0]
	require.Contains(t, q, "user_id: {_eq: $v0}")
	require.Contains(t, q, "tags: {_any: {_eq: $v1}}")
	require.Contains(t, q, "platform: {_eq: $v2}")
	require.Contains(t, q, "_ilike")
	require.Contains(t, q, "order: {created_at: DESC}")
	require.Contains(t, q, "limit: 5")

	vars := fake.requests[0].Variables
	require.Equal(t, "alice", vars["v0"])
	require.Equal(t, "CLAUDE", vars["v2"])
	require.Equal(t, "%poem%", vars["v3"])
}

func TestDefraStore_GetPrompt(t *testing.T) {
	store, _ := newFakeDefra(t, func(req defra.GQLRequest) defra.GQLResponse {
		if req.Variables["v0"] == "bae-1" {
			return data("Prompt", promptDoc("bae-1", "alice"))
		}
		return data("Prompt")
	})
	ctx := context.Background()

	p, err := store.GetPrompt(ctx, "alice", "bae-1")
	require.NoError(t, err)
	require.Equal(t, "content of bae-1", p.Content)

	_, err = store.GetPrompt(ctx, "bob", "bae-1")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetPrompt(ctx, "alice", "bae-missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetSharedPrompt(ctx, `bad"id`)
	require.ErrorIs(t, err, ErrNotFound)

	shared, err := store.GetSharedPrompt(ctx, "bae-1")
	require.NoError(t, err)
	require.Equal(t, "alice", shared.UserID)
}

func TestDefraStore_GraphQLError(t *testing.T) {
	store, _ := newFakeDefra(t, func(req defra.GQLRequest) defra.GQLResponse {
		return defra.GQLResponse{Errors: []defra.GQLError{{Message: "boom"}}}
	})
	_, err := store.ListPrompts(context.Background(), "alice", ListFilter{})
	require.ErrorContains(t, err, "graphql error: boom")
}

func TestDefraStore_CreatePrompt(t *testing.T) {
	store, fake := newFakeDefra(t, func(req defra.GQLRequest) defra.GQLResponse {
		doc := promptDoc("bae-new", "alice")
		doc["platform"] = "GPT"
		doc["version"] = "1.0"
		return data("create_Prompt", doc)
	})

	_, err := store.CreatePrompt(context.Background(), "alice", Input{Title: ptr("x")})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Empty(t, fake.queries())

	p, err := store.CreatePrompt(context.Background(), "alice", Input{
		Title:   ptr("Haiku"),
		Content: ptr("write a haiku"),
		Tags:    &[]string{"Poetry", "poetry"},
	})
	require.NoError(t, err)
	require.Equal(t, "bae-new", p.ID)

	q := fake.queries()[0]
	require.True(t, strings.HasPrefix(q, "mutation { create_Prompt(input: {"), q)
	require.Contains(t, q, `platform: "GPT"`)
	require.Contains(t, q, `tags: ["Poetry"]`)
	require.Contains(t, q, `user_id: "alice"`)
	require.Contains(t, q, `version: "1.0"`)
	require.Contains(t, q, `created_at: "2024-03-01T12:00:00Z"`)
}

func TestDefraStore_UpdatePrompt(t *testing.T) {
	store, fake := newFakeDefra(t, func(req defra.GQLRequest) defra.GQLResponse {
		if strings.HasPrefix(req.Query, "mutation") {
			doc := promptDoc("bae-1", "alice")
			doc["title"] = "Renamed"
			return data("update_Prompt", doc)
		}
		return data("Prompt", promptDoc("bae-1", "alice"))
	})

	p, err := store.UpdatePrompt(context.Background(), "alice", "bae-1", Input{Title: ptr("Renamed")})
	require.NoError(t, err)
	require.Equal(t, "Renamed", p.Title)

	qs := fake.queries()
	require.Len(t, qs, 2)
	require.Contains(t, qs[1], `update_Prompt(docID: "bae-1", input: {title: "Renamed", updated_at: "2024-03-01T12:00:00Z"})`)

	_, err = store.UpdatePrompt(context.Background(), "bob", "bae-1", Input{Title: ptr("x")})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDefraStore_DeletePromptRemovesHistory(t *testing.T) {
	store, fake := newFakeDefra(t, func(req defra.GQLRequest) defra.GQLResponse {
		switch {
		case strings.Contains(req.Query, "delete_PromptVersion"):
			return data("delete_PromptVersion", map[string]any{"_docID": "v"})
		case strings.Contains(req.Query, "delete_Prompt"):
			return data("delete_Prompt", map[string]any{"_docID": "bae-1"})
		case strings.Contains(req.Query, "PromptVersion"):
			return data("PromptVersion",
				map[string]any{"_docID": "bae-v2", "prompt_id": "bae-1", "version": float64(2)},
				map[string]any{"_docID": "bae-v1", "prompt_id": "bae-1", "version": float64(1)})
		default:
			return data("Prompt", promptDoc("bae-1", "alice"))
		}
	})

	require.NoError(t, store.DeletePrompt(context.Background(), "alice", "bae-1"))

	var deletes []string
	for _, q := range fake.queries() {
		if strings.Contains(q, "delete_") {
			deletes = append(deletes, q)
		}
	}
	require.Equal(t, []string{
		`mutation { delete_PromptVersion(docID: "bae-v2") { _docID } }`,
		`mutation { delete_PromptVersion(docID: "bae-v1") { _docID } }`,
		`mutation { delete_Prompt(docID: "bae-1") { _docID } }`,
	}, deletes)
}

func TestDefraStore_Tags(t *testing.T) {
	store, fake := newFakeDefra(t, func(req defra.GQLRequest) defra.GQLResponse {
		if strings.HasPrefix(req.Query, "mutation") {
			return data("create_Tag", map[string]any{"_docID": "bae-t", "name": "new"})
		}
		return data("Tag",
			map[string]any{"_docID": "bae-a", "name": "art"},
			map[string]any{"_docID": "bae-w", "name": "Writing"})
	})
	ctx := context.Background()

	tags, err := store.ListTags(ctx)
	require.NoError(t, err)
	require.Equal(t, []Tag{{ID: "bae-a", Name: "art"}, {ID: "bae-w", Name: "Writing"}}, tags)

	existing, err := store.CreateTag(ctx, "writing")
	require.NoError(t, err)
	require.Equal(t, "bae-w", existing.ID)

	require.NoError(t, store.EnsureTags(ctx, []string{"ART", "new", "writing"}))

	var creates []string
	for _, q := range fake.queries() {
		if strings.HasPrefix(q, "mutation") {
			creates = append(creates, q)
		}
	}
	require.Equal(t, []string{`mutation { create_Tag(input: {name: "new"}) { _docID } }`}, creates)
}

func TestDefraStore_Versions(t *testing.T) {
	store, fake := newFakeDefra(t, func(req defra.GQLRequest) defra.GQLResponse {
		switch {
		case strings.HasPrefix(req.Query, "mutation"):
			return data("create_PromptVersion", map[string]any{"_docID": "bae-v3"})
		case req.Variables["v1"] == float64(2):
			return data("PromptVersion", map[string]any{"_docID": "bae-v2", "prompt_id": "bae-1", "content": "old", "version": float64(2)})
		case req.Variables["v1"] != nil:
			return data("PromptVersion")
		default:
			return data("PromptVersion", map[string]any{"_docID": "bae-v2", "version": float64(2)})
		}
	})
	ctx := context.Background()

	n, err := store.LatestVersionNumber(ctx, "bae-1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	v, err := store.GetVersion(ctx, "bae-1", 2)
	require.NoError(t, err)
	require.Equal(t, "old", v.Content)

	_, err = store.GetVersion(ctx, "bae-1", 7)
	require.ErrorIs(t, err, ErrNotFound)

	next, err := store.CreateVersion(ctx, "bae-1", "previous content")
	require.NoError(t, err)
	require.Equal(t, 3, next)

	qs := fake.queries()
	require.Contains(t, qs[len(qs)-1], `create_PromptVersion(input: {content: "previous content", created_at: "2024-03-01T12:00:00Z", prompt_id: "bae-1", version: 3})`)
}

func TestDefraStore_EnsureTagsConcurrentCreate(t *testing.T) {
	var mu sync.Mutex
	created := false
	store, _ := newFakeDefra(t, func(req defra.GQLRequest) defra.GQLResponse {
		mu.Lock()
		defer mu.Unlock()
		if strings.HasPrefix(req.Query, "mutation") {
			// Another writer created "Poetry" first.
			created = true
			return defra.GQLResponse{Errors: []defra.GQLError{{Message: "unique index violation"}}}
		}
		if created {
			return data("Tag", map[string]any{"_docID": "bae-p", "name": "Poetry"})
		}
		return data("Tag")
	})

	require.NoError(t, store.EnsureTags(context.Background(), []string{"poetry"}))
}

func TestDefraStore_EnsureTagsCreateError(t *testing.T) {
	store, _ := newFakeDefra(t, func(req defra.GQLRequest) defra.GQLResponse {
		if strings.HasPrefix(req.Query, "mutation") {
			return defra.GQLResponse{Errors: []defra.GQLError{{Message: "disk full"}}}
		}
		return data("Tag")
	})

	err := store.EnsureTags(context.Background(), []string{"poetry"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
}

func TestDefraStore_DeleteVersion(t *testing.T) {
	store, fake := newFakeDefra(t, func(req defra.GQLRequest) defra.GQLResponse {
		switch {
		case strings.HasPrefix(req.Query, "mutation"):
			return data("delete_PromptVersion", map[string]any{"_docID": "bae-v3"})
		case req.Variables["v1"] == float64(3):
			return data("PromptVersion", map[string]any{"_docID": "bae-v3", "prompt_id": "bae-1", "version": float64(3)})
		default:
			return data("PromptVersion")
		}
	})
	ctx := context.Background()

	require.NoError(t, store.DeleteVersion(ctx, "bae-1", 3))
	qs := fake.queries()
	require.Equal(t, `mutation { delete_PromptVersion(docID: "bae-v3") { _docID } }`, qs[len(qs)-1])

	require.ErrorIs(t, store.DeleteVersion(ctx, "bae-1", 4), ErrNotFound)
}
