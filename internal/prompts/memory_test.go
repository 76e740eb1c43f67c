package prompts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var n time.Duration
	s.now = func() time.Time {
		n++
		return base.Add(n * time.Second)
	}
	return s
}

func TestMemoryStore_PromptLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore()

	p, err := s.CreatePrompt(ctx, "alice", Input{Title: ptr("Haiku"), Content: ptr("write a haiku")})
	require.NoError(t, err)
	require.Equal(t, "alice", p.UserID)
	require.Equal(t, DefaultPlatform, p.Platform)
	require.Equal(t, DefaultVersionLabel, p.Version)
	require.NotNil(t, p.Tags)

	got, err := s.GetPrompt(ctx, "alice", p.ID)
	require.NoError(t, err)
	require.Equal(t, p, got)

	_, err = s.GetPrompt(ctx, "bob", p.ID)
	require.ErrorIs(t, err, ErrNotFound)

	shared, err := s.GetSharedPrompt(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, shared.ID)

	updated, err := s.UpdatePrompt(ctx, "alice", p.ID, Input{Description: ptr("short poem")})
	require.NoError(t, err)
	require.Equal(t, "short poem", updated.Description)
	require.Equal(t, "write a haiku", updated.Content)
	require.True(t, updated.UpdatedAt.After(p.UpdatedAt))

	_, err = s.UpdatePrompt(ctx, "bob", p.ID, Input{Description: ptr("x")})
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.DeletePrompt(ctx, "bob", p.ID), ErrNotFound)
	require.NoError(t, s.DeletePrompt(ctx, "alice", p.ID))
	_, err = s.GetSharedPrompt(ctx, p.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListPrompts(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore()

	mk := func(user, title, content, platform string, tags ...string) {
		_, err := s.CreatePrompt(ctx, user, Input{Title: ptr(title), Content: ptr(content), Platform: ptr(platform), Tags: &tags})
		require.NoError(t, err)
	}
	mk("alice", "Summarize", "summarize this article", "GPT", "work")
	mk("alice", "Poem", "write a poem about the sea", "CLAUDE", "fun", "Writing")
	mk("alice", "Email", "draft a polite email", "CLAUDE", "work", "writing")
	mk("bob", "Other", "not alice's", "GPT", "work")

	titles := func(ps []Prompt) []string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.Title
		}
		return out
	}

	all, err := s.ListPrompts(ctx, "alice", ListFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{"Email", "Poem", "Summarize"}, titles(all))

	byTag, err := s.ListPrompts(ctx, "alice", ListFilter{Tag: "writing"})
	require.NoError(t, err)
	require.Equal(t, []string{"Email", "Poem"}, titles(byTag))

	byPlatform, err := s.ListPrompts(ctx, "alice", ListFilter{Platform: "gpt"})
	require.NoError(t, err)
	require.Equal(t, []string{"Summarize"}, titles(byPlatform))

	bySearch, err := s.ListPrompts(ctx, "alice", ListFilter{Search: "POEM"})
	require.NoError(t, err)
	require.Equal(t, []string{"Poem"}, titles(bySearch))

	page, err := s.ListPrompts(ctx, "alice", ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"Poem"}, titles(page))

	past, err := s.ListPrompts(ctx, "alice", ListFilter{Offset: 10})
	require.NoError(t, err)
	require.Empty(t, past)
}

func TestMemoryStore_Tags(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore()

	_, err := s.CreateTag(ctx, "  ")
	require.ErrorIs(t, err, ErrInvalidInput)

	first, err := s.CreateTag(ctx, "Writing")
	require.NoError(t, err)
	again, err := s.CreateTag(ctx, "writing")
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	require.NoError(t, s.EnsureTags(ctx, []string{"code", "WRITING", "art", ""}))
	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	names := make([]string, len(tags))
	for i, tg := range tags {
		names[i] = tg.Name
	}
	require.Equal(t, []string{"Writing", "art", "code"}, names)
}

func TestMemoryStore_Versions(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore()

	n, err := s.LatestVersionNumber(ctx, "p1")
	require.NoError(t, err)
	require.Zero(t, n)

	for i, content := range []string{"v1 text", "v2 text", "v3 text"} {
		n, err := s.CreateVersion(ctx, "p1", content)
		require.NoError(t, err)
		require.Equal(t, i+1, n)
	}

	vs, err := s.ListVersions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, vs, 3)
	require.Equal(t, 3, vs[0].Version)
	require.Equal(t, 1, vs[2].Version)

	v, err := s.GetVersion(ctx, "p1", 2)
	require.NoError(t, err)
	require.Equal(t, "v2 text", v.Content)

	_, err = s.GetVersion(ctx, "p1", 9)
	require.ErrorIs(t, err, ErrNotFound)

	other, err := s.ListVersions(ctx, "p2")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestMemoryStore_DeleteVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore()
	for _, content := range []string{"v1 text", "v2 text"} {
		_, err := s.CreateVersion(ctx, "p1", content)
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteVersion(ctx, "p1", 2))
	require.ErrorIs(t, s.DeleteVersion(ctx, "p1", 2), ErrNotFound)

	n, err := s.LatestVersionNumber(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
