package prompts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/promptshelf/internal/highlight"
)

func seedPrompt(t *testing.T, svc *Service, user, content string, tags ...string) *Prompt {
	t.Helper()
	p, err := svc.CreatePrompt(context.Background(), user, Input{
		Title:   ptr("Prompt"),
		Content: ptr(content),
		Tags:    &tags,
	})
	require.NoError(t, err)
	return p
}

func TestService_CreatePromptRegistersTags(t *testing.T) {
	svc := NewService(newTestMemoryStore(), nil)
	seedPrompt(t, svc, "alice", "text", "writing", "Writing", "code")

	tags, err := svc.Store().ListTags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 2)
}

func TestService_LoadPromptWithTags(t *testing.T) {
	svc := NewService(newTestMemoryStore(), nil)
	p := seedPrompt(t, svc, "alice", "text", "writing")

	got, err := svc.LoadPromptWithTags(context.Background(), "alice", p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, got.Prompt.ID)
	require.Equal(t, []Tag{{ID: got.Catalog[0].ID, Name: "writing"}}, got.Catalog)

	_, err = svc.LoadPromptWithTags(context.Background(), "bob", p.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_UpdatePromptFullSnapshotsPreviousContent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestMemoryStore(), nil)
	p := seedPrompt(t, svc, "alice", "first draft")

	_, err := svc.UpdatePromptFull(ctx, "alice", p.ID, Input{Content: ptr("second draft")})
	require.NoError(t, err)
	_, err = svc.UpdatePromptFull(ctx, "alice", p.ID, Input{Description: ptr("no content change")})
	require.NoError(t, err)
	_, err = svc.UpdatePromptFull(ctx, "alice", p.ID, Input{Content: ptr("second draft")})
	require.NoError(t, err)
	updated, err := svc.UpdatePromptFull(ctx, "alice", p.ID, Input{Content: ptr("final draft"), Tags: &[]string{"done"}})
	require.NoError(t, err)
	require.Equal(t, "final draft", updated.Content)
	require.Equal(t, []string{"done"}, updated.Tags)

	hist, err := svc.PromptWithVersions(ctx, "alice", p.ID)
	require.NoError(t, err)
	require.Equal(t, "final draft", hist.Current.Content)
	require.Len(t, hist.Versions, 2)
	require.Equal(t, 2, hist.Versions[0].Version)
	require.Equal(t, "second draft", hist.Versions[0].Content)
	require.Equal(t, 1, hist.Versions[1].Version)
	require.Equal(t, "first draft", hist.Versions[1].Content)

	tags, err := svc.Store().ListTags(ctx)
	require.NoError(t, err)
	require.Equal(t, "done", tags[0].Name)
}

func TestService_UpdatePromptFullRejectsBeforeSnapshot(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestMemoryStore(), nil)
	p := seedPrompt(t, svc, "alice", "draft")

	_, err := svc.UpdatePromptFull(ctx, "alice", p.ID, Input{Content: ptr("  ")})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdatePromptFull(ctx, "bob", p.ID, Input{Content: ptr("hijack")})
	require.ErrorIs(t, err, ErrNotFound)

	n, err := svc.Store().LatestVersionNumber(ctx, p.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestService_PromptWithVersionsEmptyHistory(t *testing.T) {
	svc := NewService(newTestMemoryStore(), nil)
	p := seedPrompt(t, svc, "alice", "draft")

	hist, err := svc.PromptWithVersions(context.Background(), "alice", p.ID)
	require.NoError(t, err)
	require.NotNil(t, hist.Versions)
	require.Empty(t, hist.Versions)
}

func TestService_CompareVersion(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestMemoryStore(), nil)
	p := seedPrompt(t, svc, "alice", "a b c")
	_, err := svc.UpdatePromptFull(ctx, "alice", p.ID, Input{Content: ptr("a x c")})
	require.NoError(t, err)

	cmp, err := svc.CompareVersion(ctx, "alice", p.ID, 1, "")
	require.NoError(t, err)
	require.Equal(t, highlight.ModePositional, cmp.Mode)
	require.Equal(t, "a b c", cmp.Result.OldText())
	require.Equal(t, "a x c", cmp.Result.NewText())
	require.Equal(t, highlight.Stats{Unchanged: 2, Removed: 1, Added: 1}, cmp.Stats)
	require.Equal(t, highlight.Compute("a b c", "a x c"), cmp.Result)

	aligned, err := svc.CompareVersion(ctx, "alice", p.ID, 1, highlight.ModeAligned)
	require.NoError(t, err)
	require.Equal(t, highlight.ModeAligned, aligned.Mode)

	_, err = svc.CompareVersion(ctx, "alice", p.ID, 0, "")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CompareVersion(ctx, "alice", p.ID, 5, "")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CompareVersion(ctx, "bob", p.ID, 1, "")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestService_OpenOnPlatform(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestMemoryStore(), nil)
	p, err := svc.CreatePrompt(ctx, "alice", Input{Title: ptr("t"), Content: ptr("hello"), Platform: ptr("KIMI")})
	require.NoError(t, err)

	launch, err := svc.OpenOnPlatform(ctx, "alice", p.ID, ClientAndroid)
	require.NoError(t, err)
	require.Equal(t, "KIMI", launch.Platform.Key)
	require.Equal(t, "cn.moonshot.kimi://", launch.URL)
	require.Equal(t, "hello", launch.Content)

	web, err := svc.OpenOnPlatform(ctx, "alice", p.ID, "")
	require.NoError(t, err)
	require.Equal(t, ClientWeb, web.Client)
	require.Equal(t, "https://kimi.moonshot.cn", web.URL)

	_, err = svc.OpenOnPlatform(ctx, "bob", p.ID, ClientWeb)
	require.ErrorIs(t, err, ErrNotFound)
}

// serialCheckStore records how many CreateVersion calls overlap.
type serialCheckStore struct {
	*MemoryStore
	inflight atomic.Int32
	peak     atomic.Int32
}

func (s *serialCheckStore) CreateVersion(ctx context.Context, promptID, content string) (int, error) {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return s.MemoryStore.CreateVersion(ctx, promptID, content)
}

func TestService_UpdatePromptFullSerializesVersions(t *testing.T) {
	ctx := context.Background()
	store := &serialCheckStore{MemoryStore: newTestMemoryStore()}
	svc := NewService(store, nil)
	p := seedPrompt(t, svc, "alice", "original")

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UpdatePromptFull(ctx, "alice", p.ID, Input{Content: ptr(fmt.Sprintf("draft %d", i))})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.EqualValues(t, 1, store.peak.Load())
	vs, err := store.ListVersions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, vs, writers)
	seen := map[int]bool{}
	for _, v := range vs {
		require.False(t, seen[v.Version], "duplicate version %d", v.Version)
		seen[v.Version] = true
	}
	require.Empty(t, svc.locks.locks)
}

// failingUpdateStore fails every UpdatePrompt call.
type failingUpdateStore struct {
	*MemoryStore
}

var errUpdateFailed = errors.New("update failed")

func (s *failingUpdateStore) UpdatePrompt(context.Context, string, string, Input) (*Prompt, error) {
	return nil, errUpdateFailed
}

func TestService_UpdatePromptFullRemovesSnapshotOnFailure(t *testing.T) {
	ctx := context.Background()
	mem := newTestMemoryStore()
	p := seedPrompt(t, NewService(mem, nil), "alice", "first draft")

	svc := NewService(&failingUpdateStore{MemoryStore: mem}, nil)
	_, err := svc.UpdatePromptFull(ctx, "alice", p.ID, Input{Content: ptr("second draft")})
	require.ErrorIs(t, err, errUpdateFailed)

	vs, err := mem.ListVersions(ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, vs)

	current, err := mem.GetPrompt(ctx, "alice", p.ID)
	require.NoError(t, err)
	require.Equal(t, "first draft", current.Content)
}
