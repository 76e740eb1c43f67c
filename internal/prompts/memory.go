package prompts

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MemoryStore is an in-process Store. It backs `serve --memory` and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	prompts  map[string]*Prompt
	order    map[string]int64
	tags     []Tag
	versions map[string][]Version
	seq      int64
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prompts:  make(map[string]*Prompt),
		order:    make(map[string]int64),
		versions: make(map[string][]Version),
		now:      time.Now,
	}
}

func newID() string { return "mem-" + uuid.NewString() }

func clonePrompt(p *Prompt) *Prompt {
	c := *p
	c.Tags = slices.Clone(p.Tags)
	return normalizePrompt(&c)
}

func (m *MemoryStore) ListPrompts(_ context.Context, userID string, filter ListFilter) ([]Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tag := foldTag(strings.TrimSpace(filter.Tag))
	platform := strings.ToUpper(strings.TrimSpace(filter.Platform))
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	matched := lo.Filter(lo.Values(m.prompts), func(p *Prompt, _ int) bool {
		if p.UserID != userID {
			return false
		}
		if tag != "" && !lo.ContainsBy(p.Tags, func(t string) bool { return foldTag(t) == tag }) {
			return false
		}
		if platform != "" && p.Platform != platform {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Content), search) {
			return false
		}
		return true
	})
	slices.SortFunc(matched, func(a, b *Prompt) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(m.order[b.ID] - m.order[a.ID])
	})

	if filter.Offset > 0 {
		matched = matched[min(filter.Offset, len(matched)):]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return lo.Map(matched, func(p *Prompt, _ int) Prompt { return *clonePrompt(p) }), nil
}

func (m *MemoryStore) GetPrompt(ctx context.Context, userID, id string) (*Prompt, error) {
	p, err := m.GetSharedPrompt(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (m *MemoryStore) GetSharedPrompt(_ context.Context, id string) (*Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prompts[id]
	if !ok {
		return nil, fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	return clonePrompt(p), nil
}

func (m *MemoryStore) CreatePrompt(_ context.Context, userID string, in Input) (*Prompt, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	now := m.now().UTC()
	p := &Prompt{ID: newID(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := apply(p, in); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.prompts[p.ID] = p
	m.order[p.ID] = m.seq
	return clonePrompt(p), nil
}

func (m *MemoryStore) UpdatePrompt(_ context.Context, userID, id string, in Input) (*Prompt, error) {
	if err := validateUpdate(in); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prompts[id]
	if !ok || p.UserID != userID {
		return nil, fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	updated := clonePrompt(p)
	if err := apply(updated, in); err != nil {
		return nil, err
	}
	updated.UpdatedAt = m.now().UTC()
	m.prompts[id] = updated
	return clonePrompt(updated), nil
}

func (m *MemoryStore) DeletePrompt(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prompts[id]
	if !ok || p.UserID != userID {
		return fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	delete(m.prompts, id)
	delete(m.order, id)
	delete(m.versions, id)
	return nil
}

func (m *MemoryStore) ListTags(_ context.Context) ([]Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tags := slices.Clone(m.tags)
	slices.SortFunc(tags, func(a, b Tag) int { return strings.Compare(a.Name, b.Name) })
	return tags, nil
}

func (m *MemoryStore) CreateTag(_ context.Context, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tag name is required", ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := findTag(m.tags, name); ok {
		return &t, nil
	}
	t := Tag{ID: newID(), Name: name}
	m.tags = append(m.tags, t)
	return &t, nil
}

func (m *MemoryStore) EnsureTags(_ context.Context, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range missingTags(m.tags, NormalizeTags(names)) {
		m.tags = append(m.tags, Tag{ID: newID(), Name: name})
	}
	return nil
}

func (m *MemoryStore) ListVersions(_ context.Context, promptID string) ([]Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.versions[promptID])
	slices.Reverse(out)
	return out, nil
}

func (m *MemoryStore) GetVersion(_ context.Context, promptID string, number int) (*Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := lo.Find(m.versions[promptID], func(v Version) bool { return v.Version == number })
	if !ok {
		return nil, fmt.Errorf("version %d of prompt %s: %w", number, promptID, ErrNotFound)
	}
	return &v, nil
}

func (m *MemoryStore) LatestVersionNumber(_ context.Context, promptID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest(promptID), nil
}

func (m *MemoryStore) CreateVersion(_ context.Context, promptID, content string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.latest(promptID) + 1
	m.versions[promptID] = append(m.versions[promptID], Version{
		ID:        newID(),
		PromptID:  promptID,
		Content:   content,
		Version:   next,
		CreatedAt: m.now().UTC(),
	})
	return next, nil
}

func (m *MemoryStore) DeleteVersion(_ context.Context, promptID string, number int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs := m.versions[promptID]
	i := slices.IndexFunc(vs, func(v Version) bool { return v.Version == number })
	if i < 0 {
		return fmt.Errorf("version %d of prompt %s: %w", number, promptID, ErrNotFound)
	}
	m.versions[promptID] = slices.Delete(vs, i, i+1)
	return nil
}

func (m *MemoryStore) latest(promptID string) int {
	vs := m.versions[promptID]
	if len(vs) == 0 {
		return 0
	}
	return vs[len(vs)-1].Version
}

// apply writes the set fields of in onto p.
func apply(p *Prompt, in Input) error {
	fields, err := in.fields()
	if err != nil {
		return err
	}
	for k, v := range fields {
		switch k {
		case "title":
			p.Title = v.(string)
		case "content":
			p.Content = v.(string)
		case "description":
			p.Description = v.(string)
		case "platform":
			p.Platform = v.(string)
		case "tags":
			p.Tags = v.([]string)
		case "version":
			p.Version = v.(string)
		case "cover_img":
			p.CoverImage = v.(string)
		}
	}
	normalizePrompt(p)
	return nil
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*DefraStore)(nil)
