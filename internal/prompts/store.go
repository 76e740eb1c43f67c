package prompts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/jackzampolin/promptshelf/internal/defra"
)

// Store is the data access boundary for prompts, tags and versions.
type Store interface {
	ListPrompts(ctx context.Context, userID string, filter ListFilter) ([]Prompt, error)
	GetPrompt(ctx context.Context, userID, id string) (*Prompt, error)
	GetSharedPrompt(ctx context.Context, id string) (*Prompt, error)
	CreatePrompt(ctx context.Context, userID string, in Input) (*Prompt, error)
	UpdatePrompt(ctx context.Context, userID, id string, in Input) (*Prompt, error)
	DeletePrompt(ctx context.Context, userID, id string) error

	ListTags(ctx context.Context) ([]Tag, error)
	CreateTag(ctx context.Context, name string) (*Tag, error)
	EnsureTags(ctx context.Context, names []string) error

	ListVersions(ctx context.Context, promptID string) ([]Version, error)
	GetVersion(ctx context.Context, promptID string, number int) (*Version, error)
	LatestVersionNumber(ctx context.Context, promptID string) (int, error)
	CreateVersion(ctx context.Context, promptID, content string) (int, error)
	DeleteVersion(ctx context.Context, promptID string, number int) error
}

const (
	promptCollection  = "Prompt"
	tagCollection     = "Tag"
	versionCollection = "PromptVersion"
)

var (
	promptFields  = []string{"_docID", "user_id", "title", "content", "description", "platform", "tags", "version", "cover_img", "created_at", "updated_at"}
	tagFields     = []string{"_docID", "name"}
	versionFields = []string{"_docID", "prompt_id", "content", "version", "created_at"}
)

// DefraStore implements Store on DefraDB.
type DefraStore struct {
	client *defra.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewDefraStore creates a DefraDB-backed store.
func NewDefraStore(client *defra.Client, logger *slog.Logger) *DefraStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefraStore{client: client, logger: logger, now: time.Now}
}

// ListPrompts returns the user's prompts, newest first.
func (s *DefraStore) ListPrompts(ctx context.Context, userID string, filter ListFilter) ([]Prompt, error) {
	q := defra.NewQuery(promptCollection).
		Filter("user_id", userID).
		Fields(promptFields...).
		OrderBy("created_at", defra.DESC)
	if filter.Tag != "" {
		q.FilterAny("tags", strings.TrimSpace(filter.Tag))
	}
	if filter.Platform != "" {
		q.Filter("platform", strings.ToUpper(strings.TrimSpace(filter.Platform)))
	}
	if filter.Search != "" {
		q.Search(strings.TrimSpace(filter.Search), "title", "content")
	}
	if filter.Limit > 0 {
		q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q.Offset(filter.Offset)
	}

	docs, err := q.Docs(ctx, s.client)
	if err != nil {
		return nil, err
	}
	out := make([]Prompt, 0, len(docs))
	for _, d := range docs {
		out = append(out, *promptFromDoc(d))
	}
	return out, nil
}

// GetPrompt returns one of the user's prompts.
func (s *DefraStore) GetPrompt(ctx context.Context, userID, id string) (*Prompt, error) {
	p, err := s.GetSharedPrompt(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// GetSharedPrompt returns a prompt regardless of owner.
func (s *DefraStore) GetSharedPrompt(ctx context.Context, id string) (*Prompt, error) {
	if defra.ValidateID(id) != nil {
		return nil, fmt.Errorf("prompt %q: %w", id, ErrNotFound)
	}
	docs, err := defra.NewQuery(promptCollection).
		Filter("_docID", id).
		Fields(promptFields...).
		Docs(ctx, s.client)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	return promptFromDoc(docs[0]), nil
}

// CreatePrompt stores a new prompt owned by userID.
func (s *DefraStore) CreatePrompt(ctx context.Context, userID string, in Input) (*Prompt, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	fields, err := in.fields()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	fields["user_id"] = userID
	fields["created_at"] = now
	fields["updated_at"] = now
	if _, ok := fields["platform"]; !ok {
		fields["platform"] = DefaultPlatform
	}
	if _, ok := fields["version"]; !ok {
		fields["version"] = DefaultVersionLabel
	}
	if _, ok := fields["tags"]; !ok {
		fields["tags"] = []string{}
	}

	res, err := s.client.Create(ctx, promptCollection, fields, promptFields...)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("prompt created", "id", res.DocID, "user_id", userID)
	return promptFromWrite(res), nil
}

// UpdatePrompt applies the set fields of in to one of the user's prompts.
func (s *DefraStore) UpdatePrompt(ctx context.Context, userID, id string, in Input) (*Prompt, error) {
	if err := validateUpdate(in); err != nil {
		return nil, err
	}
	if _, err := s.GetPrompt(ctx, userID, id); err != nil {
		return nil, err
	}
	fields, err := in.fields()
	if err != nil {
		return nil, err
	}
	fields["updated_at"] = s.now().UTC()

	res, err := s.client.Update(ctx, promptCollection, id, fields, promptFields...)
	if err != nil {
		return nil, err
	}
	if len(res.Fields) == 0 {
		return s.GetPrompt(ctx, userID, id)
	}
	return promptFromWrite(res), nil
}

// DeletePrompt removes one of the user's prompts and its version history.
func (s *DefraStore) DeletePrompt(ctx context.Context, userID, id string) error {
	if _, err := s.GetPrompt(ctx, userID, id); err != nil {
		return err
	}
	versions, err := s.ListVersions(ctx, id)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if err := s.client.Delete(ctx, versionCollection, v.ID); err != nil {
			return fmt.Errorf("delete version %d: %w", v.Version, err)
		}
	}
	return s.client.Delete(ctx, promptCollection, id)
}

// ListTags returns the tag catalog ordered by name.
func (s *DefraStore) ListTags(ctx context.Context) ([]Tag, error) {
	docs, err := defra.NewQuery(tagCollection).
		Fields(tagFields...).
		OrderBy("name", defra.ASC).
		Docs(ctx, s.client)
	if err != nil {
		return nil, err
	}
	return lo.Map(docs, func(d map[string]any, _ int) Tag {
		return Tag{ID: defra.String(d, "_docID"), Name: defra.String(d, "name")}
	}), nil
}

// CreateTag adds a tag to the catalog. An existing tag with the same
// case-folded name is returned instead of a duplicate.
func (s *DefraStore) CreateTag(ctx context.Context, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tag name is required", ErrInvalidInput)
	}
	existing, err := s.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	if t, ok := findTag(existing, name); ok {
		return &t, nil
	}

	res, err := s.client.Create(ctx, tagCollection, map[string]any{"name": name}, "name")
	if err != nil {
		return nil, err
	}
	return &Tag{ID: res.DocID, Name: name}, nil
}

// EnsureTags creates catalog entries for any names not already present.
func (s *DefraStore) EnsureTags(ctx context.Context, names []string) error {
	names = NormalizeTags(names)
	if len(names) == 0 {
		return nil
	}
	existing, err := s.ListTags(ctx)
	if err != nil {
		return err
	}
	for _, name := range missingTags(existing, names) {
		if _, err := s.client.Create(ctx, tagCollection, map[string]any{"name": name}); err != nil {
			// A concurrent writer may have created it under another case.
			current, lerr := s.ListTags(ctx)
			if lerr == nil {
				if _, ok := findTag(current, name); ok {
					continue
				}
			}
			return fmt.Errorf("create tag %q: %w", name, err)
		}
		s.logger.Debug("tag created", "name", name)
	}
	return nil
}

// ListVersions returns a prompt's history, newest first.
func (s *DefraStore) ListVersions(ctx context.Context, promptID string) ([]Version, error) {
	docs, err := defra.NewQuery(versionCollection).
		Filter("prompt_id", promptID).
		Fields(versionFields...).
		OrderBy("version", defra.DESC).
		Docs(ctx, s.client)
	if err != nil {
		return nil, err
	}
	return lo.Map(docs, func(d map[string]any, _ int) Version {
		return versionFromDoc(d)
	}), nil
}

// GetVersion returns a single history entry by number.
func (s *DefraStore) GetVersion(ctx context.Context, promptID string, number int) (*Version, error) {
	docs, err := defra.NewQuery(versionCollection).
		Filter("prompt_id", promptID).
		Filter("version", number).
		Fields(versionFields...).
		Limit(1).
		Docs(ctx, s.client)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("version %d of prompt %s: %w", number, promptID, ErrNotFound)
	}
	v := versionFromDoc(docs[0])
	return &v, nil
}

// LatestVersionNumber returns the highest version number, or 0 if none.
func (s *DefraStore) LatestVersionNumber(ctx context.Context, promptID string) (int, error) {
	docs, err := defra.NewQuery(versionCollection).
		Filter("prompt_id", promptID).
		Fields("version").
		OrderBy("version", defra.DESC).
		Limit(1).
		Docs(ctx, s.client)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	return defra.Int(docs[0], "version"), nil
}

// CreateVersion records content as the next version and returns its number.
func (s *DefraStore) CreateVersion(ctx context.Context, promptID, content string) (int, error) {
	latest, err := s.LatestVersionNumber(ctx, promptID)
	if err != nil {
		return 0, err
	}
	next := latest + 1
	_, err = s.client.Create(ctx, versionCollection, map[string]any{
		"prompt_id":  promptID,
		"content":    content,
		"version":    next,
		"created_at": s.now().UTC(),
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// DeleteVersion removes a single history entry by number.
func (s *DefraStore) DeleteVersion(ctx context.Context, promptID string, number int) error {
	v, err := s.GetVersion(ctx, promptID, number)
	if err != nil {
		return err
	}
	return s.client.Delete(ctx, versionCollection, v.ID)
}

func promptFromDoc(d map[string]any) *Prompt {
	return normalizePrompt(&Prompt{
		ID:          defra.String(d, "_docID"),
		UserID:      defra.String(d, "user_id"),
		Title:       defra.String(d, "title"),
		Content:     defra.String(d, "content"),
		Description: defra.String(d, "description"),
		Platform:    defra.String(d, "platform"),
		Tags:        defra.Strings(d, "tags"),
		Version:     defra.String(d, "version"),
		CoverImage:  defra.String(d, "cover_img"),
		CreatedAt:   defra.Time(d, "created_at"),
		UpdatedAt:   defra.Time(d, "updated_at"),
	})
}

func promptFromWrite(res defra.WriteResult) *Prompt {
	doc := lo.Assign(res.Fields, map[string]any{"_docID": res.DocID})
	return promptFromDoc(doc)
}

func versionFromDoc(d map[string]any) Version {
	return Version{
		ID:        defra.String(d, "_docID"),
		PromptID:  defra.String(d, "prompt_id"),
		Content:   defra.String(d, "content"),
		Version:   defra.Int(d, "version"),
		CreatedAt: defra.Time(d, "created_at"),
	}
}

func findTag(tags []Tag, name string) (Tag, bool) {
	folded := foldTag(name)
	return lo.Find(tags, func(t Tag) bool { return foldTag(t.Name) == folded })
}

func missingTags(existing []Tag, names []string) []string {
	have := lo.SliceToMap(existing, func(t Tag) (string, struct{}) {
		return foldTag(t.Name), struct{}{}
	})
	return lo.Filter(names, func(n string, _ int) bool {
		_, ok := have[foldTag(n)]
		return !ok
	})
}
