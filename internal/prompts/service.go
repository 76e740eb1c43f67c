package prompts

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/promptshelf/internal/highlight"
)

// Service composes Store calls into the operations the API exposes.
type Service struct {
	store  Store
	logger *slog.Logger
	locks  promptLocks
}

// NewService creates a service over store.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Store returns the underlying store.
func (s *Service) Store() Store { return s.store }

// PromptWithTags is a prompt together with the tag catalog.
type PromptWithTags struct {
	Prompt  *Prompt `json:"prompt"`
	Catalog []Tag   `json:"catalog"`
}

// LoadPromptWithTags fetches a prompt and the tag catalog concurrently.
func (s *Service) LoadPromptWithTags(ctx context.Context, userID, id string) (*PromptWithTags, error) {
	var out PromptWithTags
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.GetPrompt(gctx, userID, id)
		out.Prompt = p
		return err
	})
	g.Go(func() error {
		tags, err := s.store.ListTags(gctx)
		out.Catalog = tags
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePrompt stores a new prompt and registers its tags in the catalog.
func (s *Service) CreatePrompt(ctx context.Context, userID string, in Input) (*Prompt, error) {
	p, err := s.store.CreatePrompt(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.EnsureTags(ctx, p.Tags); err != nil {
		return nil, fmt.Errorf("ensure tags: %w", err)
	}
	return p, nil
}

// UpdatePromptFull updates a prompt, snapshotting its previous content as a
// new version when the content changes, and registers any new tags.
func (s *Service) UpdatePromptFull(ctx context.Context, userID, id string, in Input) (*Prompt, error) {
	if err := validateUpdate(in); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.store.GetPrompt(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	snapshot := 0
	if in.Content != nil && *in.Content != current.Content {
		snapshot, err = s.store.CreateVersion(ctx, id, current.Content)
		if err != nil {
			return nil, fmt.Errorf("snapshot version: %w", err)
		}
	}

	updated, err := s.store.UpdatePrompt(ctx, userID, id, in)
	if err != nil {
		if snapshot > 0 {
			if derr := s.store.DeleteVersion(ctx, id, snapshot); derr != nil {
				s.logger.Warn("failed to remove orphan version",
					"prompt_id", id, "version", snapshot, "error", derr)
			}
		}
		return nil, err
	}
	if snapshot > 0 {
		s.logger.Info("prompt version recorded", "prompt_id", id, "version", snapshot)
	}
	if tags := in.TagNames(); len(tags) > 0 {
		if err := s.store.EnsureTags(ctx, tags); err != nil {
			return nil, fmt.Errorf("ensure tags: %w", err)
		}
	}
	return updated, nil
}

// PromptHistory is a prompt's current state and its versions, newest first.
type PromptHistory struct {
	Current  *Prompt   `json:"current"`
	Versions []Version `json:"versions"`
}

// PromptWithVersions fetches a prompt and its history concurrently.
func (s *Service) PromptWithVersions(ctx context.Context, userID, id string) (*PromptHistory, error) {
	var out PromptHistory
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.GetPrompt(gctx, userID, id)
		out.Current = p
		return err
	})
	g.Go(func() error {
		vs, err := s.store.ListVersions(gctx, id)
		out.Versions = vs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if out.Versions == nil {
		out.Versions = []Version{}
	}
	return &out, nil
}

// Comparison is a highlighted comparison of a historical version (old)
// against the current content (new).
type Comparison struct {
	PromptID string           `json:"prompt_id"`
	Version  int              `json:"version"`
	Mode     highlight.Mode   `json:"mode"`
	Result   highlight.Result `json:"result"`
	Stats    highlight.Stats  `json:"stats"`
}

// CompareVersion highlights what changed between version number and now.
func (s *Service) CompareVersion(ctx context.Context, userID, id string, number int, mode highlight.Mode) (*Comparison, error) {
	if number < 1 {
		return nil, fmt.Errorf("%w: version must be at least 1", ErrInvalidInput)
	}
	if mode == "" {
		mode = highlight.ModePositional
	}

	var (
		current *Prompt
		version *Version
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.GetPrompt(gctx, userID, id)
		current = p
		return err
	})
	g.Go(func() error {
		v, err := s.store.GetVersion(gctx, id, number)
		version = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := highlight.ComputeMode(mode, version.Content, current.Content)
	return &Comparison{
		PromptID: id,
		Version:  number,
		Mode:     mode,
		Result:   res,
		Stats:    res.Stats(),
	}, nil
}

// Launch describes how to open a prompt on its platform.
type Launch struct {
	PromptID string     `json:"prompt_id"`
	Platform Platform   `json:"platform"`
	Client   ClientKind `json:"client"`
	URL      string     `json:"url"`
	Content  string     `json:"content"`
}

// OpenOnPlatform resolves the launch URL for a prompt's platform.
// Unknown platforms fall back to DefaultPlatform.
func (s *Service) OpenOnPlatform(ctx context.Context, userID, id string, client ClientKind) (*Launch, error) {
	p, err := s.store.GetPrompt(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	platform, ok := LookupPlatform(p.Platform)
	if !ok {
		platform, _ = LookupPlatform(DefaultPlatform)
	}
	if client == "" {
		client = ClientWeb
	}
	return &Launch{
		PromptID: id,
		Platform: platform,
		Client:   client,
		URL:      platform.URL(client),
		Content:  p.Content,
	}, nil
}
