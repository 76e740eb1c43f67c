package prompts

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
)

var tagFolder = cases.Fold()

// normalizePrompt fills the defaults for fields a stored record may lack.
func normalizePrompt(p *Prompt) *Prompt {
	if p == nil {
		return nil
	}
	if p.Platform == "" {
		p.Platform = DefaultPlatform
	}
	if p.Version == "" {
		p.Version = DefaultVersionLabel
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p
}

// NormalizeTags trims tag names, drops empty ones, and removes duplicates
// that differ only in case. The first spelling wins.
func NormalizeTags(tags []string) []string {
	trimmed := lo.Compact(lo.Map(tags, func(t string, _ int) string {
		return strings.TrimSpace(t)
	}))
	return lo.UniqBy(trimmed, foldTag)
}

func foldTag(t string) string {
	return tagFolder.String(t)
}

// normalizePlatform canonicalizes a platform key from input.
func normalizePlatform(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return DefaultPlatform, nil
	}
	p, ok := LookupPlatform(key)
	if !ok {
		return "", fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, key)
	}
	return p.Key, nil
}

func validateCreate(in Input) error {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.Content == nil || strings.TrimSpace(*in.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	return validateUpdate(in)
}

func validateUpdate(in Input) error {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
	}
	if in.Content != nil && strings.TrimSpace(*in.Content) == "" {
		return fmt.Errorf("%w: content cannot be empty", ErrInvalidInput)
	}
	if in.Platform != nil {
		if _, err := normalizePlatform(*in.Platform); err != nil {
			return err
		}
	}
	return nil
}

// fields converts an input into stored field values. Only set fields appear.
func (in Input) fields() (map[string]any, error) {
	out := make(map[string]any)
	if in.Title != nil {
		out["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		out["content"] = *in.Content
	}
	if in.Description != nil {
		out["description"] = *in.Description
	}
	if in.Platform != nil {
		p, err := normalizePlatform(*in.Platform)
		if err != nil {
			return nil, err
		}
		out["platform"] = p
	}
	if in.Tags != nil {
		out["tags"] = NormalizeTags(*in.Tags)
	}
	if in.Version != nil {
		v := strings.TrimSpace(*in.Version)
		if v == "" {
			v = DefaultVersionLabel
		}
		out["version"] = v
	}
	if in.CoverImage != nil {
		out["cover_img"] = *in.CoverImage
	}
	return out, nil
}

// TagNames returns the tag names an input sets, if any.
func (in Input) TagNames() []string {
	if in.Tags == nil {
		return nil
	}
	return NormalizeTags(*in.Tags)
}
