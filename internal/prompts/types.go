// Package prompts stores prompt records, their tag catalog and their version
// history, and composes them into the operations the API exposes.
//
// Records are owned by a user. Every Store method that reads or writes a
// prompt takes the caller's user id explicitly; a prompt owned by someone
// else is indistinguishable from a missing one. GetSharedPrompt is the only
// unscoped read and backs public share links.
//
// Version history holds previous contents only. UpdatePromptFull snapshots
// the content being replaced, so version N is the text the prompt had before
// its Nth content change.
package prompts

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record is absent or owned by another user.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when a request fails validation.
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultVersionLabel is used when a prompt has no version label.
const DefaultVersionLabel = "1.0"

// Prompt is a user's saved prompt.
type Prompt struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Description string    `json:"description"`
	Platform    string    `json:"platform"`
	Tags        []string  `json:"tags"`
	Version     string    `json:"version"` // user-editable label, not the history number
	CoverImage  string    `json:"cover_img,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Tag is an entry in the shared tag catalog.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Version is a historical snapshot of a prompt's content.
type Version struct {
	ID        string    `json:"id"`
	PromptID  string    `json:"prompt_id"`
	Content   string    `json:"content"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// Input carries the fields of a create or update. Nil fields are left
// unchanged on update; Title and Content are required on create.
type Input struct {
	Title       *string   `json:"title,omitempty"`
	Content     *string   `json:"content,omitempty"`
	Description *string   `json:"description,omitempty"`
	Platform    *string   `json:"platform,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Version     *string   `json:"version,omitempty"`
	CoverImage  *string   `json:"cover_img,omitempty"`
}

// ListFilter narrows ListPrompts. Zero values match everything.
type ListFilter struct {
	Tag      string `json:"tag,omitempty"`
	Platform string `json:"platform,omitempty"`
	Search   string `json:"q,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
