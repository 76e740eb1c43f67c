package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"unicode"

	"github.com/samber/lo"

	"github.com/jackzampolin/promptshelf/internal/defra"
)

// ErrAlreadyExists is returned when trying to create a document that already exists.
var ErrAlreadyExists = errors.New("document already exists")

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// Store provides access to runtime settings stored in DefraDB.
// No caching - reads fresh from DefraDB each time.
type Store interface {
	// Get returns a single config entry by key, or nil when absent.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set creates or updates a config entry.
	Set(ctx context.Context, key string, value any, description string) error

	// GetAll returns all config entries.
	GetAll(ctx context.Context) (map[string]Entry, error)

	// GetByPrefix returns config entries matching the prefix.
	GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error)

	// Delete removes a config entry.
	Delete(ctx context.Context, key string) error
}

// Entry represents a single configuration entry.
type Entry struct {
	Key         string `json:"key"`
	Value       any    `json:"value"`
	Description string `json:"description"`
	DocID       string `json:"_docID,omitempty"`
}

var entryFields = []string{"_docID", "name", "value", "description"}

// DefraStore implements Store using DefraDB.
type DefraStore struct {
	client *defra.Client
	logger *slog.Logger
}

// NewStore creates a new DefraDB-backed config store.
func NewStore(client *defra.Client) *DefraStore {
	return &DefraStore{client: client, logger: slog.Default()}
}

// Get returns a single config entry by key.
func (s *DefraStore) Get(ctx context.Context, key string) (*Entry, error) {
	docs, err := defra.NewQuery("Config").
		Filter("name", key).
		Fields(entryFields...).
		Docs(ctx, s.client)
	if err != nil {
		return nil, err
	}

	entries := s.parseEntries(docs)
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// Set creates or updates a config entry.
func (s *DefraStore) Set(ctx context.Context, key string, value any, description string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	existing, err := s.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	input := map[string]any{
		"name":        key,
		"value":       string(valueJSON),
		"description": description,
	}

	if existing != nil {
		if _, err := s.client.Update(ctx, "Config", existing.DocID, input); err != nil {
			return fmt.Errorf("update failed: %w", err)
		}
		return nil
	}

	if _, err := s.client.Create(ctx, "Config", input); err != nil {
		// Lost a race with another writer seeding the same key.
		if strings.Contains(err.Error(), "already exists") {
			s.logger.Debug("config entry already seeded", "key", key)
			return nil
		}
		return fmt.Errorf("create failed: %w", err)
	}
	return nil
}

// GetAll returns all config entries.
func (s *DefraStore) GetAll(ctx context.Context) (map[string]Entry, error) {
	docs, err := defra.NewQuery("Config").
		Fields(entryFields...).
		Docs(ctx, s.client)
	if err != nil {
		return nil, err
	}
	return lo.KeyBy(s.parseEntries(docs), func(e Entry) string { return e.Key }), nil
}

// GetByPrefix returns config entries matching the prefix.
func (s *DefraStore) GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterPrefix(all, prefix), nil
}

// Delete removes a config entry by key.
func (s *DefraStore) Delete(ctx context.Context, key string) error {
	existing, err := s.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to find entry: %w", err)
	}
	if existing == nil {
		return nil
	}

	if err := s.client.Delete(ctx, "Config", existing.DocID); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

// parseEntries converts Config documents into entries. Values are stored as
// JSON strings; anything that does not decode is kept as the raw string.
func (s *DefraStore) parseEntries(docs []map[string]any) []Entry {
	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		entry := Entry{
			DocID:       defra.String(doc, "_docID"),
			Key:         defra.String(doc, "name"),
			Description: defra.String(doc, "description"),
		}

		if raw, ok := doc["value"].(string); ok {
			var parsed any
			if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
				s.logger.Debug("config value is not valid JSON, using as raw string",
					"key", entry.Key,
					"error", err)
				entry.Value = raw
			} else {
				entry.Value = parsed
			}
		} else {
			entry.Value = doc["value"]
		}

		entries = append(entries, entry)
	}
	return entries
}

func filterPrefix(all map[string]Entry, prefix string) map[string]Entry {
	return lo.PickBy(all, func(key string, _ Entry) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// MemoryStore is an in-process Store used when running without DefraDB.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Entry
}

// NewMemoryStore creates an empty in-memory config store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Entry)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.data[key]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value any, description string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	// Round-trip through JSON so values read back the same way DefraStore returns them.
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = Entry{Key: key, Value: decoded, Description: description}
	return nil
}

func (m *MemoryStore) GetAll(_ context.Context) (map[string]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.data), nil
}

func (m *MemoryStore) GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error) {
	all, _ := m.GetAll(ctx)
	return filterPrefix(all, prefix), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

var (
	_ Store = (*DefraStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
