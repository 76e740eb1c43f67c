package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/jackzampolin/promptshelf/internal/highlight"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// Runtime setting keys.
const (
	KeyDefaultPlatform = "defaults.platform"
	KeyCompareMode     = "versions.compare_mode"
	KeyListLimit       = "prompts.list_limit"
	KeyRemovedClass    = "highlight.removed_class"
	KeyAddedClass      = "highlight.added_class"
)

// DefaultEntries returns the default runtime settings.
// These are seeded into DefraDB on first run.
func DefaultEntries() []Entry {
	return []Entry{
		{
			Key:         KeyDefaultPlatform,
			Value:       "GPT",
			Description: "Platform assigned to prompts created without one",
		},
		{
			Key:         KeyCompareMode,
			Value:       "positional",
			Description: "Default version compare mode (positional or aligned)",
		},
		{
			Key:         KeyListLimit,
			Value:       50,
			Description: "Page size for prompt listings when no limit is given",
		},
		{
			Key:         KeyRemovedClass,
			Value:       highlight.DefaultClasses.Removed,
			Description: "CSS classes wrapped around removed words in HTML output",
		},
		{
			Key:         KeyAddedClass,
			Value:       highlight.DefaultClasses.Added,
			Description: "CSS classes wrapped around added words in HTML output",
		},
	}
}

// EntriesFromConfig returns DefaultEntries with the file-level defaults applied.
func EntriesFromConfig(cfg *Config) []Entry {
	entries := DefaultEntries()
	if cfg == nil {
		return entries
	}
	overrides := map[string]any{
		KeyDefaultPlatform: cfg.Defaults.Platform,
		KeyCompareMode:     cfg.Defaults.CompareMode,
		KeyListLimit:       cfg.Defaults.ListLimit,
	}
	for i, e := range entries {
		if v, ok := overrides[e.Key]; ok && !lo.IsEmpty(v) {
			entries[i].Value = v
		}
	}
	return entries
}

// SeedDefaults seeds default configuration entries into the store.
// This is idempotent - existing entries are not overwritten.
func SeedDefaults(ctx context.Context, store Store, entries []Entry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if entries == nil {
		entries = DefaultEntries()
	}

	seeded := 0
	skipped := 0

	for _, entry := range entries {
		existing, err := store.Get(ctx, entry.Key)
		if err != nil {
			return fmt.Errorf("failed to check key %q: %w", entry.Key, err)
		}

		if existing != nil {
			skipped++
			continue
		}

		if err := store.Set(ctx, entry.Key, entry.Value, entry.Description); err != nil {
			return fmt.Errorf("failed to seed key %q: %w", entry.Key, err)
		}
		seeded++
	}

	if seeded > 0 {
		logger.Info("seeded default config entries", "seeded", seeded, "skipped", skipped)
	}
	return nil
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	entry, ok := lo.Find(DefaultEntries(), func(e Entry) bool { return e.Key == key })
	if !ok {
		return nil
	}
	return &entry
}

// ResetToDefault resets a config key to its default value.
// Returns ErrNoDefault if no default exists for the key.
func ResetToDefault(ctx context.Context, store Store, key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return store.Set(ctx, key, def.Value, def.Description)
}

// Classes returns the HTML highlight classes from the settings.
func (s Settings) Classes() highlight.Classes {
	return highlight.Classes{Removed: s.RemovedClass, Added: s.AddedClass}
}

// Mode returns the configured compare mode, or positional if it is invalid.
func (s Settings) Mode() highlight.Mode {
	mode, err := highlight.ParseMode(s.CompareMode)
	if err != nil {
		return highlight.ModePositional
	}
	return mode
}

// Settings is the typed view of the runtime settings.
type Settings struct {
	DefaultPlatform string
	CompareMode     string
	ListLimit       int
	RemovedClass    string
	AddedClass      string
}

// DefaultSettings returns Settings built from DefaultEntries.
func DefaultSettings() Settings {
	return settingsFrom(nil)
}

// LoadSettings reads the runtime settings from store. Missing or mistyped
// entries fall back to their defaults.
func LoadSettings(ctx context.Context, store Store) (Settings, error) {
	all, err := store.GetAll(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return settingsFrom(all), nil
}

func settingsFrom(all map[string]Entry) Settings {
	str := func(key string) string {
		if e, ok := all[key]; ok {
			if s, ok := e.Value.(string); ok && s != "" {
				return s
			}
		}
		s, _ := GetDefault(key).Value.(string)
		return s
	}
	num := func(key string) int {
		if e, ok := all[key]; ok {
			switch v := e.Value.(type) {
			case float64:
				if v >= 1 {
					return int(v)
				}
			case int:
				if v >= 1 {
					return v
				}
			}
		}
		n, _ := GetDefault(key).Value.(int)
		return n
	}

	return Settings{
		DefaultPlatform: str(KeyDefaultPlatform),
		CompareMode:     str(KeyCompareMode),
		ListLimit:       num(KeyListLimit),
		RemovedClass:    str(KeyRemovedClass),
		AddedClass:      str(KeyAddedClass),
	}
}
