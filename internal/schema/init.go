package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackzampolin/promptshelf/internal/defra"
)

// Initialize applies every registered collection to DefraDB.
// Collections that already exist are skipped, so it is safe on every startup.
func Initialize(ctx context.Context, client *defra.Client, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	schemas, err := All()
	if err != nil {
		return fmt.Errorf("failed to load schemas: %w", err)
	}

	added := 0
	for _, s := range schemas {
		ok, err := apply(ctx, client, s)
		if err != nil {
			return err
		}
		if ok {
			added++
			logger.Info("schema added", "collection", s.Name)
		} else {
			logger.Debug("schema already exists", "collection", s.Name)
		}
	}

	logger.Info("schemas initialized", "added", added, "total", len(schemas))
	return nil
}

// apply adds a single collection and reports whether it was new.
func apply(ctx context.Context, client *defra.Client, s Schema) (bool, error) {
	if err := client.AddSchema(ctx, s.SDL); err != nil {
		if isAlreadyExistsError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to add schema %s: %w", s.Name, err)
	}
	return true, nil
}

// DefraDB is reached over HTTP, so the only signal is the response body.
func isAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "already exists")
}
