package endpoints

import (
	"github.com/jackzampolin/promptshelf/internal/api"
	"github.com/jackzampolin/promptshelf/internal/defra"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// DefraManager is nil unless the server manages the DefraDB container.
	DefraManager *defra.DockerManager
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	eps := []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{DefraManager: cfg.DefraManager},
		&MetricsEndpoint{},
	}
	eps = append(eps, PromptCommands()...)
	eps = append(eps, VersionCommands()...)
	eps = append(eps,
		&SharedPromptEndpoint{},
		&HighlightEndpoint{},
		&ListTagsEndpoint{},
		&CreateTagEndpoint{},
		&ListPlatformsEndpoint{},
	)
	eps = append(eps, SettingsCommands()...)
	return append(eps,
		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{},
		&SwaggerUIEndpoint{},

		// Static files (catch-all, must be last)
		&StaticEndpoint{},
	)
}

// PromptCommands returns endpoints for prompt CRUD.
// This groups prompt commands under the "prompts" subcommand.
func PromptCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListPromptsEndpoint{},
		&CreatePromptEndpoint{},
		&GetPromptEndpoint{},
		&UpdatePromptEndpoint{},
		&DeletePromptEndpoint{},
		&OpenPromptEndpoint{},
	}
}

// VersionCommands returns endpoints for version history.
func VersionCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListVersionsEndpoint{},
		&CompareVersionEndpoint{},
	}
}

// TagCommands returns endpoints for the tag catalog.
func TagCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListTagsEndpoint{},
		&CreateTagEndpoint{},
	}
}

// SettingsCommands returns endpoints for settings operations.
// This groups settings-related commands under the "settings" subcommand.
func SettingsCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},
		&UpdateSettingEndpoint{},
		&ResetSettingEndpoint{},
		&DeleteSettingEndpoint{},
	}
}
