package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptshelf/internal/api"
	"github.com/jackzampolin/promptshelf/internal/prompts"
	"github.com/jackzampolin/promptshelf/internal/svcctx"
)

// PlatformsResponse lists the supported AI platforms.
type PlatformsResponse struct {
	Platforms []prompts.Platform `json:"platforms"`
	Default   string             `json:"default"`
}

// ListPlatformsEndpoint handles GET /api/platforms.
type ListPlatformsEndpoint struct{}

func (e *ListPlatformsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/platforms", e.handler
}

func (e *ListPlatformsEndpoint) RequiresInit() bool { return false }
func (e *ListPlatformsEndpoint) RequiresUser() bool { return false }

// handler godoc
//
//	@Summary		List platforms
//	@Description	List the AI platforms prompts can target, with their launch URLs
//	@Tags			platforms
//	@Produce		json
//	@Success		200	{object}	PlatformsResponse
//	@Router			/api/platforms [get]
func (e *ListPlatformsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PlatformsResponse{
		Platforms: prompts.Platforms(),
		Default:   svcctx.SettingsFrom(r.Context()).DefaultPlatform,
	})
}

func (e *ListPlatformsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List supported AI platforms",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp PlatformsResponse
			if err := client.Get(ctx, "/api/platforms", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
