package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptshelf/internal/api"
	"github.com/jackzampolin/promptshelf/internal/prompts"
)

// TagsResponse is the shared tag catalog.
type TagsResponse struct {
	Tags []prompts.Tag `json:"tags"`
}

// CreateTagRequest is the request body for creating a tag.
type CreateTagRequest struct {
	Name string `json:"name"`
}

// ListTagsEndpoint handles GET /api/tags.
type ListTagsEndpoint struct{}

func (e *ListTagsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/tags", e.handler
}

func (e *ListTagsEndpoint) RequiresInit() bool { return true }
func (e *ListTagsEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		List tags
//	@Description	List the tag catalog sorted by name
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/tags [get]
func (e *ListTagsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc, ok := promptService(w, r)
	if !ok {
		return
	}

	tags, err := svc.Store().ListTags(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if tags == nil {
		tags = []prompts.Tag{}
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

func (e *ListTagsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tag catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp TagsResponse
			if err := client.Get(ctx, "/api/tags", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CreateTagEndpoint handles POST /api/tags.
type CreateTagEndpoint struct{}

func (e *CreateTagEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/tags", e.handler
}

func (e *CreateTagEndpoint) RequiresInit() bool { return true }
func (e *CreateTagEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		Create a tag
//	@Description	Add a tag to the catalog. An existing tag matching case-insensitively is returned instead.
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTagRequest	true	"Tag name"
//	@Success		200		{object}	prompts.Tag
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/tags [post]
func (e *CreateTagEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc, ok := promptService(w, r)
	if !ok {
		return
	}

	var req CreateTagRequest
	if err := decodeBody(r, "tag_create.json", &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	tag, err := svc.Store().CreateTag(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (e *CreateTagEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Add a tag to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp prompts.Tag
			if err := client.Post(ctx, "/api/tags", CreateTagRequest{Name: args[0]}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
