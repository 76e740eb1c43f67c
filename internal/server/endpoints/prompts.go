package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptshelf/internal/api"
	"github.com/jackzampolin/promptshelf/internal/prompts"
	"github.com/jackzampolin/promptshelf/internal/svcctx"
)

// PromptsListResponse is a page of the caller's prompts.
type PromptsListResponse struct {
	Prompts []prompts.Prompt `json:"prompts"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// ListPromptsEndpoint handles GET /api/prompts.
type ListPromptsEndpoint struct{}

func (e *ListPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts", e.handler
}

func (e *ListPromptsEndpoint) RequiresInit() bool { return true }
func (e *ListPromptsEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		List prompts
//	@Description	List the caller's prompts, newest first, optionally filtered by tag, platform or a search term
//	@Tags			prompts
//	@Produce		json
//	@Param			tag			query		string	false	"Tag name"
//	@Param			platform	query		string	false	"Platform key"
//	@Param			q			query		string	false	"Case-insensitive search over title, description and content"
//	@Param			limit		query		int		false	"Page size (defaults to the prompts.list_limit setting)"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	PromptsListResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/prompts [get]
func (e *ListPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	svc, ok := promptService(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if limit == 0 {
		limit = svcctx.SettingsFrom(r.Context()).ListLimit
	}

	q := r.URL.Query()
	filter := prompts.ListFilter{
		Tag:      q.Get("tag"),
		Platform: q.Get("platform"),
		Search:   q.Get("q"),
		Limit:    limit,
		Offset:   offset,
	}

	list, err := svc.Store().ListPrompts(r.Context(), userID, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []prompts.Prompt{}
	}

	writeJSON(w, http.StatusOK, PromptsListResponse{Prompts: list, Limit: limit, Offset: offset})
}

func (e *ListPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var filter prompts.ListFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			params := url.Values{}
			if filter.Tag != "" {
				params.Set("tag", filter.Tag)
			}
			if filter.Platform != "" {
				params.Set("platform", filter.Platform)
			}
			if filter.Search != "" {
				params.Set("q", filter.Search)
			}
			if filter.Limit > 0 {
				params.Set("limit", strconv.Itoa(filter.Limit))
			}
			if filter.Offset > 0 {
				params.Set("offset", strconv.Itoa(filter.Offset))
			}
			path := "/api/prompts"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			var resp PromptsListResponse
			if err := client.Get(ctx, path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&filter.Tag, "tag", "", "Only prompts with this tag")
	cmd.Flags().StringVar(&filter.Platform, "platform", "", "Only prompts for this platform")
	cmd.Flags().StringVarP(&filter.Search, "query", "q", "", "Search term")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Page size")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Page offset")
	return cmd
}

// CreatePromptEndpoint handles POST /api/prompts.
type CreatePromptEndpoint struct{}

func (e *CreatePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/prompts", e.handler
}

func (e *CreatePromptEndpoint) RequiresInit() bool { return true }
func (e *CreatePromptEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		Create a prompt
//	@Description	Create a prompt owned by the caller and register its tags in the catalog
//	@Tags			prompts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		prompts.Input	true	"Prompt fields"
//	@Success		201		{object}	prompts.Prompt
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/prompts [post]
func (e *CreatePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	svc, ok := promptService(w, r)
	if !ok {
		return
	}

	var in prompts.Input
	if err := decodeBody(r, "prompt_create.json", &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if in.Platform == nil || *in.Platform == "" {
		platform := svcctx.SettingsFrom(r.Context()).DefaultPlatform
		in.Platform = &platform
	}

	p, err := svc.CreatePrompt(r.Context(), userID, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observeWrite(r, "create")
	svcctx.LoggerFrom(r.Context()).Info("prompt created", "prompt_id", p.ID, "user_id", userID)

	writeJSON(w, http.StatusCreated, p)
}

func (e *CreatePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var f promptFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in, err := f.input(cmd)
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			var resp prompts.Prompt
			if err := client.Post(ctx, "/api/prompts", in, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

// GetPromptEndpoint handles GET /api/prompts/{id}.
type GetPromptEndpoint struct{}

func (e *GetPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{id}", e.handler
}

func (e *GetPromptEndpoint) RequiresInit() bool { return true }
func (e *GetPromptEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		Get a prompt
//	@Description	Get one of the caller's prompts together with the tag catalog
//	@Tags			prompts
//	@Produce		json
//	@Param			id	path		string	true	"Prompt ID"
//	@Success		200	{object}	prompts.PromptWithTags
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/prompts/{id} [get]
func (e *GetPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	svc, ok := promptService(w, r)
	if !ok {
		return
	}

	out, err := svc.LoadPromptWithTags(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (e *GetPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp prompts.PromptWithTags
			if err := client.Get(ctx, "/api/prompts/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// UpdatePromptEndpoint handles PATCH /api/prompts/{id}.
type UpdatePromptEndpoint struct{}

func (e *UpdatePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/prompts/{id}", e.handler
}

func (e *UpdatePromptEndpoint) RequiresInit() bool { return true }
func (e *UpdatePromptEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		Update a prompt
//	@Description	Update the given fields. When the content changes the previous content is recorded as a new version.
//	@Tags			prompts
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Prompt ID"
//	@Param			body	body		prompts.Input	true	"Fields to change"
//	@Success		200		{object}	prompts.Prompt
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/prompts/{id} [patch]
func (e *UpdatePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	svc, ok := promptService(w, r)
	if !ok {
		return
	}

	var in prompts.Input
	if err := decodeBody(r, "prompt_update.json", &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	p, err := svc.UpdatePromptFull(r.Context(), userID, r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observeWrite(r, "update")

	writeJSON(w, http.StatusOK, p)
}

func (e *UpdatePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var f promptFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in, err := f.input(cmd)
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			var resp prompts.Prompt
			if err := client.Patch(ctx, "/api/prompts/"+url.PathEscape(args[0]), in, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	f.register(cmd)
	return cmd
}

// DeletePromptEndpoint handles DELETE /api/prompts/{id}.
type DeletePromptEndpoint struct{}

func (e *DeletePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/prompts/{id}", e.handler
}

func (e *DeletePromptEndpoint) RequiresInit() bool { return true }
func (e *DeletePromptEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		Delete a prompt
//	@Description	Delete one of the caller's prompts and its version history
//	@Tags			prompts
//	@Param			id	path	string	true	"Prompt ID"
//	@Success		204
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/prompts/{id} [delete]
func (e *DeletePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	svc, ok := promptService(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if err := svc.Store().DeletePrompt(r.Context(), userID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observeWrite(r, "delete")
	svcctx.LoggerFrom(r.Context()).Info("prompt deleted", "prompt_id", id, "user_id", userID)

	w.WriteHeader(http.StatusNoContent)
}

func (e *DeletePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			if err := client.Delete(ctx, "/api/prompts/"+url.PathEscape(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted prompt %s\n", args[0])
			return nil
		},
	}
}

// OpenPromptEndpoint handles GET /api/prompts/{id}/open.
type OpenPromptEndpoint struct{}

func (e *OpenPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{id}/open", e.handler
}

func (e *OpenPromptEndpoint) RequiresInit() bool { return true }
func (e *OpenPromptEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		Resolve a platform launch URL
//	@Description	Return the URL that opens the prompt's platform on the given client, plus the content to paste
//	@Tags			prompts
//	@Produce		json
//	@Param			id		path		string	true	"Prompt ID"
//	@Param			client	query		string	false	"web, ios or android (default web)"
//	@Success		200		{object}	prompts.Launch
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/prompts/{id}/open [get]
func (e *OpenPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	svc, ok := promptService(w, r)
	if !ok {
		return
	}

	client, err := prompts.ParseClientKind(r.URL.Query().Get("client"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	launch, err := svc.OpenOnPlatform(r.Context(), userID, r.PathValue("id"), client)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, launch)
}

func (e *OpenPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var client string
	cmd := &cobra.Command{
		Use:   "open <id>",
		Short: "Print the launch URL for a prompt's platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := api.NewClient(getServerURL())
			path := "/api/prompts/" + url.PathEscape(args[0]) + "/open?client=" + url.QueryEscape(client)
			var resp prompts.Launch
			if err := c.Get(ctx, path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&client, "client", "web", "Client kind: web, ios or android")
	return cmd
}

// SharedPromptEndpoint handles GET /api/shared/{id}.
type SharedPromptEndpoint struct{}

func (e *SharedPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/shared/{id}", e.handler
}

func (e *SharedPromptEndpoint) RequiresInit() bool { return true }
func (e *SharedPromptEndpoint) RequiresUser() bool { return false }

// handler godoc
//
//	@Summary		Get a shared prompt
//	@Description	Get any prompt by ID without an identity; backs public share links
//	@Tags			prompts
//	@Produce		json
//	@Param			id	path		string	true	"Prompt ID"
//	@Success		200	{object}	prompts.Prompt
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/shared/{id} [get]
func (e *SharedPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc, ok := promptService(w, r)
	if !ok {
		return
	}

	p, err := svc.Store().GetSharedPrompt(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (e *SharedPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "shared <id>",
		Short: "Get a shared prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp prompts.Prompt
			if err := client.Get(ctx, "/api/shared/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// promptFlags binds prompt fields to CLI flags. Only flags the user set end
// up in the request, so update commands change nothing else.
type promptFlags struct {
	title, content, contentFile, description, platform, version, cover string
	tags                                                               []string
}

func (f *promptFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Prompt title")
	cmd.Flags().StringVar(&f.content, "content", "", "Prompt content")
	cmd.Flags().StringVar(&f.contentFile, "content-file", "", "Read prompt content from a file")
	cmd.Flags().StringVar(&f.description, "description", "", "Description")
	cmd.Flags().StringVar(&f.platform, "platform", "", "Platform key (see 'platforms')")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().StringVar(&f.version, "version", "", "Version label")
	cmd.Flags().StringVar(&f.cover, "cover-img", "", "Cover image URL")
	cmd.MarkFlagsMutuallyExclusive("content", "content-file")
}

func (f *promptFlags) input(cmd *cobra.Command) (prompts.Input, error) {
	var in prompts.Input
	set := func(name string, v *string) *string {
		if cmd.Flags().Changed(name) {
			return v
		}
		return nil
	}
	in.Title = set("title", &f.title)
	in.Content = set("content", &f.content)
	in.Description = set("description", &f.description)
	in.Platform = set("platform", &f.platform)
	in.Version = set("version", &f.version)
	in.CoverImage = set("cover-img", &f.cover)
	if cmd.Flags().Changed("tag") {
		in.Tags = &f.tags
	}
	if f.contentFile != "" {
		content, err := readContentFile(f.contentFile)
		if err != nil {
			return in, err
		}
		in.Content = &content
	}
	return in, nil
}
