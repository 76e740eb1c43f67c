package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptshelf/internal/api"
	"github.com/jackzampolin/promptshelf/internal/config"
	"github.com/jackzampolin/promptshelf/internal/svcctx"
)

// SettingsResponse contains all config entries keyed by name.
type SettingsResponse struct {
	Settings map[string]config.Entry `json:"settings"`
}

// SettingResponse contains a single config entry.
type SettingResponse struct {
	Entry *config.Entry `json:"entry,omitempty"`
	Error string        `json:"error,omitempty"`
}

// UpdateSettingRequest is the request body for updating a setting.
type UpdateSettingRequest struct {
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
}

// settingKey reads and validates the {key...} path value.
func settingKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := url.PathUnescape(r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key encoding")
		return "", false
	}
	if err := config.ValidateKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return key, true
}

// configStore returns the settings store or writes a 503.
func configStore(w http.ResponseWriter, r *http.Request) (config.Store, bool) {
	store := svcctx.ConfigStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "config store not available")
		return nil, false
	}
	return store, true
}

// writeEntry re-reads key and writes it as a SettingResponse.
func writeEntry(w http.ResponseWriter, r *http.Request, store config.Store, key string) {
	entry, err := store.Get(r.Context(), key)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "setting not found")
		return
	}
	writeJSON(w, http.StatusOK, SettingResponse{Entry: entry})
}

// ListSettingsEndpoint handles GET /api/settings.
type ListSettingsEndpoint struct{}

func (e *ListSettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings", e.handler
}

func (e *ListSettingsEndpoint) RequiresInit() bool { return true }
func (e *ListSettingsEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		List all settings
//	@Description	Get all runtime settings, optionally restricted to a key prefix
//	@Tags			settings
//	@Produce		json
//	@Param			prefix	query		string	false	"Key prefix (e.g. 'highlight.')"
//	@Success		200		{object}	SettingsResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/settings [get]
func (e *ListSettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store, ok := configStore(w, r)
	if !ok {
		return
	}

	var (
		entries map[string]config.Entry
		err     error
	)
	if prefix := r.URL.Query().Get("prefix"); prefix != "" {
		entries, err = store.GetByPrefix(r.Context(), prefix)
	} else {
		entries, err = store.GetAll(r.Context())
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SettingsResponse{Settings: entries})
}

func (e *ListSettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			path := "/api/settings"
			if prefix != "" {
				path += "?" + url.Values{"prefix": {prefix}}.Encode()
			}
			var resp SettingsResponse
			if err := client.Get(ctx, path, &resp); err != nil {
				return err
			}
			return api.Output(resp.Settings)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Filter by key prefix (e.g., 'highlight.')")
	return cmd
}

// GetSettingEndpoint handles GET /api/settings/{key...}.
type GetSettingEndpoint struct{}

func (e *GetSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings/{key...}", e.handler
}

func (e *GetSettingEndpoint) RequiresInit() bool { return true }
func (e *GetSettingEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		Get a setting
//	@Description	Get a single runtime setting by key
//	@Tags			settings
//	@Produce		json
//	@Param			key	path		string	true	"Setting key (URL-encoded)"
//	@Success		200	{object}	SettingResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/settings/{key} [get]
func (e *GetSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKey(w, r)
	if !ok {
		return
	}
	store, ok := configStore(w, r)
	if !ok {
		return
	}
	writeEntry(w, r, store, key)
}

func (e *GetSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a setting by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp SettingResponse
			if err := client.Get(ctx, "/api/settings/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp.Entry)
		},
	}
}

// UpdateSettingEndpoint handles PUT /api/settings/{key...}.
type UpdateSettingEndpoint struct{}

func (e *UpdateSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/settings/{key...}", e.handler
}

func (e *UpdateSettingEndpoint) RequiresInit() bool { return true }
func (e *UpdateSettingEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		Update a setting
//	@Description	Create or replace a runtime setting
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string					true	"Setting key (URL-encoded)"
//	@Param			body	body		UpdateSettingRequest	true	"New value"
//	@Success		200		{object}	SettingResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/settings/{key} [put]
func (e *UpdateSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKey(w, r)
	if !ok {
		return
	}
	var req UpdateSettingRequest
	if err := decodeBody(r, "setting_update.json", &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	store, ok := configStore(w, r)
	if !ok {
		return
	}

	existing, err := store.Get(r.Context(), key)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Warn("failed to fetch existing setting for description preservation",
			"key", key, "error", err)
	}
	description := req.Description
	if description == "" && existing != nil {
		description = existing.Description
	}

	if err := store.Set(r.Context(), key, req.Value, description); err != nil {
		writeServiceError(w, r, err)
		return
	}
	svcctx.LoggerFrom(r.Context()).Info("setting updated", "key", key)
	writeEntry(w, r, store, key)
}

func (e *UpdateSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	var value string
	var description string
	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Update a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			// Values that are not JSON are sent as strings.
			var parsed any
			if err := json.Unmarshal([]byte(value), &parsed); err != nil {
				parsed = value
			}

			req := UpdateSettingRequest{Value: parsed, Description: description}
			var resp SettingResponse
			if err := client.Put(ctx, "/api/settings/"+url.PathEscape(args[0]), req, &resp); err != nil {
				return err
			}
			return api.Output(resp.Entry)
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "New value (JSON or string)")
	cmd.Flags().StringVar(&description, "description", "", "Description (optional)")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

// ResetSettingEndpoint handles POST /api/settings/reset/{key...}.
type ResetSettingEndpoint struct{}

func (e *ResetSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/settings/reset/{key...}", e.handler
}

func (e *ResetSettingEndpoint) RequiresInit() bool { return true }
func (e *ResetSettingEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		Reset a setting to default
//	@Description	Reset a runtime setting to its built-in default value
//	@Tags			settings
//	@Produce		json
//	@Param			key	path		string	true	"Setting key (URL-encoded)"
//	@Success		200	{object}	SettingResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/settings/reset/{key} [post]
func (e *ResetSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKey(w, r)
	if !ok {
		return
	}
	store, ok := configStore(w, r)
	if !ok {
		return
	}
	if err := config.ResetToDefault(r.Context(), store, key); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeEntry(w, r, store, key)
}

func (e *ResetSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <key>",
		Short: "Reset a setting to its default value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp SettingResponse
			if err := client.Post(ctx, "/api/settings/reset/"+url.PathEscape(args[0]), nil, &resp); err != nil {
				return err
			}
			return api.Output(resp.Entry)
		},
	}
}

// DeleteSettingEndpoint handles DELETE /api/settings/{key...}. Keys with a
// built-in default are reset to it; other keys are removed.
type DeleteSettingEndpoint struct{}

func (e *DeleteSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/settings/{key...}", e.handler
}

func (e *DeleteSettingEndpoint) RequiresInit() bool { return true }
func (e *DeleteSettingEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		Delete a setting
//	@Description	Remove a runtime setting, or reset it when it has a built-in default
//	@Tags			settings
//	@Produce		json
//	@Param			key	path		string	true	"Setting key (URL-encoded)"
//	@Success		200	{object}	SettingResponse
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/settings/{key} [delete]
func (e *DeleteSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKey(w, r)
	if !ok {
		return
	}
	store, ok := configStore(w, r)
	if !ok {
		return
	}

	err := config.ResetToDefault(r.Context(), store, key)
	switch {
	case err == nil:
		writeEntry(w, r, store, key)
	case errors.Is(err, config.ErrNoDefault):
		if err := store.Delete(r.Context(), key); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeServiceError(w, r, err)
	}
}

func (e *DeleteSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a setting (keys with a default are reset instead)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			if err := client.Delete(ctx, "/api/settings/"+url.PathEscape(args[0])); err != nil {
				return err
			}
			cmd.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}
