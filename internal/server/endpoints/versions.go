package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptshelf/internal/api"
	"github.com/jackzampolin/promptshelf/internal/highlight"
	"github.com/jackzampolin/promptshelf/internal/prompts"
	"github.com/jackzampolin/promptshelf/internal/svcctx"
)

// Compare output formats.
const (
	FormatSpans = "spans"
	FormatHTML  = "html"
)

// HighlightHTML is the rendered form of a comparison.
type HighlightHTML struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// CompareResponse is a highlighted comparison. Result is set for the spans
// format and HTML for the html format.
type CompareResponse struct {
	PromptID string            `json:"prompt_id,omitempty"`
	Version  int               `json:"version,omitempty"`
	Mode     highlight.Mode    `json:"mode"`
	Format   string            `json:"format"`
	Result   *highlight.Result `json:"result,omitempty"`
	HTML     *HighlightHTML    `json:"html,omitempty"`
	Stats    highlight.Stats   `json:"stats"`
}

func parseFormat(s string) (string, error) {
	switch s {
	case "", FormatSpans:
		return FormatSpans, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want %q or %q)", errBadRequest, s, FormatSpans, FormatHTML)
	}
}

// parseMode reads an explicit mode or falls back to the compare_mode setting.
func parseMode(r *http.Request, raw string) (highlight.Mode, error) {
	if raw == "" {
		return svcctx.SettingsFrom(r.Context()).Mode(), nil
	}
	mode, err := highlight.ParseMode(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return mode, nil
}

// newCompareResponse shapes res for format, rendering HTML with the
// configured classes.
func newCompareResponse(r *http.Request, mode highlight.Mode, format string, res highlight.Result) CompareResponse {
	resp := CompareResponse{Mode: mode, Format: format, Stats: res.Stats()}
	if format == FormatHTML {
		classes := svcctx.SettingsFrom(r.Context()).Classes()
		resp.HTML = &HighlightHTML{
			Old: highlight.RenderHTML(res.Old, classes),
			New: highlight.RenderHTML(res.New, classes),
		}
		return resp
	}
	resp.Result = &res
	return resp
}

// ListVersionsEndpoint handles GET /api/prompts/{id}/versions.
type ListVersionsEndpoint struct{}

func (e *ListVersionsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{id}/versions", e.handler
}

func (e *ListVersionsEndpoint) RequiresInit() bool { return true }
func (e *ListVersionsEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		List prompt versions
//	@Description	Get a prompt's current state and its previous contents, newest first
//	@Tags			versions
//	@Produce		json
//	@Param			id	path		string	true	"Prompt ID"
//	@Success		200	{object}	prompts.PromptHistory
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/prompts/{id}/versions [get]
func (e *ListVersionsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	svc, ok := promptService(w, r)
	if !ok {
		return
	}

	history, err := svc.PromptWithVersions(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (e *ListVersionsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <id>",
		Short: "List a prompt's versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp prompts.PromptHistory
			if err := client.Get(ctx, "/api/prompts/"+url.PathEscape(args[0])+"/versions", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CompareVersionEndpoint handles GET /api/prompts/{id}/versions/{version}/compare.
type CompareVersionEndpoint struct{}

func (e *CompareVersionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{id}/versions/{version}/compare", e.handler
}

func (e *CompareVersionEndpoint) RequiresInit() bool { return true }
func (e *CompareVersionEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		Compare a version with the current content
//	@Description	Highlight what changed between a historical version (old) and the current content (new)
//	@Tags			versions
//	@Produce		json
//	@Param			id		path		string	true	"Prompt ID"
//	@Param			version	path		int		true	"Version number"
//	@Param			mode	query		string	false	"positional or aligned (defaults to the versions.compare_mode setting)"
//	@Param			format	query		string	false	"spans (default) or html"
//	@Success		200		{object}	CompareResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/prompts/{id}/versions/{version}/compare [get]
func (e *CompareVersionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	svc, ok := promptService(w, r)
	if !ok {
		return
	}

	number, err := strconv.Atoi(r.PathValue("version"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "version must be an integer")
		return
	}
	q := r.URL.Query()
	mode, err := parseMode(r, q.Get("mode"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	format, err := parseFormat(q.Get("format"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	cmp, err := svc.CompareVersion(r.Context(), userID, r.PathValue("id"), number, mode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observeCompare(r, string(mode), "version")

	resp := newCompareResponse(r, cmp.Mode, format, cmp.Result)
	resp.PromptID = cmp.PromptID
	resp.Version = cmp.Version
	writeJSON(w, http.StatusOK, resp)
}

func (e *CompareVersionEndpoint) Command(getServerURL func() string) *cobra.Command {
	var mode string
	var color bool
	cmd := &cobra.Command{
		Use:   "compare <id> <version>",
		Short: "Compare a version with the current content",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			params := url.Values{}
			if mode != "" {
				params.Set("mode", mode)
			}
			path := fmt.Sprintf("/api/prompts/%s/versions/%s/compare", url.PathEscape(args[0]), url.PathEscape(args[1]))
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			var resp CompareResponse
			if err := client.Get(ctx, path, &resp); err != nil {
				return err
			}
			if color && resp.Result != nil {
				return printColored(cmd, *resp.Result, resp.Stats)
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "Alignment mode: positional or aligned")
	cmd.Flags().BoolVar(&color, "color", false, "Print colored text instead of structured output")
	return cmd
}

// printColored writes both sides of res with ANSI highlighting.
func printColored(cmd *cobra.Command, res highlight.Result, stats highlight.Stats) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "--- old")
	fmt.Fprintln(out, highlight.RenderANSI(res.Old))
	fmt.Fprintln(out, "+++ new")
	fmt.Fprintln(out, highlight.RenderANSI(res.New))
	_, err := fmt.Fprintf(out, "\n%d unchanged, %d removed, %d added\n", stats.Unchanged, stats.Removed, stats.Added)
	return err
}
