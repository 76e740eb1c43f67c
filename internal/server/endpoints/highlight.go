package endpoints

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptshelf/internal/api"
	"github.com/jackzampolin/promptshelf/internal/highlight"
)

// HighlightRequest is the request body for an ad hoc comparison.
// A null or missing side compares as empty and yields an empty result.
type HighlightRequest struct {
	Old    *string `json:"old"`
	New    *string `json:"new"`
	Mode   string `json:"mode,omitempty"`
	Format string `json:"format,omitempty"`
}

// HighlightEndpoint handles POST /api/highlight.
type HighlightEndpoint struct{}

func (e *HighlightEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/highlight", e.handler
}

func (e *HighlightEndpoint) RequiresInit() bool { return false }
func (e *HighlightEndpoint) RequiresUser() bool { return true }

// handler godoc
//
//	@Summary		Highlight two texts
//	@Description	Compare two supplied texts without storing anything
//	@Tags			versions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		HighlightRequest	true	"Texts to compare"
//	@Success		200		{object}	CompareResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Router			/api/highlight [post]
func (e *HighlightEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req HighlightRequest
	if err := decodeBody(r, "highlight.json", &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	mode, err := parseMode(r, req.Mode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	format, err := parseFormat(req.Format)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res := highlight.ComputeModePtr(mode, req.Old, req.New)
	observeCompare(r, string(mode), "adhoc")

	writeJSON(w, http.StatusOK, newCompareResponse(r, mode, format, res))
}

func (e *HighlightEndpoint) Command(getServerURL func() string) *cobra.Command {
	var mode string
	var color bool
	cmd := &cobra.Command{
		Use:   "highlight <old-file> <new-file>",
		Short: "Highlight two files on the server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			oldText, err := readContentFile(args[0])
			if err != nil {
				return err
			}
			newText, err := readContentFile(args[1])
			if err != nil {
				return err
			}

			client := api.NewClient(getServerURL())
			var resp CompareResponse
			req := HighlightRequest{Old: &oldText, New: &newText, Mode: mode}
			if err := client.Post(ctx, "/api/highlight", req, &resp); err != nil {
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

func readContentFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
