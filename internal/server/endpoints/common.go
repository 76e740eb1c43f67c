package endpoints

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/promptshelf/internal/auth"
	"github.com/jackzampolin/promptshelf/internal/config"
	"github.com/jackzampolin/promptshelf/internal/defra"
	"github.com/jackzampolin/promptshelf/internal/prompts"
	"github.com/jackzampolin/promptshelf/internal/svcctx"
)

// maxBodyBytes bounds request bodies; prompt content is plain text.
const maxBodyBytes = 1 << 20

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

// requestSchema returns the compiled schema for name (a file under schemas/).
func requestSchema(name string) (*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		entries, err := schemaFS.ReadDir("schemas")
		if err != nil {
			schemasErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		for _, e := range entries {
			data, err := schemaFS.ReadFile("schemas/" + e.Name())
			if err != nil {
				schemasErr = err
				return
			}
			if err := compiler.AddResource(e.Name(), bytes.NewReader(data)); err != nil {
				schemasErr = fmt.Errorf("failed to load request schema %s: %w", e.Name(), err)
				return
			}
		}
		schemas = make(map[string]*jsonschema.Schema, len(entries))
		for _, e := range entries {
			s, err := compiler.Compile(e.Name())
			if err != nil {
				schemasErr = fmt.Errorf("failed to compile request schema %s: %w", e.Name(), err)
				return
			}
			schemas[e.Name()] = s
		}
	})
	if schemasErr != nil {
		return nil, schemasErr
	}
	s, ok := schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown request schema %q", name)
	}
	return s, nil
}

// errBadRequest marks decode and schema failures.
var errBadRequest = errors.New("bad request")

// decodeBody validates the request body against schemaName and decodes it into v.
func decodeBody(r *http.Request, schemaName string, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: failed to read body: %v", errBadRequest, err)
	}
	if len(data) > maxBodyBytes {
		return fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, maxBodyBytes)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}

	schema, err := requestSchema(schemaName)
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %s", errBadRequest, validationMessage(verr))
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// validationMessage reports the most specific schema violation.
func validationMessage(verr *jsonschema.ValidationError) string {
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	loc := verr.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + verr.Message
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, prompts.ErrInvalidInput),
		errors.Is(err, config.ErrInvalidKey),
		errors.Is(err, defra.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, prompts.ErrNotFound),
		errors.Is(err, config.ErrNoDefault):
		return http.StatusNotFound
	case errors.Is(err, defra.ErrUnhealthy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps err to a status and logs server-side failures.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		svcctx.LoggerFrom(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}
	writeError(w, status, err.Error())
}

// promptService returns the prompt service or writes a 503.
func promptService(w http.ResponseWriter, r *http.Request) (*prompts.Service, bool) {
	svc := svcctx.PromptServiceFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt service not available")
		return nil, false
	}
	return svc, true
}

// requireUser returns the caller's id or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := auth.UserID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return "", false
	}
	return userID, true
}

// queryInt parses a non-negative integer query parameter; missing is 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, name)
	}
	return n, nil
}

func observeWrite(r *http.Request, op string) {
	if m := svcctx.MetricsFrom(r.Context()); m != nil {
		m.ObserveWrite(op)
	}
}

func observeCompare(r *http.Request, mode, source string) {
	if m := svcctx.MetricsFrom(r.Context()); m != nil {
		m.ObserveCompare(mode, source)
	}
}
