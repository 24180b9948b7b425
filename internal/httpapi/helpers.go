package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"orgdir.org/internal/access"
	"orgdir.org/internal/directory"
	"orgdir.org/internal/obs"
)

// fieldError describes one failed shape check in a validation response.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders the {code, message} error body shared by every failure
// mode, plus the request id when one is attached.
func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"code":    code,
		"message": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func writeValidationError(w http.ResponseWriter, r *http.Request, fieldErrors []fieldError) {
	payload := map[string]any{
		"code":    http.StatusBadRequest,
		"message": "Validation failed",
		"errors":  fieldErrors,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, http.StatusBadRequest, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// handleDirectoryError maps domain errors onto statuses. Anything unexpected
// is logged in full and surfaced as an opaque internal error so store detail
// never reaches the wire.
func handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, "User not found")
	case errors.Is(err, directory.ErrRoleNotFound):
		writeError(w, r, http.StatusNotFound, "Role not found")
	case errors.Is(err, directory.ErrStructureNotFound):
		writeError(w, r, http.StatusNotFound, "Structure not found")
	case errors.Is(err, directory.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, access.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "Forbidden")
	default:
		obs.LogError("directory operation failed", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"path":       r.URL.Path,
			"error":      err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
