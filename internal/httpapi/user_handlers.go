package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"orgdir.org/internal/audit"
)

type userRequest struct {
	Name         string  `json:"name"`
	RoleID       int64   `json:"roleId"`
	StructureIDs []int64 `json:"structureIds"`
}

// validate checks primitive field shapes only; existence of the referenced
// role and structures is the service's concern.
func (req userRequest) validate() []fieldError {
	var errs []fieldError
	if strings.TrimSpace(req.Name) == "" {
		errs = append(errs, fieldError{Field: "name", Message: "name must be a non-empty string"})
	}
	if req.RoleID <= 0 {
		errs = append(errs, fieldError{Field: "roleId", Message: "roleId must be a positive number"})
	}
	if len(req.StructureIDs) == 0 {
		errs = append(errs, fieldError{Field: "structureIds", Message: "structureIds must be a non-empty array"})
	}
	for _, id := range req.StructureIDs {
		if id <= 0 {
			errs = append(errs, fieldError{Field: "structureIds", Message: "structureIds must contain positive numbers"})
			break
		}
	}
	return errs
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listUsers(w, r)
	case http.MethodPost:
		a.createUser(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// listUsers returns only the users inside the principal's visible set. An
// empty visible set is a legitimate empty list, not a failure.
func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	users, err := a.engine.VisibleUsers(r.Context(), principal)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := req.validate(); len(fieldErrors) > 0 {
		writeValidationError(w, r, fieldErrors)
		return
	}
	if err := a.engine.AuthorizeCreate(r.Context(), principal, req.StructureIDs); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	user, err := a.dir.CreateUser(r.Context(), req.Name, req.RoleID, req.StructureIDs)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "directory.user.create", map[string]any{
		"user_id": user.ID,
		"name":    user.Name,
	})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r, "/users/")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPut:
		a.updateUser(w, r, id)
	case http.MethodDelete:
		a.deleteUser(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id int64) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := req.validate(); len(fieldErrors) > 0 {
		writeValidationError(w, r, fieldErrors)
		return
	}
	// Target existence is checked before scope; the resolved target feeds the
	// write directly so it is not looked up twice.
	target, err := a.engine.AuthorizeEdit(r.Context(), principal, id)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	user, err := a.dir.UpdateUser(r.Context(), target.ID, req.Name, req.RoleID, req.StructureIDs)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "directory.user.update", map[string]any{
		"user_id": user.ID,
		"name":    user.Name,
	})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, id int64) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	target, err := a.engine.AuthorizeEdit(r.Context(), principal, id)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	if err := a.dir.DeleteUser(r.Context(), target.ID); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "directory.user.delete", map[string]any{
		"user_id": target.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"code":    http.StatusOK,
		"message": "User deleted successfully",
	})
}

// resourceID parses the trailing id segment of a resource path.
func resourceID(w http.ResponseWriter, r *http.Request, prefix string) (int64, bool) {
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if raw == "" || strings.Contains(raw, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "id must be a positive number")
		return 0, false
	}
	return id, true
}
