package httpapi

import "net/http"

type roleRequest struct {
	Name string `json:"name"`
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		roles, err := a.dir.ListRoles(r.Context())
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, roles)
	case http.MethodPost:
		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.dir.CreateRole(r.Context(), req.Name)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r, "/roles/")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		role, err := a.dir.RoleByID(r.Context(), id)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPut:
		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.dir.UpdateRole(r.Context(), id, req.Name)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if err := a.dir.DeleteRole(r.Context(), id); err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"code":    http.StatusOK,
			"message": "Role deleted successfully",
		})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
