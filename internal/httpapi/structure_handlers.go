package httpapi

import "net/http"

type structureRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parentId"`
}

func (a *API) handleStructures(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		structures, err := a.dir.ListStructures(r.Context())
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, structures)
	case http.MethodPost:
		var req structureRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		structure, err := a.dir.CreateStructure(r.Context(), req.Name, req.ParentID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, structure)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleStructureResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r, "/structures/")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		structure, err := a.dir.StructureByID(r.Context(), id)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, structure)
	case http.MethodPut:
		var req structureRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		structure, err := a.dir.UpdateStructure(r.Context(), id, req.Name, req.ParentID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, structure)
	case http.MethodDelete:
		if err := a.dir.DeleteStructure(r.Context(), id); err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"code":    http.StatusOK,
			"message": "Structure deleted successfully",
		})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
