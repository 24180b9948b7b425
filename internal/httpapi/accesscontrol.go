package httpapi

import (
	"errors"
	"net/http"

	"orgdir.org/internal/access"
	"orgdir.org/internal/obs"
)

// credentialHeader carries the opaque caller credential: a string-encoded
// numeric user id.
const credentialHeader = "user-id"

// withAccessControl resolves the acting principal before any /users handler
// runs. A missing credential is the only 401; a credential that fails to
// resolve is answered exactly like any internal fault, so the header cannot be
// used to probe which user ids exist.
func (a *API) withAccessControl(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := a.engine.Authenticate(r.Context(), r.Header.Get(credentialHeader))
		if err != nil {
			if errors.Is(err, access.ErrUnauthenticated) {
				writeError(w, r, http.StatusUnauthorized, "Unauthorized")
				return
			}
			obs.LogError("principal resolution failed", map[string]any{
				"request_id": RequestIDFromContext(r.Context()),
				"path":       r.URL.Path,
				"error":      err.Error(),
			})
			writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		ctx := access.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principalOrFail fetches the principal attached by withAccessControl.
func principalOrFail(w http.ResponseWriter, r *http.Request) (access.Principal, bool) {
	principal, ok := access.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return access.Principal{}, false
	}
	return principal, true
}
