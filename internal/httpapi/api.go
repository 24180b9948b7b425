// Package httpapi is the HTTP layer of the directory service.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"orgdir.org/api/spec"
	"orgdir.org/internal/access"
	"orgdir.org/internal/directory"
	"orgdir.org/internal/obs"
)

// ReadyProbe reports backing-store readiness (a DB ping when one is wired).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API routes requests to the directory handlers behind the access gates.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	dir        *directory.Service
	engine     *access.Engine

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, dir *directory.Service, engine *access.Engine) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		dir:        dir,
		engine:     engine,
		rateBurst:  40,
		ratePerSec: 20,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// Users: every route passes the access-control gate first.
	a.mux.Handle("/users", a.withAccessControl(http.HandlerFunc(a.handleUsers)))
	a.mux.Handle("/users/", a.withAccessControl(http.HandlerFunc(a.handleUserResource)))

	// Roles and structures: plain CRUD, no gate.
	a.mux.HandleFunc("/roles", a.handleRoles)
	a.mux.HandleFunc("/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/structures", a.handleStructures)
	a.mux.HandleFunc("/structures/", a.handleStructureResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler chain for the server.
func (a *API) Handler() http.Handler {
	h := obs.Instrument(a.mux)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "orgdir-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}
