// Package handlers implements the HTTP surface for the pixie image gateway:
// one file per concern, composing the domain packages (imagegen, credit,
// purchase, oauthflow, repository) behind huma-typed request/response
// structs, following the same per-handler-struct convention as the rest of
// the codebase.
package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/http/mw"
	"github.com/guitaripod/pixie/internal/models"
	"github.com/guitaripod/pixie/internal/version"
)

// getUser extracts the authenticated user attached by mw.Auth, or nil on
// routes that run without it (mw.OptionalAuth, or no auth middleware at all).
func getUser(ctx context.Context) *models.User {
	return mw.GetUser(ctx)
}

// humaErr translates the gateway's closed error taxonomy into a huma status
// error carrying the same client-safe message and HTTP status.
func humaErr(err error) error {
	ae := apperror.As(err)
	return huma.NewError(ae.HTTPStatus(), ae.Message)
}

// clampPerPage enforces the [1,100] page-size bound used by every paginated endpoint.
func clampPerPage(perPage, defaultValue int) int {
	if perPage <= 0 {
		return defaultValue
	}
	if perPage > 100 {
		return 100
	}
	return perPage
}

func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// HealthCheckOutput is the public health-check response body.
type HealthCheckOutput struct {
	Body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
}

// HealthCheck is the public, documented health endpoint.
func HealthCheck(ctx context.Context, input *struct{}) (*HealthCheckOutput, error) {
	out := &HealthCheckOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = version.Get().Short()
	return out, nil
}

// LivezOutput is the Kubernetes liveness probe response body.
type LivezOutput struct {
	Body struct {
		Status string `json:"status" doc:"Liveness status"`
	}
}

// Livez is the Kubernetes liveness probe; it never touches the database.
func Livez(ctx context.Context, input *struct{}) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// DBPinger is the narrow interface Readyz needs from *sql.DB.
type DBPinger interface {
	Ping() error
}

// ReadyzOutput is the Kubernetes readiness probe response body.
type ReadyzOutput struct {
	Body struct {
		Status string `json:"status" doc:"Readiness status"`
	}
}

// ReadyzHandler gates readiness on the database connection being reachable.
type ReadyzHandler struct {
	db DBPinger
}

// NewReadyzHandler creates a readiness handler bound to db.
func NewReadyzHandler(db DBPinger) *ReadyzHandler {
	return &ReadyzHandler{db: db}
}

// Readyz reports 503 if the database ping fails.
func (h *ReadyzHandler) Readyz(ctx context.Context, input *struct{}) (*ReadyzOutput, error) {
	if err := h.db.Ping(); err != nil {
		return nil, huma.Error503ServiceUnavailable("database unavailable: " + err.Error())
	}
	out := &ReadyzOutput{}
	out.Body.Status = "ok"
	return out, nil
}
