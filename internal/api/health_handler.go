package api

import (
	"context"
	"net/http"
	"time"

	"github.com/phrazzld/caro-api/internal/api/shared"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string `json:"status"`
}

// NewHealthHandler returns a handler answering 200 UP when every check
// passes and 503 DOWN otherwise.
func NewHealthHandler(checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		for _, check := range checks {
			if err := check(ctx); err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable,
					shared.CodeInternalError, "Service unavailable", err)
				return
			}
		}
		shared.RespondWithData(w, r, http.StatusOK, HealthStatus{Status: "UP"})
	}
}
