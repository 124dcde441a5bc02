package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/admission-go/internal/ratelimit"
)

// RegisterRoutes registers the health and quota admin routes, with
// per-endpoint admission overrides carried as operation metadata.
func RegisterRoutes(api huma.API, quota *QuotaHandler, health *HealthHandler) {
	// GET /health - liveness probes should never burn quota
	huma.Register(api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"Health"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, health.Check)

	// GET /rate-limits/{subject} - quota inspection, default budget
	huma.Register(api, huma.Operation{
		OperationID: "get-quota",
		Method:      http.MethodGet,
		Path:        "/rate-limits/{subject}",
		Summary:     "Read a subject's remaining quota",
		Description: "Reports remaining tokens and reset time without consuming quota.",
		Tags:        []string{"Rate limits"},
	}, quota.GetQuota)

	// DELETE /rate-limits/{subject} - administrative reset, tight budget
	huma.Register(api, huma.Operation{
		OperationID:   "reset-quota",
		Method:        http.MethodDelete,
		Path:          "/rate-limits/{subject}",
		Summary:       "Reset a subject's quota",
		Description:   "Deletes the subject's bucket so its next request starts with full capacity.",
		Tags:          []string{"Rate limits"},
		DefaultStatus: http.StatusNoContent,
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Operation: "admin_reset",
				Limit:     10,
				Window:    time.Minute,
			},
		},
	}, quota.ResetQuota)

	// GET /rate-limits - key listing scans the store, keep it rare
	huma.Register(api, huma.Operation{
		OperationID: "list-rate-limit-keys",
		Method:      http.MethodGet,
		Path:        "/rate-limits",
		Summary:     "List active bucket keys",
		Description: "Non-atomic scan of live bucket keys. Monitoring aid only.",
		Tags:        []string{"Rate limits"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Operation: "admin_list",
				Limit:     6,
				Window:    time.Minute,
			},
		},
	}, quota.ListKeys)
}
