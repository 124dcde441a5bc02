package ratelimit

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// MetadataKey is the operation metadata key middleware checks for
// per-endpoint admission overrides.
const MetadataKey = "rateLimit"

// EndpointConfig overrides admission control for a single operation.
// Attach it to a huma operation via the Metadata field under MetadataKey.
type EndpointConfig struct {
	// Operation names the budget. The bucket key becomes
	// "rate_limit:<subject>:<operation>", so the override tracks its own
	// bucket instead of draining the subject's whole-service budget.
	Operation string

	// Limit and Window define the override policy. A Limit of zero always
	// denies.
	Limit  int64
	Window time.Duration

	// Disabled skips admission control for the endpoint entirely.
	Disabled bool
}

// GetEndpointConfig extracts the EndpointConfig from operation metadata, if
// present.
func GetEndpointConfig(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}
