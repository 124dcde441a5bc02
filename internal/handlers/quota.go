package handlers

import (
	"context"

	"github.com/serroba/admission-go/internal/ratelimit"
	"go.uber.org/zap"
)

// QuotaAdmin is the slice of the rate limiter the admin surface needs.
type QuotaAdmin interface {
	GetQuota(ctx context.Context, subject string) ratelimit.QuotaSnapshot
	ResetLimit(ctx context.Context, subject string)
	ListActiveKeys(ctx context.Context, pattern string) []string
}

// QuotaHandler exposes quota inspection and reset operations.
type QuotaHandler struct {
	admin  QuotaAdmin
	logger *zap.Logger
}

// NewQuotaHandler creates a new quota admin handler.
func NewQuotaHandler(admin QuotaAdmin, logger *zap.Logger) *QuotaHandler {
	return &QuotaHandler{
		admin:  admin,
		logger: logger,
	}
}

// GetQuota reads a subject's remaining budget. The read never consumes a
// token; an unknown subject reports the full configured limit.
func (h *QuotaHandler) GetQuota(ctx context.Context, req *QuotaRequest) (*QuotaResponse, error) {
	snapshot := h.admin.GetQuota(ctx, req.Subject)

	resp := &QuotaResponse{}
	resp.Body.Subject = req.Subject
	resp.Body.Remaining = snapshot.Remaining
	resp.Body.ResetAtMillis = snapshot.ResetAtMillis

	return resp, nil
}

// ResetQuota deletes a subject's bucket so its next request starts with full
// capacity. Reset failures are swallowed by the limiter, so this always
// answers success.
func (h *QuotaHandler) ResetQuota(ctx context.Context, req *QuotaRequest) (*struct{}, error) {
	meta := RequestMetaFromContext(ctx)
	h.logger.Info("rate limit reset requested",
		zap.String("subject", req.Subject),
		zap.String("client_ip", meta.ClientIP),
		zap.String("request_id", meta.RequestID))

	h.admin.ResetLimit(ctx, req.Subject)

	return nil, nil
}

// ListKeys enumerates live bucket keys. The listing is a monitoring aid:
// it scans a live keyspace, so it is neither atomic nor a reliable basis
// for capacity planning.
func (h *QuotaHandler) ListKeys(ctx context.Context, req *ListKeysRequest) (*ListKeysResponse, error) {
	keys := h.admin.ListActiveKeys(ctx, req.Pattern)

	resp := &ListKeysResponse{}
	resp.Body.Keys = keys
	resp.Body.Count = len(keys)

	return resp, nil
}
