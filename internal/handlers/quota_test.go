package handlers_test

import (
	"context"
	"testing"

	"github.com/serroba/admission-go/internal/handlers"
	"github.com/serroba/admission-go/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockQuotaAdmin records admin calls and serves canned snapshots.
type mockQuotaAdmin struct {
	snapshot   ratelimit.QuotaSnapshot
	keys       []string
	gotSubject string
	gotPattern string
	resets     []string
}

func (m *mockQuotaAdmin) GetQuota(_ context.Context, subject string) ratelimit.QuotaSnapshot {
	m.gotSubject = subject

	return m.snapshot
}

func (m *mockQuotaAdmin) ResetLimit(_ context.Context, subject string) {
	m.resets = append(m.resets, subject)
}

func (m *mockQuotaAdmin) ListActiveKeys(_ context.Context, pattern string) []string {
	m.gotPattern = pattern

	return m.keys
}

func TestQuotaHandler_GetQuota(t *testing.T) {
	t.Run("reports the subject's snapshot", func(t *testing.T) {
		admin := &mockQuotaAdmin{snapshot: ratelimit.QuotaSnapshot{
			Remaining:     42,
			ResetAtMillis: 1700000060000,
		}}
		handler := handlers.NewQuotaHandler(admin, zap.NewNop())

		resp, err := handler.GetQuota(context.Background(), &handlers.QuotaRequest{Subject: "user_123"})

		require.NoError(t, err)
		assert.Equal(t, "user_123", admin.gotSubject)
		assert.Equal(t, "user_123", resp.Body.Subject)
		assert.Equal(t, int64(42), resp.Body.Remaining)
		assert.Equal(t, int64(1700000060000), resp.Body.ResetAtMillis)
	})
}

func TestQuotaHandler_ResetQuota(t *testing.T) {
	t.Run("resets the named subject", func(t *testing.T) {
		admin := &mockQuotaAdmin{}
		handler := handlers.NewQuotaHandler(admin, zap.NewNop())

		resp, err := handler.ResetQuota(context.Background(), &handlers.QuotaRequest{Subject: "user_123"})

		require.NoError(t, err)
		assert.Nil(t, resp)
		assert.Equal(t, []string{"user_123"}, admin.resets)
	})

	t.Run("succeeds without request metadata in context", func(t *testing.T) {
		admin := &mockQuotaAdmin{}
		handler := handlers.NewQuotaHandler(admin, zap.NewNop())

		_, err := handler.ResetQuota(context.Background(), &handlers.QuotaRequest{Subject: "user_123"})

		assert.NoError(t, err)
	})
}

func TestQuotaHandler_ListKeys(t *testing.T) {
	t.Run("returns keys with a count", func(t *testing.T) {
		admin := &mockQuotaAdmin{keys: []string{"rate_limit:a", "rate_limit:b"}}
		handler := handlers.NewQuotaHandler(admin, zap.NewNop())

		resp, err := handler.ListKeys(context.Background(), &handlers.ListKeysRequest{Pattern: "rate_limit:*"})

		require.NoError(t, err)
		assert.Equal(t, "rate_limit:*", admin.gotPattern)
		assert.Equal(t, []string{"rate_limit:a", "rate_limit:b"}, resp.Body.Keys)
		assert.Equal(t, 2, resp.Body.Count)
	})

	t.Run("empty keyspace yields zero count", func(t *testing.T) {
		admin := &mockQuotaAdmin{}
		handler := handlers.NewQuotaHandler(admin, zap.NewNop())

		resp, err := handler.ListKeys(context.Background(), &handlers.ListKeysRequest{})

		require.NoError(t, err)
		assert.Empty(t, resp.Body.Keys)
		assert.Zero(t, resp.Body.Count)
	})
}
