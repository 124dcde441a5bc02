package ratelimit_test

import (
	"testing"

	"github.com/serroba/admission-go/internal/ratelimit"
	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		assert.Equal(t, ratelimit.Key("user_123"), ratelimit.Key("user_123"))
	})

	t.Run("applies the shared prefix", func(t *testing.T) {
		assert.Equal(t, "rate_limit:user_123", ratelimit.Key("user_123"))
	})

	t.Run("distinct subjects never collide", func(t *testing.T) {
		assert.NotEqual(t, ratelimit.Key("user_1"), ratelimit.Key("user_2"))
	})
}

func TestOperationKey(t *testing.T) {
	t.Run("scopes the bucket to the operation", func(t *testing.T) {
		assert.Equal(t, "rate_limit:user_1:search", ratelimit.OperationKey("user_1", "search"))
	})

	t.Run("stays distinct from the whole-subject key", func(t *testing.T) {
		assert.NotEqual(t, ratelimit.Key("user_1"), ratelimit.OperationKey("user_1", "search"))
	})
}
