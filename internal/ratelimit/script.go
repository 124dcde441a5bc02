package ratelimit

import (
	"context"
	_ "embed"
	"sync"

	"github.com/redis/go-redis/v9"
)

//go:embed token_bucket.lua
var tokenBucketSource string

// scriptManager uploads the token bucket script once and remembers the SHA
// handle Redis derives from it, so each admission call ships the cheap
// EVALSHA reference instead of the full source. A Redis restart flushes the
// server-side script cache; run reloads and retries exactly once when the
// store reports the handle unknown, and anything past that surfaces to the
// caller as a connectivity failure.
type scriptManager struct {
	mu  sync.Mutex
	sha string
}

// ensureLoaded uploads the script unless a handle is already cached.
func (m *scriptManager) ensureLoaded(ctx context.Context, client *redis.Client) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sha != "" {
		return m.sha, nil
	}

	sha, err := client.ScriptLoad(ctx, tokenBucketSource).Result()
	if err != nil {
		return "", err
	}
	m.sha = sha

	return sha, nil
}

// forget drops the cached handle so the next run re-uploads.
func (m *scriptManager) forget() {
	m.mu.Lock()
	m.sha = ""
	m.mu.Unlock()
}

// run executes the script under the cached handle, transparently reloading it
// once if the store no longer knows it.
func (m *scriptManager) run(ctx context.Context, client *redis.Client, keys []string, args ...any) (any, error) {
	sha, err := m.ensureLoaded(ctx, client)
	if err != nil {
		return nil, err
	}

	res, err := client.EvalSha(ctx, sha, keys, args...).Result()
	if err == nil || !redis.HasErrorPrefix(err, "NOSCRIPT") {
		return res, err
	}

	m.forget()

	sha, err = m.ensureLoaded(ctx, client)
	if err != nil {
		return nil, err
	}

	return client.EvalSha(ctx, sha, keys, args...).Result()
}
