package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultLimit and DefaultWindow form the admission policy applied when
	// callers do not override it per call.
	DefaultLimit  = 60
	DefaultWindow = time.Minute

	defaultTimeout = 5 * time.Second

	// ttlMargin pads the bucket TTL past the window. TTL expiry is the sole
	// garbage collection for idle buckets; an expired bucket reinitializes
	// with full capacity, which is an accepted side effect of that strategy.
	ttlMargin = time.Minute
)

// ErrInvalidWindow reports a non-positive window, which has no meaningful
// refill rate and is rejected before anything reaches the store.
var ErrInvalidWindow = errors.New("ratelimit: window must be positive")

// Result is the outcome of a single admission check.
type Result struct {
	Allowed       bool
	Remaining     int64
	ResetAtMillis int64

	// RetryAfterSeconds is set only when Allowed is false: the estimated
	// seconds until one whole token accrues, never exceeding the window.
	RetryAfterSeconds int64
}

// QuotaSnapshot is a read-only projection of a bucket. Producing one never
// mutates stored state.
type QuotaSnapshot struct {
	Remaining     int64
	ResetAtMillis int64
}

// Limiter is the admission contract consumed by HTTP middleware and
// per-operation guards.
type Limiter interface {
	// CheckLimit runs one admission check for subject under the default
	// policy, consuming one token when the request is admitted.
	CheckLimit(ctx context.Context, subject string) Result

	// CheckLimitWith is CheckLimit with an explicit policy. The only
	// possible error is invalid input; store failures fail open and are
	// reported through the Result alone.
	CheckLimitWith(ctx context.Context, subject string, limit int64, window time.Duration) (Result, error)

	// Defaults reports the limit and window CheckLimit applies.
	Defaults() (limit int64, window time.Duration)
}

// RedisLimiter enforces per-subject token buckets whose state lives in
// Redis, so a single budget holds across every process sharing the store.
// The refill-and-consume cycle runs as one Lua script inside Redis; no
// client-side read-then-write ever touches bucket state.
//
// All connectivity failures fail open: CheckLimit admits the request,
// GetQuota reports a full budget, ResetLimit and Close log and return.
// Denial is the only condition a caller ever surfaces to end users.
type RedisLimiter struct {
	conn     *conn
	scripts  *scriptManager
	limit    int64
	window   time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	recorder MetricsRecorder
}

var _ Limiter = (*RedisLimiter)(nil)

// Option configures a RedisLimiter.
type Option func(*RedisLimiter)

// WithDefaults sets the limit and window applied by CheckLimit and GetQuota.
func WithDefaults(limit int64, window time.Duration) Option {
	return func(l *RedisLimiter) {
		l.limit = limit
		l.window = window
	}
}

// WithTimeout bounds each store round trip. On expiry the call is treated as
// a connectivity failure and the fail-open policy applies.
func WithTimeout(timeout time.Duration) Option {
	return func(l *RedisLimiter) {
		l.timeout = timeout
	}
}

// WithLogger sets the logger used for fail-open and administrative warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(l *RedisLimiter) {
		l.logger = logger
	}
}

// WithRecorder injects a metrics backend.
func WithRecorder(recorder MetricsRecorder) Option {
	return func(l *RedisLimiter) {
		l.recorder = recorder
	}
}

// NewRedisLimiter wraps an existing Redis client. Construction never touches
// the network: the connection is verified lazily on first use, and the
// admission script is uploaded eagerly as soon as a connection exists.
func NewRedisLimiter(client *redis.Client, opts ...Option) (*RedisLimiter, error) {
	l := &RedisLimiter{
		scripts:  &scriptManager{},
		limit:    DefaultLimit,
		window:   DefaultWindow,
		timeout:  defaultTimeout,
		logger:   zap.NewNop(),
		recorder: NoOpRecorder{},
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.window <= 0 {
		return nil, ErrInvalidWindow
	}
	if l.limit < 0 {
		return nil, fmt.Errorf("ratelimit: negative limit %d", l.limit)
	}

	l.conn = newConn(client, l.logger, func(ctx context.Context, c *redis.Client) {
		if _, err := l.scripts.ensureLoaded(ctx, c); err != nil {
			l.logger.Warn("token bucket script upload failed", zap.Error(err))
		}
	})

	return l, nil
}

// Defaults reports the limit and window CheckLimit applies.
func (l *RedisLimiter) Defaults() (int64, time.Duration) {
	return l.limit, l.window
}

// CheckLimit runs one admission check for subject under the default policy.
func (l *RedisLimiter) CheckLimit(ctx context.Context, subject string) Result {
	res, _ := l.CheckLimitWith(ctx, subject, l.limit, l.window)
	return res
}

// CheckLimitWith checks subject against an explicit limit and window,
// consuming one token when admitted. A limit of zero always denies. The only
// possible error is an invalid window; when the store is unreachable the
// check fails open and the Result admits the request with zero remaining.
func (l *RedisLimiter) CheckLimitWith(ctx context.Context, subject string, limit int64, window time.Duration) (Result, error) {
	if window <= 0 {
		return Result{}, ErrInvalidWindow
	}

	start := time.Now()
	key := Key(subject)

	res, err := l.consume(ctx, key, limit, window)
	if err != nil {
		l.conn.markDown()
		l.logger.Warn("rate limit store unavailable, failing open",
			zap.String("key", key),
			zap.Error(err))
		l.recorder.Add("ratelimit.fail_open", 1, nil)

		return Result{
			Allowed:       true,
			Remaining:     0,
			ResetAtMillis: time.Now().Add(window).UnixMilli(),
		}, nil
	}

	l.recorder.Observe("ratelimit.check_ms", float64(time.Since(start).Milliseconds()), nil)
	if !res.Allowed {
		l.recorder.Add("ratelimit.denied", 1, nil)
	}

	return res, nil
}

// consume executes the atomic refill-and-consume procedure for key.
func (l *RedisLimiter) consume(ctx context.Context, key string, limit int64, window time.Duration) (Result, error) {
	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	client, err := l.conn.ensure(cctx)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UnixMilli()
	ttl := window + ttlMargin

	raw, err := l.scripts.run(cctx, client, []string{key},
		limit, window.Milliseconds(), now, ttl.Milliseconds())
	if err != nil {
		return Result{}, err
	}

	return parseScriptReply(raw)
}

// parseScriptReply decodes the {allowed, remaining, reset_at, retry_after}
// array returned by token_bucket.lua.
func parseScriptReply(raw any) (Result, error) {
	values, ok := raw.([]any)
	if !ok || len(values) != 4 {
		return Result{}, fmt.Errorf("unexpected script reply %T", raw)
	}

	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	resetAt, _ := values[2].(int64)
	retryAfter, _ := values[3].(int64)

	res := Result{
		Allowed:       allowed == 1,
		Remaining:     remaining,
		ResetAtMillis: resetAt,
	}
	if !res.Allowed {
		res.RetryAfterSeconds = retryAfter
	}

	return res, nil
}

// GetQuota reports the remaining budget for subject under the default policy
// without consuming a token. Absent keys, expired buckets, and undecodable
// state all report the full limit with a reset time of now, as does any read
// failure, so the caller never blocks on the store.
func (l *RedisLimiter) GetQuota(ctx context.Context, subject string) QuotaSnapshot {
	now := time.Now().UnixMilli()
	full := QuotaSnapshot{Remaining: l.limit, ResetAtMillis: now}

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	client, err := l.conn.ensure(cctx)
	if err != nil {
		l.logger.Warn("quota read failed, reporting full limit",
			zap.String("subject", subject),
			zap.Error(err))
		return full
	}

	raw, err := client.Get(cctx, Key(subject)).Result()
	if errors.Is(err, redis.Nil) {
		return full
	}
	if err != nil {
		l.conn.markDown()
		l.logger.Warn("quota read failed, reporting full limit",
			zap.String("subject", subject),
			zap.Error(err))
		return full
	}

	st, err := DecodeState(raw)
	if err != nil {
		// The next check reinitializes this bucket; report it as absent.
		l.logger.Warn("discarding malformed bucket state",
			zap.String("subject", subject),
			zap.Error(err))
		return full
	}

	elapsed := now - st.LastRefillMillis
	if elapsed < 0 {
		elapsed = 0
	}

	available := st.Tokens + float64(elapsed)*float64(l.limit)/float64(l.window.Milliseconds())
	if available > float64(l.limit) {
		available = float64(l.limit)
	}

	return QuotaSnapshot{
		Remaining:     int64(math.Floor(available)),
		ResetAtMillis: st.LastRefillMillis + l.window.Milliseconds(),
	}
}

// ResetLimit deletes the bucket for subject so its next check starts with a
// full budget. Failures are logged and swallowed; an administrative reset
// must never crash the flow that requested it.
func (l *RedisLimiter) ResetLimit(ctx context.Context, subject string) {
	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	client, err := l.conn.ensure(cctx)
	if err != nil {
		l.logger.Warn("rate limit reset skipped, store unavailable",
			zap.String("subject", subject),
			zap.Error(err))
		return
	}

	if err := client.Del(cctx, Key(subject)).Err(); err != nil {
		l.conn.markDown()
		l.logger.Warn("rate limit reset failed",
			zap.String("subject", subject),
			zap.Error(err))
	}
}

// ListActiveKeys returns bucket keys matching pattern, defaulting to
// KeyPrefix + "*" when pattern is empty.
//
// The scan is not atomic: keys may appear or expire while it runs, and
// enumerating a large live keyspace is itself expensive. Treat the output as
// a monitoring aid, never as a source of truth for capacity planning. Scan
// failures are logged and whatever was collected so far is returned.
func (l *RedisLimiter) ListActiveKeys(ctx context.Context, pattern string) []string {
	if pattern == "" {
		pattern = KeyPrefix + "*"
	}

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	client, err := l.conn.ensure(cctx)
	if err != nil {
		l.logger.Warn("key listing skipped, store unavailable", zap.Error(err))
		return nil
	}

	var keys []string

	iter := client.Scan(cctx, 0, pattern, 0).Iterator()
	for iter.Next(cctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		l.conn.markDown()
		l.logger.Warn("key listing incomplete", zap.Error(err))
	}

	return keys
}

// Close releases the store connection. Safe to call more than once;
// close-time errors are logged and swallowed.
func (l *RedisLimiter) Close() {
	l.conn.close()
}

// Shutdown implements do.Shutdownable so the injector tears the limiter down
// with the rest of the container.
func (l *RedisLimiter) Shutdown() error {
	l.Close()
	return nil
}
