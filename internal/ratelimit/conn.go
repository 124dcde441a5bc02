package ratelimit

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrClosed is returned when the limiter is used after Close.
var ErrClosed = errors.New("ratelimit: limiter closed")

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// conn tracks the health of the shared Redis connection. The connection is
// verified lazily on first use rather than at construction, so a slow or
// down store never blocks process startup. Any detected transport error
// drops the state back to disconnected and the next call re-verifies.
type conn struct {
	mu          sync.Mutex
	client      *redis.Client
	state       connState
	closed      bool
	logger      *zap.Logger
	onConnected func(ctx context.Context, client *redis.Client)
}

func newConn(client *redis.Client, logger *zap.Logger, onConnected func(ctx context.Context, client *redis.Client)) *conn {
	return &conn{
		client:      client,
		logger:      logger,
		onConnected: onConnected,
	}
}

// ensure returns a client that has answered a ping since the last detected
// transport error, running the onConnected hook on each fresh connect.
func (c *conn) ensure(ctx context.Context) (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.state == stateConnected {
		return c.client, nil
	}

	c.state = stateConnecting
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.state = stateDisconnected
		return nil, err
	}
	c.state = stateConnected

	if c.onConnected != nil {
		c.onConnected(ctx, c.client)
	}

	return c.client, nil
}

// markDown records a transport error so the next call re-verifies the
// connection before trusting it.
func (c *conn) markDown() {
	c.mu.Lock()
	if !c.closed {
		c.state = stateDisconnected
	}
	c.mu.Unlock()
}

// close tears the connection down. Safe to call more than once; close-time
// errors are logged and swallowed.
func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.state = stateDisconnected

	if err := c.client.Close(); err != nil {
		c.logger.Warn("redis close failed", zap.Error(err))
	}
}
