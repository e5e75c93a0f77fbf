package database

import (
	"context"
	"fmt"
	"time"
)

// Health reports the database connection pool's liveness and basic pool
// stats. The HTTP health endpoint does not consult it.
type Health struct {
	OK          bool
	OpenConns   int
	InUseConns  int
	IdleConns   int
	PingLatency time.Duration
	Error       string
}

// CheckHealth pings the database and reports pool statistics.
func (c *Client) CheckHealth(ctx context.Context) Health {
	start := time.Now()
	err := c.db.PingContext(ctx)
	latency := time.Since(start)

	stats := c.db.Stats()
	h := Health{
		OK:          err == nil,
		OpenConns:   stats.OpenConnections,
		InUseConns:  stats.InUse,
		IdleConns:   stats.Idle,
		PingLatency: latency,
	}
	if err != nil {
		h.Error = fmt.Sprintf("ping failed: %v", err)
	}
	return h
}

// Close releases the ent client and the underlying connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}
