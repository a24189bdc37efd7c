package storage

import (
	"context"
	"fmt"
	"log/slog"

	"msgboard/domain"
	"msgboard/errors"
)

var _ DocumentWriter = (*Client)(nil)

// Client writes documents through the pool. Every write acquires a
// connection, uses it for a single insert and hands it back, so a slow
// store surfaces as ErrPoolExhausted instead of unbounded goroutines.
type Client struct {
	pool *Pool
	log  *slog.Logger
}

func NewClient(pool *Pool, log *slog.Logger) *Client {
	return &Client{pool: pool, log: log}
}

// Write appends one document to the store.
func (c *Client) Write(ctx context.Context, doc domain.Document) error {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	if err := conn.Insert(ctx, doc); err != nil {
		// A failed insert may leave the connection in an unknown
		// state, so it is closed rather than recycled.
		c.pool.Discard(conn)
		return fmt.Errorf("%w: inserting document: %v", errors.ErrPersistence, err)
	}

	c.pool.Release(conn)
	return nil
}
