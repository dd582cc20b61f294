package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// Pool is the bounded set of connections shared by all requests. Its size is
// fixed by the DatabaseConfig the underlying *sql.DB was opened with.
type Pool struct {
	db *sql.DB
}

func NewPool(db *sql.DB) *Pool {
	return &Pool{db: db}
}

// DB exposes the pool for single-statement reads and writes that do not need
// a dedicated connection.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Acquire takes one connection out of the pool for exclusive use. It blocks
// while the pool is exhausted. The caller must Release it on every path.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	c, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &Conn{conn: c}, nil
}

func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}

func (p *Pool) Close() error {
	return p.db.Close()
}

// Conn is a dedicated pooled connection. Statements issued through it, and
// through transactions begun on it, all run on the same server session.
type Conn struct {
	conn *sql.Conn
	once sync.Once
	err  error
}

func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.conn.BeginTx(ctx, opts)
}

func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

// Release returns the connection to the pool. Calling it more than once is
// harmless; only the first call has an effect.
func (c *Conn) Release() error {
	c.once.Do(func() {
		if err := c.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			c.err = fmt.Errorf("release connection: %w", err)
		}
	})
	return c.err
}
