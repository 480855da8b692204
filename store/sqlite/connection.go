package sqlite

import (
	"context"
	"database/sql"

	"diskuto/backend"
	"diskuto/internal/apperr"
)

// Connection is one checked-out pool connection, implementing
// backend.Backend. It also keeps a reference to the shared pool so
// GetContents can open a second, independent connection for a blob read
// that may outlive the request that created this Connection.
type Connection struct {
	conn *sql.Conn
	db   *sql.DB
}

var _ backend.Backend = (*Connection)(nil)

// Close releases the pooled connection back to the pool.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// withTx runs fn inside a transaction on this connection, committing on nil
// error and rolling back otherwise. original_source's ingest algorithm runs
// as a single SQLite savepoint; a transaction scoped to one connection's
// single in-flight statement serves the same purpose here.
func (c *Connection) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "beginning transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindStorage, "committing transaction", err)
	}
	return nil
}
