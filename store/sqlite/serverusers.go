package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"diskuto/backend"
	"diskuto/crypto"
	"diskuto/internal/apperr"
)

// ServerUser returns one registered root-of-trust user.
func (c *Connection) ServerUser(ctx context.Context, user crypto.UserID) (backend.ServerUser, bool, error) {
	row := c.conn.QueryRowContext(ctx, `SELECT notes, on_homepage FROM server_user WHERE user_id = ?`, user.Bytes())
	var notes string
	var onHomepage bool
	err := row.Scan(&notes, &onHomepage)
	if errors.Is(err, sql.ErrNoRows) {
		return backend.ServerUser{}, false, nil
	}
	if err != nil {
		return backend.ServerUser{}, false, apperr.Wrap(apperr.KindStorage, "reading server_user", err)
	}
	return backend.ServerUser{User: user, Notes: notes, OnHomepage: onHomepage}, true, nil
}

// ServerUsers streams every registered root-of-trust user.
func (c *Connection) ServerUsers(ctx context.Context, cb backend.RowCallback[backend.ServerUser]) error {
	rows, err := c.conn.QueryContext(ctx, `SELECT user_id, notes, on_homepage FROM server_user ORDER BY user_id`)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "querying server_users", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userBytes []byte
		var notes string
		var onHomepage bool
		if err := rows.Scan(&userBytes, &notes, &onHomepage); err != nil {
			return apperr.Wrap(apperr.KindStorage, "scanning server_user", err)
		}
		user, err := crypto.UserIDFromBytes(userBytes)
		if err != nil {
			return apperr.Wrap(apperr.KindIntegrity, "parsing stored user id", err)
		}
		more, err := cb(backend.ServerUser{User: user, Notes: notes, OnHomepage: onHomepage})
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return rows.Err()
}

// AddServerUser registers a root-of-trust user and seeds known_users with
// them plus everyone their current profile (if any) already follows.
func (c *Connection) AddServerUser(ctx context.Context, su backend.ServerUser) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO server_user (user_id, notes, on_homepage) VALUES (?, ?, ?)
			 ON CONFLICT (user_id) DO UPDATE SET notes = excluded.notes, on_homepage = excluded.on_homepage`,
			su.User.Bytes(), su.Notes, su.OnHomepage); err != nil {
			return apperr.Wrap(apperr.KindStorage, "upserting server_user", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO known_users (user_id) VALUES (?)`, su.User.Bytes()); err != nil {
			return apperr.Wrap(apperr.KindStorage, "seeding known_users with server_user", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO known_users (user_id)
			 SELECT followed_user_id FROM follow WHERE source_user_id = ?`, su.User.Bytes()); err != nil {
			return apperr.Wrap(apperr.KindStorage, "seeding known_users with follows", err)
		}
		return nil
	})
}

// RemoveServerUser deregisters a user and rebuilds known_users from
// scratch, since their removal may shrink the trust set in ways that are
// hard to compute incrementally (some other server-user's follow might
// have been the only other path to a now-orphaned user).
func (c *Connection) RemoveServerUser(ctx context.Context, user crypto.UserID) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM server_user WHERE user_id = ?`, user.Bytes()); err != nil {
			return apperr.Wrap(apperr.KindStorage, "deleting server_user", err)
		}
		return rebuildKnownUsers(ctx, tx)
	})
}

// UserKnown reports known_users membership directly.
func (c *Connection) UserKnown(ctx context.Context, user crypto.UserID) (bool, error) {
	var x int
	err := c.conn.QueryRowContext(ctx, `SELECT 1 FROM known_users WHERE user_id = ?`, user.Bytes()).Scan(&x)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.KindStorage, "checking known_users", err)
	}
	return true, nil
}

// rebuildKnownUsers recomputes the materialized known_users set as
// server_user ∪ (anyone a server_user follows), replacing its contents
// atomically within tx.
func rebuildKnownUsers(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM known_users`); err != nil {
		return apperr.Wrap(apperr.KindStorage, "clearing known_users", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO known_users (user_id) SELECT user_id FROM server_user`); err != nil {
		return apperr.Wrap(apperr.KindStorage, "seeding known_users from server_user", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO known_users (user_id)
		 SELECT f.followed_user_id FROM follow f JOIN server_user su ON su.user_id = f.source_user_id`); err != nil {
		return apperr.Wrap(apperr.KindStorage, "seeding known_users from follows", err)
	}
	return nil
}
