package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"diskuto/backend"
	"diskuto/crypto"
	"diskuto/internal/apperr"
	"diskuto/internal/metrics"
	"diskuto/model"
)

// SaveUserItem runs the full ingest algorithm in one transaction: insert the
// item row, then update whatever derived table its kind implies (profile +
// follow, reply, or attachment manifest), refreshing known_users if a
// server-user's own profile changed its follow list. A duplicate
// (user, signature) is not an error: the INSERT OR IGNORE affects zero rows
// and every downstream step is itself idempotent, so re-running it is safe.
func (c *Connection) SaveUserItem(ctx context.Context, row backend.ItemRow, item model.Item) error {
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO item (user_id, signature, unix_utc_ms, received_utc_ms, item_bytes)
			 VALUES (?, ?, ?, ?, ?)`,
			row.User.Bytes(), row.Signature.Bytes(), row.Timestamp.UnixUTCMillis, row.Received.UnixUTCMillis, row.ItemBytes)
		if err != nil {
			return apperr.Wrap(apperr.KindStorage, "inserting item row", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return apperr.Wrap(apperr.KindStorage, "reading rows affected", err)
		}
		duplicate := affected == 0

		switch item.Kind {
		case model.KindProfile:
			if err := updateProfile(ctx, tx, row.User, row.Signature, item.Timestamp, item.Profile); err != nil {
				return err
			}
		case model.KindComment:
			if err := saveCommentReply(ctx, tx, row.User, row.Signature, item.Comment.ReplyTo); err != nil {
				return err
			}
		case model.KindPost:
			if err := indexAttachments(ctx, tx, row.User, row.Signature, item.Post.Attachments); err != nil {
				return err
			}
		}

		if duplicate {
			metrics.ItemsIngested.WithLabelValues("duplicate").Inc()
		} else {
			metrics.ItemsIngested.WithLabelValues("accepted").Inc()
		}
		return nil
	})
	return err
}

// updateProfile applies the never-replace-newer-with-older rule: a profile
// update is only written if it's at least as new as the one on file, so a
// late-arriving stale copy from a lagging peer can't clobber a newer one.
func updateProfile(ctx context.Context, tx *sql.Tx, user crypto.UserID, sig crypto.Signature, ts model.Timestamp, profile *model.Profile) error {
	var existingMs int64
	err := tx.QueryRowContext(ctx, `SELECT unix_utc_ms FROM profile WHERE user_id = ?`, user.Bytes()).Scan(&existingMs)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// no existing profile, always accept
	case err != nil:
		return apperr.Wrap(apperr.KindStorage, "reading existing profile", err)
	default:
		if ts.UnixUTCMillis < existingMs {
			return nil
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO profile (user_id, signature, unix_utc_ms, display_name) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET signature = excluded.signature, unix_utc_ms = excluded.unix_utc_ms, display_name = excluded.display_name`,
		user.Bytes(), sig.Bytes(), ts.UnixUTCMillis, profile.DisplayName); err != nil {
		return apperr.Wrap(apperr.KindStorage, "upserting profile", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM follow WHERE source_user_id = ?`, user.Bytes()); err != nil {
		return apperr.Wrap(apperr.KindStorage, "clearing old follows", err)
	}
	var isServerUser bool
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM server_user WHERE user_id = ?`, user.Bytes()).Scan(new(int)); err == nil {
		isServerUser = true
	} else if !errors.Is(err, sql.ErrNoRows) {
		return apperr.Wrap(apperr.KindStorage, "checking server_user membership", err)
	}

	for _, f := range profile.Follows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO follow (source_user_id, followed_user_id, display_name) VALUES (?, ?, ?)`,
			user.Bytes(), f.User.Bytes(), f.DisplayName); err != nil {
			return apperr.Wrap(apperr.KindStorage, "inserting follow", err)
		}
	}

	// A server-user's follow set just changed shape (edges were both added
	// and removed above), so known_users must be refreshed the same way
	// RemoveServerUser does: a plain INSERT can only grow the set, never
	// shrink it, and a user dropped from this follow list may have had no
	// other path into known_users.
	if isServerUser {
		if err := rebuildKnownUsers(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func saveCommentReply(ctx context.Context, tx *sql.Tx, user crypto.UserID, sig crypto.Signature, to model.ItemRef) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO reply (from_user_id, from_signature, to_user_id, to_signature) VALUES (?, ?, ?, ?)`,
		user.Bytes(), sig.Bytes(), to.User.Bytes(), to.Signature.Bytes()); err != nil {
		return apperr.Wrap(apperr.KindStorage, "inserting reply row", err)
	}
	return nil
}

func indexAttachments(ctx context.Context, tx *sql.Tx, user crypto.UserID, sig crypto.Signature, attachments []model.Attachment) error {
	for _, a := range attachments {
		if strings.ContainsAny(a.Name, `/\`) {
			return apperr.New(apperr.KindInvalidInput, "attachment name must not contain a path separator")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO item_attachment (user_id, signature, name, hash, size) VALUES (?, ?, ?, ?, ?)`,
			user.Bytes(), sig.Bytes(), a.Name, a.Hash.Bytes(), a.Size); err != nil {
			return apperr.Wrap(apperr.KindStorage, "indexing attachment", err)
		}
	}
	return nil
}

// UserItemExists reports whether the (user, signature) row exists, ungated
// by known_users: this is used by ingest to test for a duplicate submission
// before indexing, not by public read paths.
func (c *Connection) UserItemExists(ctx context.Context, user crypto.UserID, sig crypto.Signature) (bool, error) {
	var x int
	err := c.conn.QueryRowContext(ctx, `SELECT 1 FROM item WHERE user_id = ? AND signature = ?`, user.Bytes(), sig.Bytes()).Scan(&x)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.KindStorage, "checking item existence", err)
	}
	return true, nil
}

// UserItem returns the item gated by known_users membership: existing but
// unknown-author rows are reported as not found, since known_users is the
// single trust boundary every public read goes through.
func (c *Connection) UserItem(ctx context.Context, user crypto.UserID, sig crypto.Signature) (backend.ItemRow, bool, error) {
	row := c.conn.QueryRowContext(ctx,
		`SELECT i.unix_utc_ms, i.received_utc_ms, i.item_bytes
		 FROM item i JOIN known_users k ON k.user_id = i.user_id
		 WHERE i.user_id = ? AND i.signature = ?`,
		user.Bytes(), sig.Bytes())
	var unixMs, recvMs int64
	var itemBytes []byte
	err := row.Scan(&unixMs, &recvMs, &itemBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return backend.ItemRow{}, false, nil
	}
	if err != nil {
		return backend.ItemRow{}, false, apperr.Wrap(apperr.KindStorage, "reading item", err)
	}
	return backend.ItemRow{
		User:      user,
		Signature: sig,
		Timestamp: model.Timestamp{UnixUTCMillis: unixMs},
		Received:  model.Timestamp{UnixUTCMillis: recvMs},
		ItemBytes: itemBytes,
	}, true, nil
}

// UserProfile returns a user's current profile item, gated by known_users.
func (c *Connection) UserProfile(ctx context.Context, user crypto.UserID) (backend.ItemRow, bool, error) {
	row := c.conn.QueryRowContext(ctx,
		`SELECT p.signature, i.unix_utc_ms, i.received_utc_ms, i.item_bytes
		 FROM profile p
		 JOIN item i ON i.user_id = p.user_id AND i.signature = p.signature
		 JOIN known_users k ON k.user_id = p.user_id
		 WHERE p.user_id = ?`,
		user.Bytes())
	var sigBytes []byte
	var unixMs, recvMs int64
	var itemBytes []byte
	err := row.Scan(&sigBytes, &unixMs, &recvMs, &itemBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return backend.ItemRow{}, false, nil
	}
	if err != nil {
		return backend.ItemRow{}, false, apperr.Wrap(apperr.KindStorage, "reading profile", err)
	}
	sig, err := crypto.SignatureFromBytes(sigBytes)
	if err != nil {
		return backend.ItemRow{}, false, apperr.Wrap(apperr.KindIntegrity, "parsing stored profile signature", err)
	}
	return backend.ItemRow{
		User:      user,
		Signature: sig,
		Timestamp: model.Timestamp{UnixUTCMillis: unixMs},
		Received:  model.Timestamp{UnixUTCMillis: recvMs},
		ItemBytes: itemBytes,
	}, true, nil
}
