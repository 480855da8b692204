package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"diskuto/backend"
	"diskuto/crypto"
	"diskuto/internal/apperr"
	"diskuto/model"
)

func parseUserSig(userBytes, sigBytes []byte) (crypto.UserID, crypto.Signature, error) {
	user, err := crypto.UserIDFromBytes(userBytes)
	if err != nil {
		return crypto.UserID{}, crypto.Signature{}, apperr.Wrap(apperr.KindIntegrity, "parsing stored user id", err)
	}
	sig, err := crypto.SignatureFromBytes(sigBytes)
	if err != nil {
		return crypto.UserID{}, crypto.Signature{}, apperr.Wrap(apperr.KindIntegrity, "parsing stored signature", err)
	}
	return user, sig, nil
}

// cursorClause returns the comparison operator and ORDER BY direction for a
// cursor-bounded scan: descending (the default) is strictly-before cursor,
// newest first; ascending is strictly-after cursor, oldest first. Both
// directions order by (unix_utc_ms, signature) so rows sharing a timestamp
// come back in a stable order. The cursor itself compares unix_utc_ms only,
// so rows sharing the cursor's timestamp are not part of the next page.
func cursorClause(ascending bool) (op, order string) {
	if ascending {
		return ">", "ASC"
	}
	return "<", "DESC"
}

// HomepageItems streams items authored by server-users flagged
// on_homepage, bounded and ordered by cursor/ascending.
func (c *Connection) HomepageItems(ctx context.Context, cursor model.Timestamp, ascending bool, cb backend.RowCallback[backend.ItemDisplayRow]) error {
	op, order := cursorClause(ascending)
	rows, err := c.conn.QueryContext(ctx,
		`SELECT i.user_id, i.signature, i.unix_utc_ms, i.received_utc_ms, i.item_bytes,
		        COALESCE(p.display_name, '')
		 FROM item i
		 JOIN server_user su ON su.user_id = i.user_id AND su.on_homepage = 1
		 LEFT JOIN profile p ON p.user_id = i.user_id
		 WHERE i.unix_utc_ms `+op+` ?
		 ORDER BY i.unix_utc_ms `+order+`, i.signature `+order,
		cursor.UnixUTCMillis)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "querying homepage items", err)
	}
	return scanItemDisplayRows(rows, cb)
}

// UserItems streams a single user's items, bounded and ordered by
// cursor/ascending, gated by known_users.
func (c *Connection) UserItems(ctx context.Context, user crypto.UserID, cursor model.Timestamp, ascending bool, cb backend.RowCallback[backend.ItemRow]) error {
	op, order := cursorClause(ascending)
	rows, err := c.conn.QueryContext(ctx,
		`SELECT i.signature, i.unix_utc_ms, i.received_utc_ms, i.item_bytes
		 FROM item i
		 JOIN known_users k ON k.user_id = i.user_id
		 WHERE i.user_id = ? AND i.unix_utc_ms `+op+` ?
		 ORDER BY i.unix_utc_ms `+order+`, i.signature `+order,
		user.Bytes(), cursor.UnixUTCMillis)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "querying user items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sigBytes, itemBytes []byte
		var unixMs, recvMs int64
		if err := rows.Scan(&sigBytes, &unixMs, &recvMs, &itemBytes); err != nil {
			return apperr.Wrap(apperr.KindStorage, "scanning user item", err)
		}
		sig, err := crypto.SignatureFromBytes(sigBytes)
		if err != nil {
			return apperr.Wrap(apperr.KindIntegrity, "parsing stored signature", err)
		}
		more, err := cb(backend.ItemRow{
			User:      user,
			Signature: sig,
			Timestamp: model.Timestamp{UnixUTCMillis: unixMs},
			Received:  model.Timestamp{UnixUTCMillis: recvMs},
			ItemBytes: itemBytes,
		})
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return rows.Err()
}

// UserFeedItems streams items from everyone the given user follows, bounded
// and ordered by cursor/ascending. A follow's display_name override applies
// only when it's non-empty after trimming; otherwise the author's own
// profile display name is used, mirroring sqlite.rs's user_feed_items logic.
func (c *Connection) UserFeedItems(ctx context.Context, user crypto.UserID, cursor model.Timestamp, ascending bool, cb backend.RowCallback[backend.ItemDisplayRow]) error {
	op, order := cursorClause(ascending)
	rows, err := c.conn.QueryContext(ctx,
		`SELECT i.user_id, i.signature, i.unix_utc_ms, i.received_utc_ms, i.item_bytes,
		        f.display_name AS follow_name, COALESCE(p.display_name, '') AS profile_name
		 FROM follow f
		 JOIN item i ON i.user_id = f.followed_user_id
		 JOIN known_users k ON k.user_id = i.user_id
		 LEFT JOIN profile p ON p.user_id = i.user_id
		 WHERE f.source_user_id = ? AND i.unix_utc_ms `+op+` ?
		 ORDER BY i.unix_utc_ms `+order+`, i.signature `+order,
		user.Bytes(), cursor.UnixUTCMillis)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "querying feed items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userBytes, sigBytes, itemBytes []byte
		var unixMs, recvMs int64
		var followName, profileName string
		if err := rows.Scan(&userBytes, &sigBytes, &unixMs, &recvMs, &itemBytes, &followName, &profileName); err != nil {
			return apperr.Wrap(apperr.KindStorage, "scanning feed item", err)
		}
		author, sig, err := parseUserSig(userBytes, sigBytes)
		if err != nil {
			return err
		}
		displayName := profileName
		if strings.TrimSpace(followName) != "" {
			displayName = followName
		}
		more, err := cb(backend.ItemDisplayRow{
			Item: backend.ItemRow{
				User:      author,
				Signature: sig,
				Timestamp: model.Timestamp{UnixUTCMillis: unixMs},
				Received:  model.Timestamp{UnixUTCMillis: recvMs},
				ItemBytes: itemBytes,
			},
			DisplayName: displayName,
		})
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return rows.Err()
}

// ReplyItems streams the comments that reply to a given item, bounded and
// ordered by cursor/ascending, gated by known_users on the replying author.
func (c *Connection) ReplyItems(ctx context.Context, user crypto.UserID, sig crypto.Signature, cursor model.Timestamp, ascending bool, cb backend.RowCallback[backend.ItemRow]) error {
	op, order := cursorClause(ascending)
	rows, err := c.conn.QueryContext(ctx,
		`SELECT i.user_id, i.signature, i.unix_utc_ms, i.received_utc_ms, i.item_bytes
		 FROM reply r
		 JOIN item i ON i.user_id = r.from_user_id AND i.signature = r.from_signature
		 JOIN known_users k ON k.user_id = i.user_id
		 WHERE r.to_user_id = ? AND r.to_signature = ? AND i.unix_utc_ms `+op+` ?
		 ORDER BY i.unix_utc_ms `+order+`, i.signature `+order,
		user.Bytes(), sig.Bytes(), cursor.UnixUTCMillis)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "querying replies", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userBytes, sigBytes, itemBytes []byte
		var unixMs, recvMs int64
		if err := rows.Scan(&userBytes, &sigBytes, &unixMs, &recvMs, &itemBytes); err != nil {
			return apperr.Wrap(apperr.KindStorage, "scanning reply", err)
		}
		author, replySig, err := parseUserSig(userBytes, sigBytes)
		if err != nil {
			return err
		}
		more, err := cb(backend.ItemRow{
			User:      author,
			Signature: replySig,
			Timestamp: model.Timestamp{UnixUTCMillis: unixMs},
			Received:  model.Timestamp{UnixUTCMillis: recvMs},
			ItemBytes: itemBytes,
		})
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return rows.Err()
}

func scanItemDisplayRows(rows *sql.Rows, cb backend.RowCallback[backend.ItemDisplayRow]) error {
	defer rows.Close()
	for rows.Next() {
		var userBytes, sigBytes, itemBytes []byte
		var unixMs, recvMs int64
		var displayName string
		if err := rows.Scan(&userBytes, &sigBytes, &unixMs, &recvMs, &itemBytes, &displayName); err != nil {
			return apperr.Wrap(apperr.KindStorage, "scanning item", err)
		}
		author, sig, err := parseUserSig(userBytes, sigBytes)
		if err != nil {
			return err
		}
		more, err := cb(backend.ItemDisplayRow{
			Item: backend.ItemRow{
				User:      author,
				Signature: sig,
				Timestamp: model.Timestamp{UnixUTCMillis: unixMs},
				Received:  model.Timestamp{UnixUTCMillis: recvMs},
				ItemBytes: itemBytes,
			},
			DisplayName: displayName,
		})
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return rows.Err()
}
