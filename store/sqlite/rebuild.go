package sqlite

import (
	"context"
	"database/sql"

	"diskuto/crypto"
	"diskuto/internal/apperr"
	"diskuto/model"
)

// Rebuild clears profile, follow, reply, and known_users, then replays
// every stored item in chronological order to re-derive them. It exists
// for the `db reindex` operator command: recovering from a derived-table
// bug or a schema change without needing to re-ingest from peers.
func (c *Connection) Rebuild(ctx context.Context) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM profile`,
			`DELETE FROM follow`,
			`DELETE FROM reply`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return apperr.Wrap(apperr.KindStorage, "clearing derived table", err)
			}
		}

		// Collect every row before replaying it: issuing updateProfile's
		// own nested query against tx while this cursor is still open
		// would contend for the same connection's single active
		// statement slot.
		type replayRow struct {
			user crypto.UserID
			sig  crypto.Signature
			item model.Item
		}
		var replay []replayRow

		rows, err := tx.QueryContext(ctx,
			`SELECT user_id, signature, unix_utc_ms, item_bytes FROM item ORDER BY unix_utc_ms ASC, signature ASC`)
		if err != nil {
			return apperr.Wrap(apperr.KindStorage, "scanning items for rebuild", err)
		}
		for rows.Next() {
			var userBytes, sigBytes, itemBytes []byte
			var unixMs int64
			if err := rows.Scan(&userBytes, &sigBytes, &unixMs, &itemBytes); err != nil {
				rows.Close()
				return apperr.Wrap(apperr.KindStorage, "scanning item for rebuild", err)
			}
			user, err := crypto.UserIDFromBytes(userBytes)
			if err != nil {
				rows.Close()
				return apperr.Wrap(apperr.KindIntegrity, "parsing stored user id", err)
			}
			sig, err := crypto.SignatureFromBytes(sigBytes)
			if err != nil {
				rows.Close()
				return apperr.Wrap(apperr.KindIntegrity, "parsing stored signature", err)
			}
			item, err := model.ParseItem(itemBytes)
			if err != nil {
				rows.Close()
				return apperr.Wrap(apperr.KindIntegrity, "parsing stored item bytes", err)
			}
			replay = append(replay, replayRow{user: user, sig: sig, item: item})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return apperr.Wrap(apperr.KindStorage, "iterating items for rebuild", err)
		}
		rows.Close()

		for _, r := range replay {
			switch r.item.Kind {
			case model.KindProfile:
				if err := updateProfile(ctx, tx, r.user, r.sig, r.item.Timestamp, r.item.Profile); err != nil {
					return err
				}
			case model.KindComment:
				if err := saveCommentReply(ctx, tx, r.user, r.sig, r.item.Comment.ReplyTo); err != nil {
					return err
				}
			}
		}

		return rebuildKnownUsers(ctx, tx)
	})
}
