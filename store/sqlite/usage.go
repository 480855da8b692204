package sqlite

import (
	"context"

	"diskuto/backend"
	"diskuto/crypto"
	"diskuto/internal/apperr"
)

// UsageByUser streams each known user's logical storage footprint: total
// item bytes plus total declared attachment bytes (not dedup-adjusted —
// each attachment counted once per referencing item, per spec.md §4.3.4).
func (c *Connection) UsageByUser(ctx context.Context, cb backend.RowCallback[backend.UsageRow]) error {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT k.user_id,
		        COALESCE(p.display_name, ''),
		        COALESCE((SELECT SUM(length(i.item_bytes)) FROM item i WHERE i.user_id = k.user_id), 0),
		        COALESCE((SELECT SUM(a.size) FROM item_attachment a WHERE a.user_id = k.user_id), 0)
		 FROM known_users k
		 LEFT JOIN profile p ON p.user_id = k.user_id
		 ORDER BY k.user_id`)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "querying usage by user", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userBytes []byte
		var displayName string
		var itemBytes, attachmentBytes int64
		if err := rows.Scan(&userBytes, &displayName, &itemBytes, &attachmentBytes); err != nil {
			return apperr.Wrap(apperr.KindStorage, "scanning usage row", err)
		}
		user, err := crypto.UserIDFromBytes(userBytes)
		if err != nil {
			return apperr.Wrap(apperr.KindIntegrity, "parsing stored user id", err)
		}
		more, err := cb(backend.UsageRow{
			User:            user,
			DisplayName:     displayName,
			ItemBytes:       uint64(itemBytes),
			AttachmentBytes: uint64(attachmentBytes),
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
