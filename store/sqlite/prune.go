package sqlite

import (
	"context"
	"database/sql"

	"diskuto/backend"
	"diskuto/internal/apperr"
	"diskuto/internal/metrics"
)

// Prune reclaims items from no-longer-known authors (opts.Items) and
// attachment blobs no manifest entry references any more (opts.Attachments).
// Under DryRun it reports what would be deleted without deleting anything.
func (c *Connection) Prune(ctx context.Context, opts backend.PruneOptions) (backend.PruneReport, error) {
	var report backend.PruneReport

	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if opts.Items {
			n, err := countOrphanedItems(ctx, tx)
			if err != nil {
				return err
			}
			report.ItemsDeleted = n
			if !opts.DryRun && n > 0 {
				if err := deleteOrphanedItems(ctx, tx); err != nil {
					return err
				}
			}
		}

		if opts.Attachments {
			n, bytesReclaimed, err := countOrphanedAttachments(ctx, tx)
			if err != nil {
				return err
			}
			report.AttachmentsDeleted = n
			report.BytesReclaimed = bytesReclaimed
			if !opts.DryRun && n > 0 {
				if _, err := tx.ExecContext(ctx,
					`DELETE FROM store WHERE hash NOT IN (SELECT hash FROM item_attachment)`); err != nil {
					return apperr.Wrap(apperr.KindStorage, "deleting orphaned attachment blobs", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return backend.PruneReport{}, err
	}

	if !opts.DryRun {
		metrics.PruneItemsDeleted.Add(float64(report.ItemsDeleted))
		metrics.PruneAttachmentsDeleted.Add(float64(report.AttachmentsDeleted))
		metrics.PruneBytesReclaimed.Add(float64(report.BytesReclaimed))
	}
	return report, nil
}

func countOrphanedItems(ctx context.Context, tx *sql.Tx) (int64, error) {
	var n int64
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item WHERE user_id NOT IN (SELECT user_id FROM known_users)`).Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStorage, "counting orphaned items", err)
	}
	return n, nil
}

func deleteOrphanedItems(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{
		`DELETE FROM item_attachment WHERE user_id NOT IN (SELECT user_id FROM known_users)`,
		`DELETE FROM reply WHERE from_user_id NOT IN (SELECT user_id FROM known_users)`,
		`DELETE FROM profile WHERE user_id NOT IN (SELECT user_id FROM known_users)`,
		`DELETE FROM item WHERE user_id NOT IN (SELECT user_id FROM known_users)`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return apperr.Wrap(apperr.KindStorage, "deleting orphaned item row", err)
		}
	}
	return nil
}

func countOrphanedAttachments(ctx context.Context, tx *sql.Tx) (int64, int64, error) {
	var n, total sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(length(contents)), 0) FROM store WHERE hash NOT IN (SELECT hash FROM item_attachment)`).
		Scan(&n, &total)
	if err != nil {
		return 0, 0, apperr.Wrap(apperr.KindStorage, "counting orphaned attachment blobs", err)
	}
	return n.Int64, total.Int64, nil
}
