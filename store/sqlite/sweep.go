package sqlite

import (
	"context"

	"diskuto/internal/apperr"
	"diskuto/internal/logging"
)

// SweepTempBlobs deletes any stray temp-key rows left behind by an upload
// that crashed between its temp-key insert and its rename-to-final-hash.
// Temp keys are tempKeySize (31) bytes; final hashes are SHA-512's 64, so
// length alone tells them apart without needing a separate "is this
// temporary" column. Run once at server startup, per spec.md's supplemented
// startup sweep.
func SweepTempBlobs(ctx context.Context, f *Factory) (int64, error) {
	res, err := f.db.ExecContext(ctx, `DELETE FROM store WHERE length(hash) = ?`, tempKeySize)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStorage, "sweeping stray temp blobs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStorage, "reading sweep rows affected", err)
	}
	if n > 0 {
		logging.For("store.sqlite").WithField("count", n).Info("swept stray temp attachment blobs")
	}
	return n, nil
}
