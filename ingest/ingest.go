// Package ingest runs every item submitted to the server through the
// precondition checks spec.md §4.2 requires before it ever reaches
// persistence: size, signature, parseability, and quota policy. It owns no
// storage of its own — every check is either stateless or delegates to a
// backend.Backend.
package ingest

import (
	"context"

	"diskuto/backend"
	"diskuto/crypto"
	"diskuto/internal/apperr"
	"diskuto/internal/metrics"
	"diskuto/model"
)

// SubmitItem validates and stores one signed item. A resubmission of an
// already-stored (user, signature) pair is treated as idempotent success:
// it's reported as accepted without re-running SaveUserItem, matching the
// backend's own duplicate-insert-is-a-no-op contract at the boundary where
// callers actually observe it.
func SubmitItem(ctx context.Context, b backend.Backend, user crypto.UserID, sig crypto.Signature, itemBytes []byte) error {
	if len(itemBytes) > model.MaxItemSize {
		metrics.ItemsIngested.WithLabelValues("invalid").Inc()
		return apperr.New(apperr.KindInvalidInput, "item exceeds maximum size")
	}

	if !user.Verify(itemBytes, sig) {
		metrics.ItemsIngested.WithLabelValues("denied").Inc()
		return apperr.New(apperr.KindSignatureInvalid, "signature does not verify against item bytes")
	}

	item, err := model.ParseItem(itemBytes)
	if err != nil {
		metrics.ItemsIngested.WithLabelValues("invalid").Inc()
		return apperr.Wrap(apperr.KindInvalidInput, "parsing item bytes", err)
	}

	exists, err := b.UserItemExists(ctx, user, sig)
	if err != nil {
		return err
	}
	if exists {
		metrics.ItemsIngested.WithLabelValues("duplicate").Inc()
		return nil
	}

	deny, err := b.QuotaCheckItem(ctx, user, itemBytes, item)
	if err != nil {
		return err
	}
	if deny != nil {
		metrics.ItemsIngested.WithLabelValues("denied").Inc()
		return apperr.New(apperr.KindUnauthorized, "rejected by quota policy: "+deny.String())
	}

	row := backend.ItemRow{
		User:      user,
		Signature: sig,
		Timestamp: item.Timestamp,
		Received:  model.Now(),
		ItemBytes: itemBytes,
	}
	return b.SaveUserItem(ctx, row, item)
}
