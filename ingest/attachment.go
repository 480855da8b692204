package ingest

import (
	"context"
	"fmt"
	"io"

	"diskuto/backend"
	"diskuto/crypto"
	"diskuto/internal/apperr"
)

// SubmitAttachment uploads an attachment's bytes for a previously-ingested
// post. The post must already declare a manifest entry naming size and
// hash for this (user, signature, name); SaveAttachment itself re-verifies
// the uploaded bytes hash to what the manifest declared.
func SubmitAttachment(ctx context.Context, b backend.Backend, user crypto.UserID, sig crypto.Signature, name string, r io.Reader) error {
	meta, found, err := b.GetAttachmentMeta(ctx, user, sig, name)
	if err != nil {
		return err
	}
	if !found {
		return apperr.New(apperr.KindNotFound, fmt.Sprintf("no attachment manifest entry named %q on this item", name))
	}
	if meta.Exists {
		// Already uploaded; treat as idempotent success.
		return nil
	}
	return b.SaveAttachment(ctx, meta.Size, meta.Hash, r)
}
