package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"diskuto/backend"
	"diskuto/crypto"
	"diskuto/internal/apperr"
	"diskuto/internal/metrics"
	"diskuto/model"
)

// tempKeySize is the length of the placeholder key SaveAttachment writes
// content under before it's hash-verified. It's chosen shorter than a
// SHA-512 digest (64 bytes) so the two are distinguishable by length alone,
// the way original_source's temp-key scheme works.
const tempKeySize = 31

// attachmentChunkSize is the size GetContents's reader hands back per Read
// call, matching original_source's ~32KiB streaming chunks.
const attachmentChunkSize = 32 * 1024

// GetAttachmentMeta looks up a declared attachment's manifest entry, gated
// by known_users on the owning item's author. The bool return is whether
// the manifest entry exists at all; FileMeta.Exists further distinguishes
// whether its content has actually been uploaded yet.
func (c *Connection) GetAttachmentMeta(ctx context.Context, user crypto.UserID, sig crypto.Signature, name string) (backend.FileMeta, bool, error) {
	row := c.conn.QueryRowContext(ctx,
		`SELECT a.hash, a.size
		 FROM item_attachment a
		 JOIN known_users k ON k.user_id = a.user_id
		 WHERE a.user_id = ? AND a.signature = ? AND a.name = ?`,
		user.Bytes(), sig.Bytes(), name)
	var hashBytes []byte
	var size int64
	err := row.Scan(&hashBytes, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return backend.FileMeta{}, false, nil
	}
	if err != nil {
		return backend.FileMeta{}, false, apperr.Wrap(apperr.KindStorage, "reading attachment manifest", err)
	}
	hash, err := crypto.SHA512FromBytes(hashBytes)
	if err != nil {
		return backend.FileMeta{}, false, apperr.Wrap(apperr.KindIntegrity, "parsing stored attachment hash", err)
	}

	var x int
	err = c.conn.QueryRowContext(ctx, `SELECT 1 FROM store WHERE hash = ?`, hashBytes).Scan(&x)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return backend.FileMeta{}, false, apperr.Wrap(apperr.KindStorage, "checking attachment content presence", err)
	}

	return backend.FileMeta{Exists: exists, Hash: hash, Size: uint64(size)}, true, nil
}

// GetContents opens a fresh connection from the shared pool (independent
// from this Connection's own) and streams an attachment's bytes in fixed
// chunks, so the read can outlive the request that resolved its metadata.
func (c *Connection) GetContents(ctx context.Context, user crypto.UserID, sig crypto.Signature, name string) (*backend.FileStream, error) {
	meta, found, err := c.GetAttachmentMeta(ctx, user, sig, name)
	if err != nil {
		return nil, err
	}
	if !found || !meta.Exists {
		return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("attachment %q not found", name))
	}

	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "opening streaming connection", err)
	}
	var contents []byte
	err = conn.QueryRowContext(ctx, `SELECT contents FROM store WHERE hash = ?`, meta.Hash.Bytes()).Scan(&contents)
	if err != nil {
		_ = conn.Close()
		return nil, apperr.Wrap(apperr.KindStorage, "reading attachment contents", err)
	}
	if uint64(len(contents)) != meta.Size {
		_ = conn.Close()
		return nil, apperr.New(apperr.KindIntegrity, fmt.Sprintf("stored attachment %q is %d bytes, manifest declares %d", name, len(contents), meta.Size))
	}

	return &backend.FileStream{
		Reader: &chunkedReadCloser{data: contents, conn: conn},
		Size:   meta.Size,
	}, nil
}

// chunkedReadCloser hands back at most attachmentChunkSize bytes per Read,
// and releases its dedicated connection back to the pool on Close.
type chunkedReadCloser struct {
	data []byte
	pos  int
	conn *sql.Conn
}

func (r *chunkedReadCloser) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := len(p)
	if n > attachmentChunkSize {
		n = attachmentChunkSize
	}
	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func (r *chunkedReadCloser) Close() error {
	return r.conn.Close()
}

// SaveAttachment writes r's bytes under a temporary key, re-hashes what was
// actually written, and only then renames it into its permanent
// hash-addressed slot — or discards it, if the declared hash was wrong or a
// concurrent upload already holds that slot. This mirrors
// original_source's zeroblob-then-verify dance; database/sql's pure-Go
// sqlite driver has no incremental blob-write API, so the "write" here
// buffers r fully before the temp-key insert instead of streaming it in
// fixed-size pieces (documented in DESIGN.md).
func (c *Connection) SaveAttachment(ctx context.Context, size uint64, hash crypto.SHA512, r io.Reader) error {
	limited := io.LimitReader(r, int64(size)+1)
	buf, err := io.ReadAll(limited)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "reading attachment upload", err)
	}
	if uint64(len(buf)) != size {
		metrics.AttachmentsSaved.WithLabelValues("size_mismatch").Inc()
		return apperr.New(apperr.KindInvalidInput, fmt.Sprintf("upload was %d bytes, declared size was %d", len(buf), size))
	}

	tempKey := make([]byte, tempKeySize)
	if _, err := rand.Read(tempKey); err != nil {
		return apperr.Wrap(apperr.KindStorage, "generating temp key", err)
	}

	err = c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO store (hash, contents, created_utc_ms) VALUES (?, ?, ?)`,
			tempKey, buf, model.Now().UnixUTCMillis); err != nil {
			return apperr.Wrap(apperr.KindStorage, "writing temp attachment blob", err)
		}

		actual := crypto.SHA512Of(buf)
		if !actual.Equal(hash) {
			// Leave cleanup to the transaction rollback below: the temp
			// row just inserted never commits, so no explicit delete
			// is needed here.
			metrics.AttachmentsSaved.WithLabelValues("hash_mismatch").Inc()
			return apperr.New(apperr.KindHashMismatch, fmt.Sprintf("uploaded content hashes to %s, declared hash was %s", actual, hash))
		}

		res, err := tx.ExecContext(ctx, `UPDATE store SET hash = ? WHERE hash = ?`, hash.Bytes(), tempKey)
		if err != nil {
			// UNIQUE collision means another upload already committed this
			// hash; that copy is authoritative, so discard ours.
			if _, delErr := tx.ExecContext(ctx, `DELETE FROM store WHERE hash = ?`, tempKey); delErr != nil {
				return apperr.Wrap(apperr.KindStorage, "discarding duplicate temp blob", delErr)
			}
			metrics.AttachmentsSaved.WithLabelValues("deduplicated").Inc()
			return nil
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return apperr.New(apperr.KindStorage, "temp attachment blob vanished before rename")
		}
		metrics.AttachmentsSaved.WithLabelValues("accepted").Inc()
		return nil
	})
	return err
}
