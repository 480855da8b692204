package ingest_test

import (
	"bytes"
	"context"
	"testing"

	"diskuto/backend"
	"diskuto/crypto"
	"diskuto/ingest"
	"diskuto/internal/apperr"
	"diskuto/internal/testutil"
	"diskuto/model"
	"diskuto/store/sqlite"
)

func newTestBackend(t *testing.T) backend.Backend {
	t.Helper()
	sandbox, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	t.Cleanup(func() { _ = sandbox.Cleanup() })
	b := &sqlite.Builder{Path: sandbox.Path("test.sqlite3")}
	ctx := context.Background()
	if err := b.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	factory, err := b.Factory()
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	t.Cleanup(func() { _ = factory.Close() })
	conn, err := factory.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestSubmitItemRejectsBadSignature(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := newTestBackend(t)

	user, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	item := model.Item{Kind: model.KindPost, Timestamp: model.Now(), Post: &model.Post{}}
	itemBytes, err := item.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	_, otherPriv, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	wrongSig, err := crypto.Sign(otherPriv, itemBytes)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	err = ingest.SubmitItem(ctx, be, user, wrongSig, itemBytes)
	if apperr.As(err) != apperr.KindSignatureInvalid {
		t.Fatalf("expected KindSignatureInvalid, got %v", err)
	}
}

func TestSubmitItemRejectsOversized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := newTestBackend(t)

	user, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	oversized := make([]byte, model.MaxItemSize+1)
	var zeroSig crypto.Signature
	err = ingest.SubmitItem(ctx, be, user, zeroSig, oversized)
	if apperr.As(err) != apperr.KindInvalidInput {
		t.Fatalf("expected KindInvalidInput, got %v", err)
	}
}

func TestSubmitItemDeniesUnknownAuthor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := newTestBackend(t)

	user, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	item := model.Item{Kind: model.KindPost, Timestamp: model.Now(), Post: &model.Post{}}
	itemBytes, err := item.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	sig, err := crypto.Sign(priv, itemBytes)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	err = ingest.SubmitItem(ctx, be, user, sig, itemBytes)
	if apperr.As(err) != apperr.KindUnauthorized {
		t.Fatalf("expected KindUnauthorized for unknown author, got %v", err)
	}
}

func TestSubmitItemAcceptsKnownAuthorAndIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := newTestBackend(t)

	user, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if err := be.AddServerUser(ctx, backend.ServerUser{User: user}); err != nil {
		t.Fatalf("AddServerUser: %v", err)
	}

	item := model.Item{Kind: model.KindPost, Timestamp: model.Now(), Post: &model.Post{}}
	itemBytes, err := item.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	sig, err := crypto.Sign(priv, itemBytes)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := ingest.SubmitItem(ctx, be, user, sig, itemBytes); err != nil {
		t.Fatalf("first SubmitItem: %v", err)
	}
	if err := ingest.SubmitItem(ctx, be, user, sig, itemBytes); err != nil {
		t.Fatalf("resubmission should be idempotent, got: %v", err)
	}

	stored, found, err := be.UserItem(ctx, user, sig)
	if err != nil {
		t.Fatalf("UserItem: %v", err)
	}
	if !found {
		t.Fatalf("expected item to be found")
	}
	if !bytes.Equal(stored.ItemBytes, itemBytes) {
		t.Fatalf("stored item bytes mismatch")
	}
}

func TestSubmitAttachmentRequiresManifestEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := newTestBackend(t)

	user, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	var sig crypto.Signature
	err = ingest.SubmitAttachment(ctx, be, user, sig, "photo.jpg", bytes.NewReader([]byte("data")))
	if apperr.As(err) != apperr.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}
