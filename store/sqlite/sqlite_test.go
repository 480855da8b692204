package sqlite

import (
	"bytes"
	"context"
	"testing"

	"diskuto/backend"
	"diskuto/crypto"
	"diskuto/internal/testutil"
	"diskuto/model"
)

func newTestConnection(t *testing.T) *Connection {
	t.Helper()
	sandbox, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	t.Cleanup(func() { _ = sandbox.Cleanup() })
	b := &Builder{Path: sandbox.Path("test.sqlite3")}
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
	return conn.(*Connection)
}

func mustKeyPair(t *testing.T) (crypto.UserID, func([]byte) crypto.Signature) {
	t.Helper()
	user, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return user, func(b []byte) crypto.Signature {
		sig, err := crypto.Sign(priv, b)
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		return sig
	}
}

func postRow(t *testing.T, user crypto.UserID, sign func([]byte) crypto.Signature, ts int64) (backend.ItemRow, model.Item) {
	t.Helper()
	item := model.Item{Kind: model.KindPost, Timestamp: model.Timestamp{UnixUTCMillis: ts}, Post: &model.Post{}}
	b, err := item.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return backend.ItemRow{
		User:      user,
		Signature: sign(b),
		Timestamp: item.Timestamp,
		Received:  item.Timestamp,
		ItemBytes: b,
	}, item
}

func TestBootstrapServerUserIsKnownImmediately(t *testing.T) {
	t.Parallel()
	conn := newTestConnection(t)
	ctx := context.Background()

	user, _ := mustKeyPair(t)
	known, err := conn.UserKnown(ctx, user)
	if err != nil {
		t.Fatalf("UserKnown: %v", err)
	}
	if known {
		t.Fatalf("expected unregistered user to be unknown")
	}

	if err := conn.AddServerUser(ctx, backend.ServerUser{User: user, OnHomepage: true}); err != nil {
		t.Fatalf("AddServerUser: %v", err)
	}
	known, err = conn.UserKnown(ctx, user)
	if err != nil {
		t.Fatalf("UserKnown: %v", err)
	}
	if !known {
		t.Fatalf("expected server user to be known immediately after registration")
	}
}

func TestFollowGatedIngestAndQuota(t *testing.T) {
	t.Parallel()
	conn := newTestConnection(t)
	ctx := context.Background()

	serverUser, serverSign := mustKeyPair(t)
	stranger, strangerSign := mustKeyPair(t)
	_ = strangerSign

	if err := conn.AddServerUser(ctx, backend.ServerUser{User: serverUser}); err != nil {
		t.Fatalf("AddServerUser: %v", err)
	}

	// Stranger is not known yet: quota check denies them.
	deny, err := conn.QuotaCheckItem(ctx, stranger, nil, model.Item{})
	if err != nil {
		t.Fatalf("QuotaCheckItem: %v", err)
	}
	if deny == nil || *deny != backend.DenyUnknownUser {
		t.Fatalf("expected DenyUnknownUser for stranger, got %v", deny)
	}

	// serverUser follows stranger via a profile item; now stranger is known.
	profile := model.Item{
		Kind:      model.KindProfile,
		Timestamp: model.Timestamp{UnixUTCMillis: 1000},
		Profile:   &model.Profile{DisplayName: "root", Follows: []model.Follow{{User: stranger, DisplayName: "Stranger"}}},
	}
	b, err := profile.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	row := backend.ItemRow{User: serverUser, Signature: serverSign(b), Timestamp: profile.Timestamp, Received: profile.Timestamp, ItemBytes: b}
	if err := conn.SaveUserItem(ctx, row, profile); err != nil {
		t.Fatalf("SaveUserItem: %v", err)
	}

	known, err := conn.UserKnown(ctx, stranger)
	if err != nil {
		t.Fatalf("UserKnown: %v", err)
	}
	if !known {
		t.Fatalf("expected followed user to become known")
	}
	deny, err = conn.QuotaCheckItem(ctx, stranger, nil, model.Item{})
	if err != nil {
		t.Fatalf("QuotaCheckItem: %v", err)
	}
	if deny != nil {
		t.Fatalf("expected followed user to pass quota check, got deny=%v", *deny)
	}
}

func TestProfileNeverReplacedByOlder(t *testing.T) {
	t.Parallel()
	conn := newTestConnection(t)
	ctx := context.Background()

	user, sign := mustKeyPair(t)
	if err := conn.AddServerUser(ctx, backend.ServerUser{User: user}); err != nil {
		t.Fatalf("AddServerUser: %v", err)
	}

	newer := model.Item{Kind: model.KindProfile, Timestamp: model.Timestamp{UnixUTCMillis: 2000}, Profile: &model.Profile{DisplayName: "Newer"}}
	nb, _ := newer.Marshal()
	if err := conn.SaveUserItem(ctx, backend.ItemRow{User: user, Signature: sign(nb), Timestamp: newer.Timestamp, Received: newer.Timestamp, ItemBytes: nb}, newer); err != nil {
		t.Fatalf("SaveUserItem newer: %v", err)
	}

	older := model.Item{Kind: model.KindProfile, Timestamp: model.Timestamp{UnixUTCMillis: 1000}, Profile: &model.Profile{DisplayName: "Older"}}
	ob, _ := older.Marshal()
	if err := conn.SaveUserItem(ctx, backend.ItemRow{User: user, Signature: sign(ob), Timestamp: older.Timestamp, Received: older.Timestamp, ItemBytes: ob}, older); err != nil {
		t.Fatalf("SaveUserItem older: %v", err)
	}

	profileRow, found, err := conn.UserProfile(ctx, user)
	if err != nil {
		t.Fatalf("UserProfile: %v", err)
	}
	if !found {
		t.Fatalf("expected profile to be found")
	}
	got, err := model.ParseItem(profileRow.ItemBytes)
	if err != nil {
		t.Fatalf("ParseItem: %v", err)
	}
	if got.Profile.DisplayName != "Newer" {
		t.Fatalf("expected stale older profile to be rejected, got display_name=%q", got.Profile.DisplayName)
	}
}

func TestUnfollowRemovesUserFromKnownUsers(t *testing.T) {
	t.Parallel()
	conn := newTestConnection(t)
	ctx := context.Background()

	serverUser, serverSign := mustKeyPair(t)
	other, _ := mustKeyPair(t)
	if err := conn.AddServerUser(ctx, backend.ServerUser{User: serverUser}); err != nil {
		t.Fatalf("AddServerUser: %v", err)
	}

	following := model.Item{
		Kind:      model.KindProfile,
		Timestamp: model.Timestamp{UnixUTCMillis: 1000},
		Profile:   &model.Profile{DisplayName: "root", Follows: []model.Follow{{User: other, DisplayName: "Other"}}},
	}
	fb, err := following.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := conn.SaveUserItem(ctx, backend.ItemRow{User: serverUser, Signature: serverSign(fb), Timestamp: following.Timestamp, Received: following.Timestamp, ItemBytes: fb}, following); err != nil {
		t.Fatalf("SaveUserItem following: %v", err)
	}

	known, err := conn.UserKnown(ctx, other)
	if err != nil {
		t.Fatalf("UserKnown: %v", err)
	}
	if !known {
		t.Fatalf("expected followed user to be known")
	}

	unfollowed := model.Item{
		Kind:      model.KindProfile,
		Timestamp: model.Timestamp{UnixUTCMillis: 2000},
		Profile:   &model.Profile{DisplayName: "root", Follows: nil},
	}
	ub, err := unfollowed.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := conn.SaveUserItem(ctx, backend.ItemRow{User: serverUser, Signature: serverSign(ub), Timestamp: unfollowed.Timestamp, Received: unfollowed.Timestamp, ItemBytes: ub}, unfollowed); err != nil {
		t.Fatalf("SaveUserItem unfollowed: %v", err)
	}

	known, err = conn.UserKnown(ctx, other)
	if err != nil {
		t.Fatalf("UserKnown: %v", err)
	}
	if known {
		t.Fatalf("expected unfollowed user to be dropped from known_users immediately")
	}
}

func TestSaveAttachmentHashMismatchLeavesNoRow(t *testing.T) {
	t.Parallel()
	conn := newTestConnection(t)
	ctx := context.Background()

	content := []byte("hello world")
	wrongHash := crypto.SHA512Of([]byte("not the content"))
	err := conn.SaveAttachment(ctx, uint64(len(content)), wrongHash, bytes.NewReader(content))
	if err == nil {
		t.Fatalf("expected hash mismatch error")
	}

	var count int
	if err := conn.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM store`).Scan(&count); err != nil {
		t.Fatalf("counting store rows: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rows left in store after a failed upload, got %d", count)
	}
}

func TestSaveAttachmentDedup(t *testing.T) {
	t.Parallel()
	conn := newTestConnection(t)
	ctx := context.Background()

	content := []byte("duplicate me")
	hash := crypto.SHA512Of(content)

	if err := conn.SaveAttachment(ctx, uint64(len(content)), hash, bytes.NewReader(content)); err != nil {
		t.Fatalf("first SaveAttachment: %v", err)
	}
	if err := conn.SaveAttachment(ctx, uint64(len(content)), hash, bytes.NewReader(content)); err != nil {
		t.Fatalf("second SaveAttachment: %v", err)
	}

	var count int
	if err := conn.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM store WHERE hash = ?`, hash.Bytes()).Scan(&count); err != nil {
		t.Fatalf("counting store rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row for deduplicated content, got %d", count)
	}
}

func TestPruneRemovesOrphanedItemsAndAttachments(t *testing.T) {
	t.Parallel()
	conn := newTestConnection(t)
	ctx := context.Background()

	user, sign := mustKeyPair(t)
	row, item := postRow(t, user, sign, 1000)
	if err := conn.SaveUserItem(ctx, row, item); err != nil {
		t.Fatalf("SaveUserItem: %v", err)
	}
	// user was never registered as (or followed by) a server_user, so this
	// item is immediately orphaned with respect to known_users.

	content := []byte("orphan blob")
	hash := crypto.SHA512Of(content)
	if err := conn.SaveAttachment(ctx, uint64(len(content)), hash, bytes.NewReader(content)); err != nil {
		t.Fatalf("SaveAttachment: %v", err)
	}

	dryRun, err := conn.Prune(ctx, backend.PruneOptions{DryRun: true, Items: true, Attachments: true})
	if err != nil {
		t.Fatalf("Prune dry run: %v", err)
	}
	if dryRun.ItemsDeleted != 1 {
		t.Fatalf("expected dry run to report 1 orphaned item, got %d", dryRun.ItemsDeleted)
	}
	if dryRun.AttachmentsDeleted != 1 {
		t.Fatalf("expected dry run to report 1 orphaned attachment, got %d", dryRun.AttachmentsDeleted)
	}

	var count int
	if err := conn.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM item`).Scan(&count); err != nil {
		t.Fatalf("counting item rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("dry run must not actually delete rows, got %d item rows", count)
	}

	report, err := conn.Prune(ctx, backend.PruneOptions{Items: true, Attachments: true})
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if report.ItemsDeleted != 1 || report.AttachmentsDeleted != 1 {
		t.Fatalf("unexpected prune report: %+v", report)
	}

	if err := conn.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM item`).Scan(&count); err != nil {
		t.Fatalf("counting item rows: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected orphaned item to be deleted, got %d rows", count)
	}
}
