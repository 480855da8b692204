package model

import (
	"bytes"
	"testing"

	"diskuto/crypto"
)

func mustUser(t *testing.T) crypto.UserID {
	t.Helper()
	uid, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return uid
}

func TestRoundTripPost(t *testing.T) {
	t.Parallel()

	item := Item{
		Kind:      KindPost,
		Timestamp: Timestamp{UnixUTCMillis: 1_700_000_000_123},
		Post: &Post{Attachments: []Attachment{
			{Name: "photo.jpg", Size: 1234, Hash: crypto.SHA512Of([]byte("x"))},
			{Name: "notes.txt", Size: 0, Hash: crypto.SHA512Of([]byte(""))},
		}},
	}

	b, err := item.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := ParseItem(b)
	if err != nil {
		t.Fatalf("ParseItem: %v", err)
	}
	if got.Kind != KindPost || !got.IsPost() {
		t.Fatalf("expected post kind, got %v", got.Kind)
	}
	if got.Timestamp != item.Timestamp {
		t.Fatalf("timestamp mismatch: got %v want %v", got.Timestamp, item.Timestamp)
	}
	if len(got.Post.Attachments) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(got.Post.Attachments))
	}
	for idx, a := range item.Post.Attachments {
		if got.Post.Attachments[idx].Name != a.Name {
			t.Errorf("attachment %d name mismatch: got %q want %q", idx, got.Post.Attachments[idx].Name, a.Name)
		}
		if got.Post.Attachments[idx].Size != a.Size {
			t.Errorf("attachment %d size mismatch", idx)
		}
		if !got.Post.Attachments[idx].Hash.Equal(a.Hash) {
			t.Errorf("attachment %d hash mismatch", idx)
		}
	}

	// Byte-for-byte round trip, per spec.md §8's round-trip law.
	b2, err := got.Marshal()
	if err != nil {
		t.Fatalf("re-Marshal: %v", err)
	}
	if !bytes.Equal(b, b2) {
		t.Fatalf("round trip not byte-for-byte")
	}
}

func TestRoundTripComment(t *testing.T) {
	t.Parallel()

	user := mustUser(t)
	item := Item{
		Kind:      KindComment,
		Timestamp: Now(),
		Comment: &Comment{ReplyTo: ItemRef{
			User:      user,
			Signature: mustSig(t),
		}},
	}
	b, err := item.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := ParseItem(b)
	if err != nil {
		t.Fatalf("ParseItem: %v", err)
	}
	if !got.IsComment() {
		t.Fatalf("expected comment kind")
	}
	if !got.Comment.ReplyTo.User.Equal(user) {
		t.Fatalf("reply_to user mismatch")
	}
}

func mustSig(t *testing.T) crypto.Signature {
	t.Helper()
	_, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	sig, err := crypto.Sign(priv, []byte("whatever"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return sig
}

func TestRoundTripProfileEmptyFollows(t *testing.T) {
	t.Parallel()

	item := Item{
		Kind:      KindProfile,
		Timestamp: Now(),
		Profile: &Profile{
			DisplayName: "Alice",
			Follows:     nil,
		},
	}
	b, err := item.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := ParseItem(b)
	if err != nil {
		t.Fatalf("ParseItem: %v", err)
	}
	if got.Profile.DisplayName != "Alice" {
		t.Fatalf("display name mismatch")
	}
	if len(got.Profile.Follows) != 0 {
		t.Fatalf("expected no follows, got %d", len(got.Profile.Follows))
	}
}

func TestItemExactlyMaxSizeAccepted(t *testing.T) {
	t.Parallel()

	// Build a post with a single attachment whose name padding brings the
	// encoded item to exactly MaxItemSize bytes.
	base := Item{Kind: KindPost, Timestamp: Now(), Post: &Post{Attachments: []Attachment{
		{Name: "", Size: 0, Hash: crypto.SHA512Of(nil)},
	}}}
	b, err := base.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	pad := MaxItemSize - len(b)
	base.Post.Attachments[0].Name = string(make([]byte, pad))
	b, err = base.Marshal()
	if err != nil {
		t.Fatalf("Marshal with padding: %v", err)
	}
	if len(b) != MaxItemSize {
		t.Fatalf("expected exactly MaxItemSize bytes, got %d", len(b))
	}
	if _, err := ParseItem(b); err != nil {
		t.Fatalf("expected max-size item to parse, got %v", err)
	}
}

func TestItemOverMaxSizeRejected(t *testing.T) {
	t.Parallel()

	oversized := make([]byte, MaxItemSize+1)
	if _, err := ParseItem(oversized); err != ErrItemTooLarge {
		t.Fatalf("expected ErrItemTooLarge, got %v", err)
	}
}
