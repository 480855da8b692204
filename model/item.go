// Package model defines the signed-record data model: the Item tagged
// union (post | comment | profile) and the byte-level codec used to
// serialize and parse it. The wire format here is deliberately small and
// hand-rolled: spec treats record payloads as opaque, self-describing byte
// strings and places the "protobuf IDL itself" out of scope, so any codec
// satisfying that contract — parseable, self-describing via a kind tag,
// round-tripping byte-for-byte — is conformant.
package model

import (
	"fmt"

	"diskuto/crypto"
)

// Kind discriminates the payload carried by an Item.
type Kind byte

const (
	KindPost Kind = iota
	KindComment
	KindProfile
)

func (k Kind) String() string {
	switch k {
	case KindPost:
		return "post"
	case KindComment:
		return "comment"
	case KindProfile:
		return "profile"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// MaxItemSize is the maximum permitted length of an item's encoded bytes.
const MaxItemSize = 32 * 1024

// Attachment describes one file a Post declares, to be uploaded separately.
type Attachment struct {
	Name string
	Size uint64
	Hash crypto.SHA512
}

// ItemRef points at another item by its (author, signature) identity, used
// by Comment.ReplyTo.
type ItemRef struct {
	User      crypto.UserID
	Signature crypto.Signature
}

// Follow is one entry in a Profile's follow list.
type Follow struct {
	User        crypto.UserID
	DisplayName string
}

// Post is the payload of a Kind == KindPost item.
type Post struct {
	Attachments []Attachment
}

// Comment is the payload of a Kind == KindComment item.
type Comment struct {
	ReplyTo ItemRef
}

// Profile is the payload of a Kind == KindProfile item.
type Profile struct {
	DisplayName string
	Follows     []Follow
}

// Item is the parsed, tagged-union form of an ItemBytes payload. Exactly one
// of Post, Comment, Profile is populated, selected by Kind.
type Item struct {
	Kind      Kind
	Timestamp Timestamp

	Post    *Post
	Comment *Comment
	Profile *Profile
}

// IsPost, IsComment, IsProfile mirror the has_post()/has_comment()/
// has_profile() accessors original_source's protobuf-generated Item exposed.
func (i Item) IsPost() bool    { return i.Kind == KindPost }
func (i Item) IsComment() bool { return i.Kind == KindComment }
func (i Item) IsProfile() bool { return i.Kind == KindProfile }
