// Package backend defines the abstract persistence contract diskuto's
// ingest pipeline and query projections are built against: items,
// attachments, server-users, follows, profiles, quotas, pruning, and usage
// accounting. store/sqlite implements it; ingest, query, and prune consume
// it without knowing how or where the bytes live.
package backend

import (
	"context"
	"io"

	"diskuto/crypto"
	"diskuto/model"
)

// ItemRow is a persisted record: its signed bytes plus the indexing columns
// derived from them.
type ItemRow struct {
	User      crypto.UserID
	Signature crypto.Signature
	Timestamp model.Timestamp
	Received  model.Timestamp
	ItemBytes []byte
}

// ItemDisplayRow pairs an ItemRow with the display name a query projection
// resolved for it (author's profile name, or a follow-specific override).
type ItemDisplayRow struct {
	Item        ItemRow
	DisplayName string
}

// ServerUser is a root-of-trust user the server admin has explicitly
// registered.
type ServerUser struct {
	User       crypto.UserID
	Notes      string
	OnHomepage bool
}

// DenyReason explains why quota_check_item refused an item.
type DenyReason int

const (
	// DenyUnknownUser is the only quota policy implemented: the author is
	// neither a server-user nor followed by one.
	DenyUnknownUser DenyReason = iota
)

func (d DenyReason) String() string {
	switch d {
	case DenyUnknownUser:
		return "UnknownUser"
	default:
		return "Unknown"
	}
}

// FileMeta describes a declared attachment's metadata, separate from
// whether its contents have actually been uploaded yet.
type FileMeta struct {
	Exists         bool // contents have been uploaded
	Hash           crypto.SHA512
	Size           uint64
	QuotaExceeded  bool
}

// FileStream is a lazy, chunked reader over an attachment's contents, along
// with its declared size so HTTP handlers can set Content-Length up front.
type FileStream struct {
	Reader io.ReadCloser
	Size   uint64
}

// UsageRow is one line of usage_by_user output: a user's logical storage
// footprint (not dedup-adjusted — each attachment counted once per
// referencing item).
type UsageRow struct {
	User            crypto.UserID
	DisplayName     string
	ItemBytes       uint64
	AttachmentBytes uint64
}

// Total returns the user's combined logical footprint.
func (u UsageRow) Total() uint64 { return u.ItemBytes + u.AttachmentBytes }

// PruneOptions selects what the pruner reclaims and whether it commits.
type PruneOptions struct {
	DryRun      bool
	Attachments bool
	Items       bool
}

// PruneReport summarizes a prune run's effect (or, under DryRun, what it
// would have been).
type PruneReport struct {
	ItemsDeleted       int64
	AttachmentsDeleted int64
	BytesReclaimed     int64
}

// RowCallback is called once per row in a streamed query result; returning
// false stops iteration early (used by query.Collect to enforce its Count
// cap without buffering the whole backend result set).
type RowCallback[T any] func(T) (more bool, err error)

// Backend is a single open connection/session against the store, exposing
// every operation spec.md §4.3 lists. Implementations must be safe to use
// from one goroutine at a time; callers check one out per request and
// release it when done (see store/sqlite's pool-backed Factory).
type Backend interface {
	// SaveUserItem runs the full ingest algorithm from spec.md §4.3.1 in one
	// savepoint: insert item, update profile/follow or reply derived
	// tables, index attachment manifests, refresh known_users if needed.
	// A duplicate (user, signature) is not an error — re-run indexing
	// remains a no-op and the caller should treat it as idempotent success.
	SaveUserItem(ctx context.Context, row ItemRow, item model.Item) error

	UserItemExists(ctx context.Context, user crypto.UserID, sig crypto.Signature) (bool, error)
	// UserItem returns the item gated by known_users membership: a row that
	// exists but whose author isn't known is reported as not found.
	UserItem(ctx context.Context, user crypto.UserID, sig crypto.Signature) (ItemRow, bool, error)
	UserProfile(ctx context.Context, user crypto.UserID) (ItemRow, bool, error)

	// The streaming projections below take a cursor and a direction: with
	// ascending=false the stream is strictly-before cursor, newest first
	// (the common case); with ascending=true it's strictly-after cursor,
	// oldest first, used to serve an "after" pagination request's window
	// before query.Collect reverses it back to newest-first.
	HomepageItems(ctx context.Context, cursor model.Timestamp, ascending bool, cb RowCallback[ItemDisplayRow]) error
	UserItems(ctx context.Context, user crypto.UserID, cursor model.Timestamp, ascending bool, cb RowCallback[ItemRow]) error
	UserFeedItems(ctx context.Context, user crypto.UserID, cursor model.Timestamp, ascending bool, cb RowCallback[ItemDisplayRow]) error
	ReplyItems(ctx context.Context, user crypto.UserID, sig crypto.Signature, cursor model.Timestamp, ascending bool, cb RowCallback[ItemRow]) error

	ServerUser(ctx context.Context, user crypto.UserID) (ServerUser, bool, error)
	ServerUsers(ctx context.Context, cb RowCallback[ServerUser]) error
	AddServerUser(ctx context.Context, su ServerUser) error
	RemoveServerUser(ctx context.Context, user crypto.UserID) error

	UserKnown(ctx context.Context, user crypto.UserID) (bool, error)

	QuotaCheckItem(ctx context.Context, user crypto.UserID, itemBytes []byte, item model.Item) (*DenyReason, error)

	GetAttachmentMeta(ctx context.Context, user crypto.UserID, sig crypto.Signature, name string) (FileMeta, bool, error)
	GetContents(ctx context.Context, user crypto.UserID, sig crypto.Signature, name string) (*FileStream, error)
	SaveAttachment(ctx context.Context, size uint64, hash crypto.SHA512, r io.Reader) error

	Prune(ctx context.Context, opts PruneOptions) (PruneReport, error)
	UsageByUser(ctx context.Context, cb RowCallback[UsageRow]) error

	// Rebuild re-derives profile, follow, reply, and known_users by
	// rescanning item, per spec.md §9's "derived-index rebuilds" note.
	Rebuild(ctx context.Context) error

	// Close releases this Backend's connection back to its pool.
	Close() error
}

// Factory opens Backend sessions against a shared connection pool.
type Factory interface {
	Open(ctx context.Context) (Backend, error)
	Close() error
}

// FactoryBuilder resolves a storage location (e.g. a sqlite file path) into
// a Factory, validating schema version and enabling WAL mode along the way.
type FactoryBuilder interface {
	// Exists reports whether the underlying store has already been
	// initialized.
	Exists() (bool, error)
	// NeedsUpgrade reports whether the store's schema version is behind
	// CURRENT_VERSION.
	NeedsUpgrade() (bool, error)
	// Create initializes a brand-new store at the configured location.
	Create(ctx context.Context) error
	// Upgrade runs pending schema upgraders in order.
	Upgrade(ctx context.Context) error
	// Factory validates the store (exists, not behind on schema) and
	// returns a ready-to-use connection-pool-backed Factory.
	Factory() (Factory, error)
}
