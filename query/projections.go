package query

import (
	"context"
	"time"

	"diskuto/backend"
	"diskuto/crypto"
	"diskuto/internal/metrics"
	"diskuto/model"
)

// Homepage returns a page of items authored by on-homepage server-users.
func Homepage(ctx context.Context, b backend.Backend, p Params) (Page[backend.ItemDisplayRow], error) {
	defer observe("homepage")()
	return Collect(ctx, p, func(ctx context.Context, cursor int64, ascending bool, cb func(backend.ItemDisplayRow) (bool, error)) error {
		return b.HomepageItems(ctx, model.Timestamp{UnixUTCMillis: cursor}, ascending, backend.RowCallback[backend.ItemDisplayRow](cb))
	})
}

// UserTimeline returns a page of one user's own items.
func UserTimeline(ctx context.Context, b backend.Backend, user crypto.UserID, p Params) (Page[backend.ItemRow], error) {
	defer observe("user_timeline")()
	return Collect(ctx, p, func(ctx context.Context, cursor int64, ascending bool, cb func(backend.ItemRow) (bool, error)) error {
		return b.UserItems(ctx, user, model.Timestamp{UnixUTCMillis: cursor}, ascending, backend.RowCallback[backend.ItemRow](cb))
	})
}

// UserFeed returns a page of items from everyone a user follows.
func UserFeed(ctx context.Context, b backend.Backend, user crypto.UserID, p Params) (Page[backend.ItemDisplayRow], error) {
	defer observe("user_feed")()
	return Collect(ctx, p, func(ctx context.Context, cursor int64, ascending bool, cb func(backend.ItemDisplayRow) (bool, error)) error {
		return b.UserFeedItems(ctx, user, model.Timestamp{UnixUTCMillis: cursor}, ascending, backend.RowCallback[backend.ItemDisplayRow](cb))
	})
}

// Replies returns a page of comments replying to one item.
func Replies(ctx context.Context, b backend.Backend, user crypto.UserID, sig crypto.Signature, p Params) (Page[backend.ItemRow], error) {
	defer observe("replies")()
	return Collect(ctx, p, func(ctx context.Context, cursor int64, ascending bool, cb func(backend.ItemRow) (bool, error)) error {
		return b.ReplyItems(ctx, user, sig, model.Timestamp{UnixUTCMillis: cursor}, ascending, backend.RowCallback[backend.ItemRow](cb))
	})
}

func observe(projection string) func() {
	start := time.Now()
	return func() {
		metrics.QueryDuration.WithLabelValues(projection).Observe(time.Since(start).Seconds())
	}
}
