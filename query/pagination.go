// Package query implements the read-side projections spec.md §4.4
// describes (homepage, user timeline, user feed, replies) plus the
// cursor-based pagination every one of them shares, grounded on
// original_source/src/server/pagination.rs's Paginator.
package query

import (
	"context"
	"math"

	"diskuto/internal/apperr"
)

// DefaultCount is how many items a page holds when Count is unset.
const DefaultCount = 100

// MaxCount is the largest page size a caller may request.
const MaxCount = 100

// MinCount is the smallest page size a caller may request.
const MinCount = 1

// Params are the query-string parameters spec.md §6 defines for every list
// endpoint: before/after bound the window, count bounds the page size.
// Before takes precedence over After when both are given, matching
// pagination.rs's Paginator::time_span().
type Params struct {
	Before *int64
	After  *int64
	Count  int
}

func (p Params) clamp() Params {
	if p.Count < MinCount {
		p.Count = DefaultCount
	}
	if p.Count > MaxCount {
		p.Count = MaxCount
	}
	return p
}

// Page is one page of T, plus whether more items exist beyond it.
type Page[T any] struct {
	Items   []T
	HasMore bool
}

// Stream runs a backend projection's streaming query from cursor in the
// given direction: ascending=false streams strictly-before cursor, newest
// first; ascending=true streams strictly-after cursor, oldest first. It
// feeds each row to cb until cb returns false or the stream ends.
type Stream[T any] func(ctx context.Context, cursor int64, ascending bool, cb func(T) (bool, error)) error

// Collect drives stream with Params, bounding the result to at most Count
// items and reporting HasMore if the stream held at least one more.
//
// Per pagination.rs's time_span(): Before wins outright when both are set,
// so After's ascending path never even runs in that case. When only After
// is set, the underlying stream runs ascending from the cursor (oldest
// first) and the collected window is then reversed — pagination.rs's
// flip_items() — so the page is always returned newest-first regardless of
// which cursor direction produced it.
func Collect[T any](ctx context.Context, p Params, stream Stream[T]) (Page[T], error) {
	p = p.clamp()

	var cursor int64
	var ascending bool
	switch {
	case p.Before != nil:
		cursor = *p.Before
		ascending = false
	case p.After != nil:
		cursor = *p.After
		ascending = true
	default:
		cursor = math.MaxInt64
		ascending = false
	}

	var items []T
	hasMore := false

	err := stream(ctx, cursor, ascending, func(item T) (bool, error) {
		if len(items) >= p.Count {
			hasMore = true
			return false, nil
		}
		items = append(items, item)
		return true, nil
	})
	if err != nil {
		return Page[T]{}, apperr.Wrap(apperr.KindStorage, "collecting page", err)
	}

	if ascending {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}

	return Page[T]{Items: items, HasMore: hasMore}, nil
}
