// Package metrics exposes Prometheus counters and histograms for the
// ingest, query, and prune paths. Observability is ambient infrastructure
// carried regardless of spec.md's Non-goals (which scope out moderation and
// search, not metrics).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ItemsIngested counts save_user_item outcomes by result
	// (accepted|duplicate|denied|invalid).
	ItemsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diskuto",
		Name:      "items_ingested_total",
		Help:      "Count of item ingest attempts by outcome.",
	}, []string{"outcome"})

	// AttachmentsSaved counts save_attachment outcomes.
	AttachmentsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diskuto",
		Name:      "attachments_saved_total",
		Help:      "Count of attachment upload attempts by outcome.",
	}, []string{"outcome"})

	// QueryDuration observes the latency of each query projection.
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "diskuto",
		Name:      "query_duration_seconds",
		Help:      "Latency of query projections (homepage/timeline/feed/replies).",
		Buckets:   prometheus.DefBuckets,
	}, []string{"projection"})

	// PruneItemsDeleted counts items removed by the pruner, summed across
	// runs.
	PruneItemsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "diskuto",
		Name:      "prune_items_deleted_total",
		Help:      "Cumulative count of items deleted by the pruner.",
	})

	// PruneAttachmentsDeleted counts blobs reclaimed by the pruner, summed
	// across runs.
	PruneAttachmentsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "diskuto",
		Name:      "prune_attachments_deleted_total",
		Help:      "Cumulative count of blobs reclaimed by the pruner.",
	})

	// PruneBytesReclaimed sums the bytes reclaimed by the pruner.
	PruneBytesReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "diskuto",
		Name:      "prune_bytes_reclaimed_total",
		Help:      "Cumulative bytes reclaimed by the pruner.",
	})
)
