// Package prune wires backend.Backend.Prune into the operator-facing shape
// `feedctl db prune` presents: a dry-run-by-default report, flags for which
// categories to reclaim, and logging of the outcome.
package prune

import (
	"context"

	"diskuto/backend"
	"diskuto/internal/logging"
)

var log = logging.For("prune")

// Run executes a prune pass and logs a summary line.
func Run(ctx context.Context, b backend.Backend, opts backend.PruneOptions) (backend.PruneReport, error) {
	report, err := b.Prune(ctx, opts)
	if err != nil {
		return backend.PruneReport{}, err
	}

	entry := log.WithField("dry_run", opts.DryRun).
		WithField("items_deleted", report.ItemsDeleted).
		WithField("attachments_deleted", report.AttachmentsDeleted).
		WithField("bytes_reclaimed", report.BytesReclaimed)
	if opts.DryRun {
		entry.Info("prune dry run complete")
	} else {
		entry.Info("prune complete")
	}
	return report, nil
}
