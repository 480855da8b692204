package query

import (
	"context"

	"diskuto/backend"
)

// Usage returns up to limit usage_by_user rows, the CLI-facing shape for
// `feedctl db usage`. limit <= 0 means unbounded.
func Usage(ctx context.Context, b backend.Backend, limit int) ([]backend.UsageRow, error) {
	var out []backend.UsageRow
	err := b.UsageByUser(ctx, func(row backend.UsageRow) (bool, error) {
		out = append(out, row)
		if limit > 0 && len(out) >= limit {
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
