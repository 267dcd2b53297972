package source

import (
	"context"

	"plndash/internal/core"
)

// Ports for inbound data adapters.
type (
	// TableReader fetches the whole dataset.
	TableReader interface {
		// ReadTable returns a freshly read Table.
		ReadTable(ctx context.Context) (*core.Table, error)
		// Describe names the source location for logs and cache keys.
		Describe() string
	}
)
