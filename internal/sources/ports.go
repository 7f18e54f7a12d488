package sources

import (
	"context"
	"errors"

	"pulse/internal/core"
)

// Ports for inbound data adapters.
type (
	// TableReader loads one source table by file name (e.g. "agg_trans.csv").
	TableReader interface {
		ReadTable(ctx context.Context, file string) (core.Table, error)
	}

	// Pinger reports whether the backing store is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

var (
	ErrSourceNotFound   = errors.New("source not found")
	ErrSourceUnreadable = errors.New("source unreadable")
)

// IsSourceError reports whether err comes from a missing or unreadable source.
func IsSourceError(err error) bool {
	return errors.Is(err, ErrSourceNotFound) || errors.Is(err, ErrSourceUnreadable)
}
