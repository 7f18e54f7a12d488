package backend

import (
	"context"

	"pulse/internal/sources"
	"pulse/internal/storage"
)

// CleanupFunc releases backend resources
type CleanupFunc func() error

// BackendResult contains the table source and an optional cleanup function
type BackendResult struct {
	Reader sources.TableReader
	// Store is set for the sqlite backend so tables can be imported into it.
	Store   *storage.SQLiteRepository
	Cleanup CleanupFunc
}

// Close runs Cleanup when present.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// files
	DataDirectory string

	// sqlite
	SQLiteDBPath string

	// sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType names where dataset tables are read from
type BackendType string

const (
	FilesBackend  BackendType = "files"
	SheetsBackend BackendType = "sheets"
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case FilesBackend, SheetsBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
