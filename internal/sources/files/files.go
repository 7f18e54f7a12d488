package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"pulse/internal/core"
	"pulse/internal/sources"
)

// Reader loads CSV extracts from a directory.
type Reader struct {
	fsys fs.FS
	dir  string
}

var (
	_ sources.TableReader = (*Reader)(nil)
	_ sources.Pinger      = (*Reader)(nil)
)

// New reads CSV files from dir.
func New(dir string) *Reader {
	return &Reader{fsys: os.DirFS(dir), dir: dir}
}

// NewFS reads CSV files from an arbitrary filesystem.
func NewFS(fsys fs.FS) *Reader {
	return &Reader{fsys: fsys, dir: "."}
}

func (r *Reader) ReadTable(ctx context.Context, file string) (core.Table, error) {
	if err := ctx.Err(); err != nil {
		return core.Table{}, err
	}
	if !fs.ValidPath(file) {
		return core.Table{}, fmt.Errorf("%w: %s", sources.ErrSourceNotFound, file)
	}
	f, err := r.fsys.Open(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.Table{}, fmt.Errorf("%w: %s", sources.ErrSourceNotFound, file)
		}
		return core.Table{}, fmt.Errorf("%w: open %s: %v", sources.ErrSourceUnreadable, file, err)
	}
	defer f.Close()

	t, err := core.ReadCSV(file, f)
	if err != nil {
		return core.Table{}, fmt.Errorf("%w: %v", sources.ErrSourceUnreadable, err)
	}
	return t, nil
}

// Ping checks that the data directory is readable.
func (r *Reader) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := fs.ReadDir(r.fsys, "."); err != nil {
		return fmt.Errorf("data dir %s: %w", r.dir, err)
	}
	return nil
}
