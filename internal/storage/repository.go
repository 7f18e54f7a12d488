package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pulse/internal/core"
	"pulse/internal/sources"

	_ "modernc.org/sqlite"
)

// SQLiteRepository keeps imported dataset tables in a SQLite file so the
// dashboard can serve them without the CSV directory.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var (
	_ sources.TableReader = (*SQLiteRepository)(nil)
	_ sources.Pinger      = (*SQLiteRepository)(nil)
)

// DatasetInfo describes an imported table.
type DatasetInfo struct {
	Name       string
	Columns    []string
	Rows       int
	ImportedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{db: db, queries: New(db), now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ImportTable replaces the stored copy of t, keyed by its name.
func (r *SQLiteRepository) ImportTable(ctx context.Context, t core.Table) error {
	columns, err := json.Marshal(t.Columns())
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import of %s: %w", t.Name(), err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteDatasetRows(ctx, t.Name()); err != nil {
		return fmt.Errorf("clear %s: %w", t.Name(), err)
	}
	if err := q.UpsertDataset(ctx, t.Name(), string(columns), int64(t.Len()), r.now()); err != nil {
		return fmt.Errorf("save %s: %w", t.Name(), err)
	}
	for i, row := range t.Rows() {
		cells, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode row %d of %s: %w", i, t.Name(), err)
		}
		if err := q.InsertDatasetRow(ctx, t.Name(), int64(i), string(cells)); err != nil {
			return fmt.Errorf("insert row %d of %s: %w", i, t.Name(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import of %s: %w", t.Name(), err)
	}

	slog.InfoContext(ctx, "Dataset imported to SQLite", "dataset", t.Name(), "rows", t.Len())
	return nil
}

// ReadTable implements sources.TableReader.
func (r *SQLiteRepository) ReadTable(ctx context.Context, file string) (core.Table, error) {
	d, err := r.queries.GetDataset(ctx, file)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Table{}, fmt.Errorf("%w: %s (not imported)", sources.ErrSourceNotFound, file)
	}
	if err != nil {
		return core.Table{}, fmt.Errorf("%w: get %s: %v", sources.ErrSourceUnreadable, file, err)
	}

	var header []string
	if err := json.Unmarshal([]byte(d.Columns), &header); err != nil {
		return core.Table{}, fmt.Errorf("%w: decode columns of %s: %v", sources.ErrSourceUnreadable, file, err)
	}
	cells, err := r.queries.GetDatasetCells(ctx, file)
	if err != nil {
		return core.Table{}, fmt.Errorf("%w: rows of %s: %v", sources.ErrSourceUnreadable, file, err)
	}

	records := make([][]string, 0, len(cells)+1)
	records = append(records, header)
	for i, c := range cells {
		var row []string
		if err := json.Unmarshal([]byte(c), &row); err != nil {
			return core.Table{}, fmt.Errorf("%w: decode row %d of %s: %v", sources.ErrSourceUnreadable, i, file, err)
		}
		records = append(records, row)
	}

	t, err := core.FromRecords(file, records)
	if err != nil {
		return core.Table{}, fmt.Errorf("%w: %v", sources.ErrSourceUnreadable, err)
	}
	return t, nil
}

// ListDatasets returns every imported table, ordered by name.
func (r *SQLiteRepository) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := r.queries.ListDatasets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	out := make([]DatasetInfo, 0, len(rows))
	for _, d := range rows {
		info := DatasetInfo{Name: d.Name, Rows: int(d.RowCount)}
		if err := json.Unmarshal([]byte(d.Columns), &info.Columns); err != nil {
			return nil, fmt.Errorf("decode columns of %s: %w", d.Name, err)
		}
		if ts, err := time.Parse(time.RFC3339, d.ImportedAt); err == nil {
			info.ImportedAt = ts
		}
		out = append(out, info)
	}
	return out, nil
}
