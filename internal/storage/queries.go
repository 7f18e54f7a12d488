package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type DatasetRow struct {
	Name       string
	Columns    string
	RowCount   int64
	ImportedAt string
}

const upsertDataset = `
INSERT INTO datasets (name, columns, row_count, imported_at) VALUES (?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET columns = excluded.columns, row_count = excluded.row_count, imported_at = excluded.imported_at`

func (q *Queries) UpsertDataset(ctx context.Context, name, columns string, rowCount int64, importedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, upsertDataset, name, columns, rowCount, importedAt.UTC().Format(time.RFC3339))
	return err
}

const deleteDatasetRows = `DELETE FROM dataset_rows WHERE dataset = ?`

func (q *Queries) DeleteDatasetRows(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, deleteDatasetRows, name)
	return err
}

const insertDatasetRow = `INSERT INTO dataset_rows (dataset, row_index, cells) VALUES (?, ?, ?)`

func (q *Queries) InsertDatasetRow(ctx context.Context, name string, index int64, cells string) error {
	_, err := q.db.ExecContext(ctx, insertDatasetRow, name, index, cells)
	return err
}

const getDataset = `SELECT name, columns, row_count, imported_at FROM datasets WHERE name = ?`

func (q *Queries) GetDataset(ctx context.Context, name string) (DatasetRow, error) {
	var d DatasetRow
	err := q.db.QueryRowContext(ctx, getDataset, name).Scan(&d.Name, &d.Columns, &d.RowCount, &d.ImportedAt)
	return d, err
}

const listDatasets = `SELECT name, columns, row_count, imported_at FROM datasets ORDER BY name`

func (q *Queries) ListDatasets(ctx context.Context) ([]DatasetRow, error) {
	rows, err := q.db.QueryContext(ctx, listDatasets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DatasetRow
	for rows.Next() {
		var d DatasetRow
		if err := rows.Scan(&d.Name, &d.Columns, &d.RowCount, &d.ImportedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const getDatasetCells = `SELECT cells FROM dataset_rows WHERE dataset = ? ORDER BY row_index`

func (q *Queries) GetDatasetCells(ctx context.Context, name string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, getDatasetCells, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var cells string
		if err := rows.Scan(&cells); err != nil {
			return nil, err
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}
