// Package apply writes diffed rows into the target side of a sync.
//
// This is the only package that mutates the target. It runs strictly
// inside a transaction owned by the caller, so a failure anywhere in a
// sync leaves the target exactly as it was.
package apply

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rowboatdb/rowboat/internal/catalog"
	"github.com/rowboatdb/rowboat/internal/diff"
	"github.com/rowboatdb/rowboat/internal/ident"
)

var (
	// ErrEmptyBatch is returned when Batch is handed zero rows; an
	// empty VALUES clause is not legal SQL.
	ErrEmptyBatch = errors.New("empty row batch")

	// ErrArityMismatch is returned when a row's length disagrees with
	// the table's column count.
	ErrArityMismatch = errors.New("row arity mismatch")
)

// Batch upserts rows into the target copy of table inside tx.
//
// Rows are written with INSERT OR REPLACE on one prepared statement:
// re-applying the same batch overwrites in place on a conflicting
// primary or unique key, so the operation is idempotent. All rows are
// validated against the column count before the first write.
func Batch(ctx context.Context, tx *sql.Tx, table, targetAlias string, cols []catalog.Column, rows []diff.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("table %s: %w", table, ErrEmptyBatch)
	}
	if err := ident.Check(table); err != nil {
		return 0, err
	}
	if err := ident.Check(targetAlias); err != nil {
		return 0, fmt.Errorf("target alias: %w", err)
	}
	for i, row := range rows {
		if len(row) != len(cols) {
			return 0, fmt.Errorf("table %s: row %d has %d values, want %d: %w",
				table, i, len(row), len(cols), ErrArityMismatch)
		}
	}

	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = ident.Quote(c.Name)
		marks[i] = "?"
	}
	query := fmt.Sprintf("INSERT OR REPLACE INTO %s.%s (%s) VALUES (%s)",
		ident.Quote(targetAlias), ident.Quote(table),
		strings.Join(names, ", "), strings.Join(marks, ", "))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert for %s: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return int64(i), fmt.Errorf("failed to apply row %d of %s: %w", i, table, err)
		}
	}
	return int64(len(rows)), nil
}
