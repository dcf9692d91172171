// Package catalog reads table metadata from a sync session's databases.
//
// Everything here is introspection: listing user tables, fetching the
// raw creation SQL recorded in sqlite_master, and describing columns via
// table_info. The catalog never writes.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rowboatdb/rowboat/internal/db"
	"github.com/rowboatdb/rowboat/internal/ident"
)

// ErrSchemaRead is returned when a table's schema cannot be read:
// the table is missing, or sqlite_master holds no creation SQL for it.
var ErrSchemaRead = errors.New("cannot read table schema")

// Column describes one column of a table as reported by table_info.
type Column struct {
	Position   int
	Name       string
	Type       string
	NotNull    bool
	Default    sql.NullString
	PrimaryKey int
}

// Names returns the column names in declaration order.
func Names(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Tables lists the user tables of the given schema ("main" or an attach
// alias) in creation order. Internal sqlite_ tables are excluded.
func Tables(ctx context.Context, h *db.Handle, schema string) ([]string, error) {
	if err := ident.Check(schema); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT name FROM %s.sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%%'",
		ident.Quote(schema))
	rows, err := h.RawDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

// CreateSQL fetches the creation SQL recorded for a table.
//
// Tables without usable creation SQL fail with ErrSchemaRead; shadow and
// system tables can legally carry a NULL sql column, and anything
// downstream that parses the DDL needs real text to work on.
func CreateSQL(ctx context.Context, h *db.Handle, schema, table string) (string, error) {
	if err := ident.Check(schema); err != nil {
		return "", fmt.Errorf("schema: %w", err)
	}
	if err := ident.Check(table); err != nil {
		return "", err
	}

	query := fmt.Sprintf(
		"SELECT sql FROM %s.sqlite_master WHERE type = 'table' AND name = ?",
		ident.Quote(schema))
	var ddl sql.NullString
	err := h.RawDB().QueryRowContext(ctx, query, table).Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("table %s not found in %s: %w", table, schema, ErrSchemaRead)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read creation SQL for %s: %w", table, err)
	}
	if !ddl.Valid || strings.TrimSpace(ddl.String) == "" {
		return "", fmt.Errorf("table %s has no creation SQL: %w", table, ErrSchemaRead)
	}
	return ddl.String, nil
}

// Columns describes a table's columns in declaration order.
func Columns(ctx context.Context, h *db.Handle, schema, table string) ([]Column, error) {
	if err := ident.Check(schema); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if err := ident.Check(table); err != nil {
		return nil, err
	}

	// Both arguments of the table_info function bind as values, so no
	// splicing is needed here.
	rows, err := h.RawDB().QueryContext(ctx,
		`SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?, ?)`,
		table, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			c       Column
			notNull int
		)
		if err := rows.Scan(&c.Position, &c.Name, &c.Type, &notNull, &c.Default, &c.PrimaryKey); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		c.NotNull = notNull != 0
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found in %s: %w", table, schema, ErrSchemaRead)
	}
	return cols, nil
}
