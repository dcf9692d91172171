package diff

import (
	"context"
	"fmt"
	"strings"

	"github.com/rowboatdb/rowboat/internal/catalog"
	"github.com/rowboatdb/rowboat/internal/db"
	"github.com/rowboatdb/rowboat/internal/ident"
)

// Row is one table row, values in source column order.
type Row []any

// Missing returns the rows present in the source copy of table but not
// in the target copy, compared by whole-row value.
//
// Both copies are unioned with a side marker and grouped by every
// column; a group whose largest marker is the source's contains no
// target row, so exactly the source-only row groups survive. GROUP BY
// treats NULLs as equal to each other, and the diff depends on that:
// rows that differ only in NULL placement must not resurface run after
// run.
//
// This is set difference, not a key diff. A row edited in any column is
// a new row, and its old version stays in the target.
func Missing(ctx context.Context, h *db.Handle, table, targetAlias string, cols []catalog.Column) ([]Row, error) {
	if err := ident.Check(table); err != nil {
		return nil, err
	}
	if err := ident.Check(targetAlias); err != nil {
		return nil, fmt.Errorf("target alias: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s has no columns to diff", table)
	}

	list := columnList(cols)
	query := fmt.Sprintf(`SELECT %[1]s FROM (
	SELECT 1 AS side, %[1]s FROM main.%[2]s
	UNION ALL
	SELECT 2 AS side, %[1]s FROM %[3]s.%[2]s
) GROUP BY %[1]s HAVING max(side) = 1`,
		list, ident.Quote(table), ident.Quote(targetAlias))

	rows, err := h.RawDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to diff table %s: %w", table, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		vals := make(Row, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan diff row of %s: %w", table, err)
		}
		// Byte slices from Scan are only valid until the next row.
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = append([]byte(nil), b...)
			}
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating diff of %s: %w", table, err)
	}
	return out, nil
}

func columnList(cols []catalog.Column) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ident.Quote(c.Name)
	}
	return strings.Join(quoted, ", ")
}
