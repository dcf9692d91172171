// Package diff computes what the target side of a sync is missing.
//
// Compare guards the shape first: both copies of a table must expose the
// same column-name set before any diff SQL is generated. Missing then
// computes the set difference between the two copies at whole-row
// granularity.
package diff

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rowboatdb/rowboat/internal/catalog"
	"github.com/rowboatdb/rowboat/internal/db"
)

// ErrSchemaMismatch is returned when the two copies of a table disagree
// on their column names.
var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaMismatchError reports the exact column-name divergence between
// the two copies of a table. It matches ErrSchemaMismatch under
// errors.Is.
type SchemaMismatchError struct {
	Table      string
	SourceOnly []string
	TargetOnly []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.SourceOnly) > 0 {
		parts = append(parts, fmt.Sprintf("missing from target: %s", strings.Join(e.SourceOnly, ", ")))
	}
	if len(e.TargetOnly) > 0 {
		parts = append(parts, fmt.Sprintf("extra in target: %s", strings.Join(e.TargetOnly, ", ")))
	}
	return fmt.Sprintf("table %s: schema mismatch (%s)", e.Table, strings.Join(parts, "; "))
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// Compare verifies that table has the same column-name set on both
// sides and returns the source column list, whose order drives every
// statement built afterwards. Column order and declared types are not
// compared, only the presence of names.
func Compare(ctx context.Context, h *db.Handle, table, targetAlias string) ([]catalog.Column, error) {
	srcCols, err := catalog.Columns(ctx, h, "main", table)
	if err != nil {
		return nil, err
	}
	dstCols, err := catalog.Columns(ctx, h, targetAlias, table)
	if err != nil {
		return nil, err
	}

	srcNames := nameSet(srcCols)
	dstNames := nameSet(dstCols)

	sourceOnly := setMinus(srcNames, dstNames)
	targetOnly := setMinus(dstNames, srcNames)
	if len(sourceOnly) > 0 || len(targetOnly) > 0 {
		return nil, &SchemaMismatchError{
			Table:      table,
			SourceOnly: sourceOnly,
			TargetOnly: targetOnly,
		}
	}
	return srcCols, nil
}

func nameSet(cols []catalog.Column) map[string]bool {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c.Name] = true
	}
	return set
}

// setMinus returns the names in a but not in b, sorted for stable
// error messages.
func setMinus(a, b map[string]bool) []string {
	var out []string
	for name := range a {
		if !b[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
