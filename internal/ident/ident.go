// Package ident validates names before they are spliced into generated SQL.
//
// SQL engines bind values, not identifiers, so a table or alias name can
// never travel as a query parameter. Every name that ends up inside a
// statement must pass Check first; that single rule is the injection
// boundary for the whole tool.
package ident

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidIdentifier is returned when a name contains characters that
// are unsafe to splice into SQL text.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Check returns nil if name is safe to use as a SQL identifier.
//
// A name is safe when it is non-empty and every rune is a letter, a
// digit, an underscore, or a hyphen. Anything else fails with an error
// wrapping ErrInvalidIdentifier that names the offender.
func Check(name string) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", ErrInvalidIdentifier)
	}
	for _, r := range name {
		if !safeRune(r) {
			return fmt.Errorf("unsafe name %q: %w", name, ErrInvalidIdentifier)
		}
	}
	return nil
}

// Quote wraps name in double quotes for use as a SQL identifier,
// doubling any embedded quote per the SQL standard.
//
// Quote does not validate. Names that cross a trust boundary go through
// Check first; Quote exists for schema-sourced column names, which may
// legally contain characters Check rejects.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func safeRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-'
}
