package refgraph

import "regexp"

// refPattern matches the table name following a REFERENCES keyword.
// The name may be bare, double-quoted, backtick-quoted, or bracketed.
var refPattern = regexp.MustCompile("(?i)\\bREFERENCES\\s+(?:\"([^\"]+)\"|`([^`]+)`|\\[([^\\]]+)\\]|([\\w-]+))")

// ParseReferences extracts the table names that appear after a
// REFERENCES keyword in creation SQL, in order of first appearance,
// without duplicates.
//
// The parse is syntactic, not semantic: a column that happens to be
// named "references" makes the token after it look like a table, and
// unusual formatting can hide a real one. Known limitation.
func ParseReferences(createSQL string) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, m := range refPattern.FindAllStringSubmatch(createSQL, -1) {
		var name string
		for _, group := range m[1:] {
			if group != "" {
				name = group
				break
			}
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		refs = append(refs, name)
	}
	return refs
}
