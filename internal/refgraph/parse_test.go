package refgraph

import "testing"

func assertRefs(t *testing.T, createSQL string, want ...string) {
	t.Helper()
	got := ParseReferences(createSQL)
	if len(got) != len(want) {
		t.Fatalf("ParseReferences() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParseReferences()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseReferencesBare(t *testing.T) {
	assertRefs(t,
		"CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parent(id))",
		"parent")
}

func TestParseReferencesQuotedForms(t *testing.T) {
	assertRefs(t, `CREATE TABLE t (a INTEGER REFERENCES "quoted tbl"(id))`, "quoted tbl")
	assertRefs(t, "CREATE TABLE t (a INTEGER REFERENCES `ticked`(id))", "ticked")
	assertRefs(t, "CREATE TABLE t (a INTEGER REFERENCES [bracketed](id))", "bracketed")
}

func TestParseReferencesCaseInsensitive(t *testing.T) {
	assertRefs(t, "CREATE TABLE t (a INTEGER references parent)", "parent")
	assertRefs(t, "CREATE TABLE t (a INTEGER ReFeReNcEs parent)", "parent")
}

func TestParseReferencesTableConstraint(t *testing.T) {
	assertRefs(t, `CREATE TABLE line_items (
		order_id INTEGER,
		sku TEXT,
		FOREIGN KEY (order_id) REFERENCES orders (id),
		FOREIGN KEY (sku) REFERENCES products (sku)
	)`, "orders", "products")
}

func TestParseReferencesDeduplicates(t *testing.T) {
	assertRefs(t, `CREATE TABLE audit (
		actor INTEGER REFERENCES users(id),
		subject INTEGER REFERENCES users(id)
	)`, "users")
}

func TestParseReferencesSelf(t *testing.T) {
	// Self references are reported here; the graph drops them.
	assertRefs(t,
		"CREATE TABLE employees (id INTEGER PRIMARY KEY, manager INTEGER REFERENCES employees(id))",
		"employees")
}

func TestParseReferencesNone(t *testing.T) {
	if got := ParseReferences("CREATE TABLE plain (id INTEGER PRIMARY KEY)"); len(got) != 0 {
		t.Errorf("ParseReferences() = %v, want none", got)
	}
}

func TestParseReferencesHyphenatedName(t *testing.T) {
	assertRefs(t, "CREATE TABLE t (a INTEGER REFERENCES audit-log(id))", "audit-log")
}

func TestParseReferencesIsSyntactic(t *testing.T) {
	// A column named "references" drags in the following token. The
	// parse is textual and this looseness is part of its contract.
	assertRefs(t, "CREATE TABLE odd (references INTEGER)", "INTEGER")
}

func TestParseReferencesMidWordIgnored(t *testing.T) {
	if got := ParseReferences("CREATE TABLE t (cross_references INTEGER)"); len(got) != 0 {
		t.Errorf("ParseReferences() = %v, want none", got)
	}
}
