package refgraph

import (
	"errors"
	"fmt"
	"testing"
)

func mapSource(ddl map[string]string) SQLSource {
	return func(table string) (string, error) {
		sql, ok := ddl[table]
		if !ok {
			return "", fmt.Errorf("no creation SQL for %s", table)
		}
		return sql, nil
	}
}

func plain(name string) string {
	return fmt.Sprintf("CREATE TABLE %s (id INTEGER PRIMARY KEY)", name)
}

func withRef(name string, refs ...string) string {
	sql := fmt.Sprintf("CREATE TABLE %s (id INTEGER PRIMARY KEY", name)
	for i, ref := range refs {
		sql += fmt.Sprintf(", fk%d INTEGER REFERENCES %s(id)", i, ref)
	}
	return sql + ")"
}

func assertOrder(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Order() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Order() = %v, want %v", got, want)
		}
	}
}

func TestOrderNoReferences(t *testing.T) {
	seeds := []string{"zebra", "apple", "mango"}
	g, err := Build(seeds, mapSource(map[string]string{
		"zebra": plain("zebra"),
		"apple": plain("apple"),
		"mango": plain("mango"),
	}))
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	order, cycles := g.Order()
	assertOrder(t, order, "zebra", "apple", "mango")
	if len(cycles) != 0 {
		t.Errorf("Order() reported cycles %v for an acyclic graph", cycles)
	}
}

func TestOrderChain(t *testing.T) {
	// a references b, b references c. Forward order keeps children
	// first; the reversed read used for writing is c, b, a.
	g, err := Build([]string{"a", "b", "c"}, mapSource(map[string]string{
		"a": withRef("a", "b"),
		"b": withRef("b", "c"),
		"c": plain("c"),
	}))
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	order, cycles := g.Order()
	assertOrder(t, order, "a", "b", "c")
	if len(cycles) != 0 {
		t.Errorf("unexpected cycles %v", cycles)
	}

	var applied []string
	for i := len(order) - 1; i >= 0; i-- {
		applied = append(applied, order[i])
	}
	assertOrder(t, applied, "c", "b", "a")
}

func TestOrderPullsInUnlistedTable(t *testing.T) {
	g, err := Build([]string{"orders"}, mapSource(map[string]string{
		"orders":    withRef("orders", "customers"),
		"customers": plain("customers"),
	}))
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	order, _ := g.Order()
	assertOrder(t, order, "orders", "customers")
}

func TestOrderDiamond(t *testing.T) {
	g, err := Build([]string{"a", "b", "c", "d"}, mapSource(map[string]string{
		"a": withRef("a", "b", "c"),
		"b": withRef("b", "d"),
		"c": withRef("c", "d"),
		"d": plain("d"),
	}))
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	order, cycles := g.Order()
	if len(cycles) != 0 {
		t.Fatalf("unexpected cycles %v", cycles)
	}
	pos := make(map[string]int, len(order))
	for i, table := range order {
		pos[table] = i
	}
	for _, e := range []Edge{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}} {
		if pos[e.From] >= pos[e.To] {
			t.Errorf("order %v places %s at or after its referencer %s", order, e.To, e.From)
		}
	}
}

func TestOrderCycle(t *testing.T) {
	g, err := Build([]string{"a", "b"}, mapSource(map[string]string{
		"a": withRef("a", "b"),
		"b": withRef("b", "a"),
	}))
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	order, cycles := g.Order()
	if len(order) != 2 {
		t.Fatalf("Order() = %v, want both tables exactly once", order)
	}
	seen := map[string]bool{order[0]: true, order[1]: true}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("Order() = %v, want a and b", order)
	}
	if len(cycles) != 1 {
		t.Fatalf("Order() reported %d broken edges, want 1", len(cycles))
	}
}

func TestOrderSelfReference(t *testing.T) {
	g, err := Build([]string{"employees"}, mapSource(map[string]string{
		"employees": withRef("employees", "employees"),
	}))
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if deps := g.Deps("employees"); len(deps) != 0 {
		t.Errorf("Deps(employees) = %v, want none", deps)
	}

	order, cycles := g.Order()
	assertOrder(t, order, "employees")
	if len(cycles) != 0 {
		t.Errorf("self reference reported as cycle: %v", cycles)
	}
}

func TestBuildPropagatesSourceError(t *testing.T) {
	wantErr := errors.New("schema gone")
	_, err := Build([]string{"a"}, func(string) (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Build() error = %v, want %v", err, wantErr)
	}
}

func TestBuildLoadsEachTableOnce(t *testing.T) {
	loads := make(map[string]int)
	ddl := map[string]string{
		"a": withRef("a", "c"),
		"b": withRef("b", "c"),
		"c": plain("c"),
	}
	src := func(table string) (string, error) {
		loads[table]++
		return mapSource(ddl)(table)
	}

	if _, err := Build([]string{"a", "b", "c"}, src); err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	for table, n := range loads {
		if n != 1 {
			t.Errorf("creation SQL for %s loaded %d times, want 1", table, n)
		}
	}
}
