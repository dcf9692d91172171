// Package refgraph resolves the order tables must be copied in.
//
// Foreign keys form a directed graph: an edge A -> B means A's creation
// SQL references B. The graph is grown lazily from a seed list, pulling
// in tables that are referenced but were never listed, and linearized so
// that every referenced table sits after the tables that reference it.
// Consumers walk the result backwards when writing, which lands parent
// rows before the child rows that point at them.
package refgraph

// SQLSource returns the creation SQL for a table. The graph uses it to
// load definitions lazily while expanding from the seed set.
type SQLSource func(table string) (string, error)

// Edge is a directed reference: From's creation SQL names To.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Graph is a reference graph grown from a seed table list.
type Graph struct {
	seeds []string
	nodes map[string][]string
}

// Build grows the graph from the seed tables, loading each table's
// creation SQL exactly once. Tables reachable through references but
// absent from the seed list are included; self references are dropped
// at edge creation.
func Build(seeds []string, source SQLSource) (*Graph, error) {
	g := &Graph{
		seeds: append([]string(nil), seeds...),
		nodes: make(map[string][]string, len(seeds)),
	}

	queue := append([]string(nil), seeds...)
	queued := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		queued[s] = true
	}

	for len(queue) > 0 {
		table := queue[0]
		queue = queue[1:]

		ddl, err := source(table)
		if err != nil {
			return nil, err
		}

		var deps []string
		for _, ref := range ParseReferences(ddl) {
			if ref == table {
				continue
			}
			deps = append(deps, ref)
			if !queued[ref] {
				queued[ref] = true
				queue = append(queue, ref)
			}
		}
		g.nodes[table] = deps
	}
	return g, nil
}

// Deps returns the tables whose rows table points at, in the order the
// creation SQL names them.
func (g *Graph) Deps(table string) []string {
	return g.nodes[table]
}

// Order linearizes the graph.
//
// The forward order preserves seed order for unrelated tables and puts
// every referenced table after its referencers; reading it back to
// front therefore yields a write order where parents come first.
//
// Computed as reverse post-order of an iterative depth-first walk,
// visiting seeds last-to-first. An edge into a table still on the
// active walk stack would close a cycle; such edges are skipped and
// returned, and tables inside a cycle keep their traversal order.
func (g *Graph) Order() ([]string, []Edge) {
	type frame struct {
		table string
		next  int
	}

	var (
		post   []string
		back   []Edge
		done   = make(map[string]bool, len(g.nodes))
		active = make(map[string]bool)
	)

	for i := len(g.seeds) - 1; i >= 0; i-- {
		if done[g.seeds[i]] {
			continue
		}
		stack := []frame{{table: g.seeds[i]}}
		active[g.seeds[i]] = true

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.nodes[top.table]

			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++
				switch {
				case active[dep]:
					back = append(back, Edge{From: top.table, To: dep})
				case done[dep]:
					// already placed
				default:
					active[dep] = true
					stack = append(stack, frame{table: dep})
				}
				continue
			}

			post = append(post, top.table)
			done[top.table] = true
			delete(active, top.table)
			stack = stack[:len(stack)-1]
		}
	}

	order := make([]string, len(post))
	for i, table := range post {
		order[len(post)-1-i] = table
	}
	return order, back
}
