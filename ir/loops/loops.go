// Package loops finds the natural loops of a body.
//
// The body's statements form the nodes of the control-flow graph. Dominators
// are computed with the Cooper, Harvey and Kennedy iteration over a
// reverse postorder; every edge t -> h where h dominates t is a back edge,
// and the natural loop of header h is h plus every node that reaches one of
// its back-edge tails without passing through h. Back edges sharing a header
// are merged into one loop.
package loops

import (
	"sort"

	"github.com/chazu/encap/ir"
)

// Edge is a control-flow edge between two statements.
type Edge struct {
	From, To ir.Stmt
}

// Loop is a natural loop of a body.
type Loop struct {
	Header ir.Stmt
	// Stmts holds the loop's statements in chain order.
	Stmts []ir.Stmt
	// Tails are the sources of the back edges to Header.
	Tails []ir.Stmt
	// Exits are the edges leaving the loop.
	Exits []Edge

	members    map[ir.Stmt]bool
	contiguous bool
}

// Contains reports whether s belongs to the loop.
func (l *Loop) Contains(s ir.Stmt) bool {
	return l.members[s]
}

// Last returns the loop statement that comes last in chain order.
func (l *Loop) Last() ir.Stmt {
	return l.Stmts[len(l.Stmts)-1]
}

// Contiguous reports whether the loop occupies one unbroken range of the
// chain. The header need not come first: a loop tested at the bottom has its
// header last.
func (l *Loop) Contiguous() bool {
	return l.contiguous
}

// HasReturn reports whether any loop statement leaves the method.
func (l *Loop) HasReturn() bool {
	for _, s := range l.Stmts {
		if _, ok := s.(*ir.ReturnStmt); ok {
			return true
		}
	}
	return false
}

// graph is the statement-level CFG of a body.
type graph struct {
	units []ir.Stmt
	index map[ir.Stmt]int
	succs [][]int
	preds [][]int
}

func newGraph(body *ir.Body) *graph {
	units := body.Units.Snapshot()
	g := &graph{
		units: units,
		index: make(map[ir.Stmt]int, len(units)),
		succs: make([][]int, len(units)),
		preds: make([][]int, len(units)),
	}
	for i, s := range units {
		g.index[s] = i
	}
	for i, s := range units {
		if ir.FallsThrough(s) && i+1 < len(units) {
			g.addEdge(i, i+1)
		}
		if b, ok := s.(ir.Branch); ok {
			for _, t := range b.Targets() {
				if j, ok := g.index[t]; ok {
					g.addEdge(i, j)
				}
			}
		}
	}
	return g
}

func (g *graph) addEdge(from, to int) {
	for _, s := range g.succs[from] {
		if s == to {
			return
		}
	}
	g.succs[from] = append(g.succs[from], to)
	g.preds[to] = append(g.preds[to], from)
}

type nodeAndIndex struct {
	n     int
	index int // number of successor edges of n already explored
}

// postorder returns the nodes reachable from the entry in DFS postorder.
func (g *graph) postorder() []int {
	seen := make([]bool, len(g.units))
	order := make([]int, 0, len(g.units))
	s := make([]nodeAndIndex, 0, 32)
	s = append(s, nodeAndIndex{n: 0})
	seen[0] = true
	for len(s) > 0 {
		tos := len(s) - 1
		x := s[tos]
		if i := x.index; i < len(g.succs[x.n]) {
			s[tos].index++
			next := g.succs[x.n][i]
			if !seen[next] {
				seen[next] = true
				s = append(s, nodeAndIndex{n: next})
			}
			continue
		}
		s = s[:tos]
		order = append(order, x.n)
	}
	return order
}

// dominators returns the immediate dominator of every node, -1 for
// unreachable nodes. The entry is its own immediate dominator.
func (g *graph) dominators() []int {
	po := g.postorder()
	postnum := make([]int, len(g.units))
	for i := range postnum {
		postnum[i] = -1
	}
	for i, n := range po {
		postnum[n] = i
	}

	idom := make([]int, len(g.units))
	for i := range idom {
		idom[i] = -1
	}
	idom[0] = 0

	for changed := true; changed; {
		changed = false
		for i := len(po) - 1; i >= 0; i-- {
			n := po[i]
			if n == 0 {
				continue
			}
			newIdom := -1
			for _, p := range g.preds[n] {
				if idom[p] < 0 {
					continue
				}
				if newIdom < 0 {
					newIdom = p
				} else {
					newIdom = intersect(p, newIdom, postnum, idom)
				}
			}
			if newIdom >= 0 && idom[n] != newIdom {
				idom[n] = newIdom
				changed = true
			}
		}
	}
	return idom
}

// intersect finds the closest common dominator of b and c.
func intersect(b, c int, postnum, idom []int) int {
	for b != c {
		if postnum[b] < postnum[c] {
			b = idom[b]
		} else {
			c = idom[c]
		}
	}
	return b
}

func dominates(h, n int, idom []int) bool {
	for {
		if n == h {
			return true
		}
		if n == 0 || idom[n] < 0 {
			return false
		}
		n = idom[n]
	}
}

// Find returns the natural loops of body, innermost (smallest) first and
// then in header order.
func Find(body *ir.Body) []*Loop {
	if body.Units.Len() == 0 {
		return nil
	}
	g := newGraph(body)
	idom := g.dominators()

	tails := make(map[int][]int)
	var headers []int
	for t := range g.units {
		if idom[t] < 0 {
			continue
		}
		for _, h := range g.succs[t] {
			if dominates(h, t, idom) {
				if _, ok := tails[h]; !ok {
					headers = append(headers, h)
				}
				tails[h] = append(tails[h], t)
			}
		}
	}

	loops := make([]*Loop, 0, len(headers))
	for _, h := range headers {
		loops = append(loops, g.naturalLoop(h, tails[h], idom))
	}
	sort.SliceStable(loops, func(i, j int) bool {
		if len(loops[i].Stmts) != len(loops[j].Stmts) {
			return len(loops[i].Stmts) < len(loops[j].Stmts)
		}
		return g.index[loops[i].Header] < g.index[loops[j].Header]
	})
	return loops
}

func (g *graph) naturalLoop(h int, tails []int, idom []int) *Loop {
	in := map[int]bool{h: true}
	work := append([]int(nil), tails...)
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		if in[n] {
			continue
		}
		in[n] = true
		for _, p := range g.preds[n] {
			if idom[p] >= 0 && !in[p] {
				work = append(work, p)
			}
		}
	}

	nodes := make([]int, 0, len(in))
	for n := range in {
		nodes = append(nodes, n)
	}
	sort.Ints(nodes)

	l := &Loop{
		Header:  g.units[h],
		members: make(map[ir.Stmt]bool, len(nodes)),
	}
	for _, n := range nodes {
		l.Stmts = append(l.Stmts, g.units[n])
		l.members[g.units[n]] = true
	}
	for _, t := range tails {
		l.Tails = append(l.Tails, g.units[t])
	}
	for _, n := range nodes {
		for _, s := range g.succs[n] {
			if !in[s] {
				l.Exits = append(l.Exits, Edge{From: g.units[n], To: g.units[s]})
			}
		}
	}
	l.contiguous = nodes[len(nodes)-1]-nodes[0] == len(nodes)-1
	return l
}
