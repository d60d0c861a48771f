package privatize

import (
	"fmt"

	"github.com/hashicorp/go-set/v3"

	"github.com/chazu/encap/alias"
	"github.com/chazu/encap/ir"
	"github.com/chazu/encap/ir/loops"
)

// HoistStats counts what Hoist did to one loop.
type HoistStats struct {
	Selected int // receivers whose accessors were hoisted
	Locals   int // locals introduced
	Replaced int // in-loop accessor calls replaced by local reads and writes
}

// Hoist caches the fields read and written through accessors inside loop in
// fresh locals. For every receiver it proves safe, it loads each accessed
// field once before the loop, turns the in-loop accessor calls into local
// reads and writes, and writes back every field the loop sets after it.
//
// A receiver is safe when its class is privatized and
//   - it is not assigned inside the loop (in particular not allocated there)
//   - it may not alias the receiver or an argument of a non-accessor call
//     in the loop, a value returned by such a call, or a reference stored
//     into a field in the loop
//   - it may not alias any other receiver used in the loop
//   - it is not accessed directly through a field reference in the loop
//
// Loops that return, that leave to anywhere but the statement following
// their last statement, or that are not one unbroken range of the body are
// left alone. When the header is not the loop's first statement, as in a
// loop tested at the bottom, the loads go in a block of their own in front
// of the loop that ends with a jump to the header. The body is validated afterwards; a violation is returned as an
// error wrapping *ir.ValidationError.
func Hoist(body *ir.Body, loop *loops.Loop, classes ClassFilter, oracle alias.Oracle) (HoistStats, error) {
	var stats HoistStats
	exit, ok := hoistable(body, loop)
	if !ok {
		return stats, nil
	}

	h := newHoister(body, loop, classes, oracle)
	h.analyze()
	if h.selected.Empty() {
		return stats, nil
	}

	stats = h.hoist(exit)
	if err := body.Validate(); err != nil {
		return stats, fmt.Errorf("hoisting loop: %w", err)
	}
	return stats, nil
}

// hoistable checks the loop shape and returns the statement control reaches
// when the loop is left.
func hoistable(body *ir.Body, loop *loops.Loop) (ir.Stmt, bool) {
	if !loop.Contiguous() || loop.HasReturn() {
		return nil, false
	}
	exit := body.Units.Succ(loop.Last())
	if exit == nil {
		return nil, false
	}
	for _, e := range loop.Exits {
		if e.To != exit {
			return nil, false
		}
	}
	return exit, true
}

// accessed records the fields of one receiver touched through accessors.
type accessed struct {
	class   *ir.Class
	read    *set.Set[*ir.Field]
	written *set.Set[*ir.Field]
}

type pair struct {
	recv  *ir.Local
	field *ir.Field
}

type hoister struct {
	body    *ir.Body
	loop    *loops.Loop
	classes ClassFilter
	oracle  alias.Oracle

	all      *set.Set[*ir.Local]
	selected *set.Set[*ir.Local]
	order    []*ir.Local // receivers in order of first use
	fields   map[*ir.Local]*accessed
	direct   []*ir.Local
}

func newHoister(body *ir.Body, loop *loops.Loop, classes ClassFilter, oracle alias.Oracle) *hoister {
	return &hoister{
		body:     body,
		loop:     loop,
		classes:  classes,
		oracle:   oracle,
		all:      set.New[*ir.Local](0),
		selected: set.New[*ir.Local](0),
		fields:   make(map[*ir.Local]*accessed),
	}
}

// analyze leaves in h.selected the receivers that are safe to hoist.
func (h *hoister) analyze() {
	h.collect()
	h.excludeAssigned()
	h.excludeEscaping()
	h.excludeAliased()
}

// collect records every receiver of an accessor call or field access in the
// loop. Accessor receivers of privatized classes become candidates.
func (h *hoister) collect() {
	for _, s := range h.loop.Stmts {
		if ref, _ := ir.FieldRefOf(s); ref != nil {
			h.all.Insert(ref.Base)
			h.direct = append(h.direct, ref.Base)
		}
		call := ir.InvokeOf(s)
		if call == nil || call.Base == nil {
			continue
		}
		acc := call.Method.Accessor()
		if acc == nil {
			continue
		}
		recv := call.Base
		h.all.Insert(recv)
		if !h.classes.Privatized(acc.Field.Class) {
			continue
		}
		a, ok := h.fields[recv]
		if !ok {
			a = &accessed{
				class:   acc.Field.Class,
				read:    set.New[*ir.Field](0),
				written: set.New[*ir.Field](0),
			}
			h.fields[recv] = a
			h.order = append(h.order, recv)
		}
		if acc.Kind == ir.AccessorGet {
			a.read.Insert(acc.Field)
		} else {
			a.written.Insert(acc.Field)
		}
		h.selected.Insert(recv)
	}
	for _, l := range h.direct {
		h.selected.Remove(l)
	}
}

// excludeAssigned drops receivers defined inside the loop. An object
// allocated in the loop has no value before it.
func (h *hoister) excludeAssigned() {
	for _, s := range h.loop.Stmts {
		a, ok := s.(*ir.AssignStmt)
		if !ok {
			continue
		}
		if l, ok := a.Left.(*ir.Local); ok && h.selected.Remove(l) {
			if _, alloc := a.Right.(*ir.NewExpr); alloc {
				log.Debugf("%s: %s is allocated in the loop", h.body.Method.Signature(), l)
			}
		}
	}
}

// excludeEscaping drops receivers that may alias an object a non-accessor
// call in the loop can reach.
func (h *hoister) excludeEscaping() {
	reachable := &alias.Set{}
	addLocal := func(v ir.Value) {
		if l, ok := v.(*ir.Local); ok && l.Ty.IsRef() {
			reachable.UnionWith(h.oracle.ReachingObjects(l))
		}
	}
	for _, s := range h.loop.Stmts {
		if a, ok := s.(*ir.AssignStmt); ok {
			switch a.Left.(type) {
			case *ir.InstanceFieldRef, *ir.StaticFieldRef:
				addLocal(a.Right)
			}
		}
		call := ir.InvokeOf(s)
		if call == nil || call.Method.IsAccessor() {
			continue
		}
		if call.Base != nil {
			addLocal(call.Base)
		}
		for _, arg := range call.Args {
			addLocal(arg)
		}
		if a, ok := s.(*ir.AssignStmt); ok {
			addLocal(a.Left)
		}
	}
	if reachable.IsEmpty() {
		return
	}
	for _, l := range h.all.Slice() {
		if h.oracle.ReachingObjects(l).Intersects(reachable) {
			h.selected.Remove(l)
		}
	}
}

// excludeAliased drops candidates that may be the same object as another
// receiver used in the loop.
func (h *hoister) excludeAliased() {
	var drop []*ir.Local
	for _, l := range h.selected.Slice() {
		objs := h.oracle.ReachingObjects(l)
		for _, other := range h.all.Slice() {
			if other != l && objs.Intersects(h.oracle.ReachingObjects(other)) {
				drop = append(drop, l)
				break
			}
		}
	}
	for _, l := range drop {
		h.selected.Remove(l)
	}
}

// hoist performs the transformation for the surviving receivers.
func (h *hoister) hoist(exit ir.Stmt) HoistStats {
	var stats HoistStats
	locals := make(map[pair]*ir.Local)
	var loads, stores []ir.Stmt

	for _, recv := range h.order {
		if !h.selected.Contains(recv) {
			continue
		}
		a := h.fields[recv]
		hoisted := false
		for _, f := range a.class.Fields {
			if f.IsStatic() || (!a.read.Contains(f) && !a.written.Contains(f)) {
				continue
			}
			if f.Getter() == nil || (a.written.Contains(f) && f.Setter() == nil) {
				continue
			}
			l := h.body.NewLocal(recv.Name+"_"+f.Name, f.Type)
			locals[pair{recv, f}] = l
			loads = append(loads, &ir.AssignStmt{Left: l, Right: ir.Virtual(recv, f.Getter())})
			if a.written.Contains(f) {
				stores = append(stores, &ir.InvokeStmt{Call: ir.Virtual(recv, f.Setter(), l)})
			}
			stats.Locals++
			hoisted = true
		}
		if hoisted {
			stats.Selected++
		}
	}
	if len(locals) == 0 {
		return stats
	}

	header, first := h.loop.Header, h.loop.Stmts[0]
	for _, s := range h.loop.Stmts {
		call := ir.InvokeOf(s)
		if call == nil || call.Base == nil {
			continue
		}
		acc := call.Method.Accessor()
		if acc == nil {
			continue
		}
		l, ok := locals[pair{call.Base, acc.Field}]
		if !ok {
			continue
		}
		switch s := s.(type) {
		case *ir.AssignStmt:
			if acc.Kind == ir.AccessorGet {
				s.Right = l
				stats.Replaced++
			}
		case *ir.InvokeStmt:
			if acc.Kind == ir.AccessorSet {
				store := &ir.AssignStmt{Left: l, Right: call.Args[0]}
				h.body.Units.Replace(s, store)
				if s == header {
					header = store
				}
				if s == first {
					first = store
				}
				stats.Replaced++
			}
		}
	}

	outside := func(b ir.Branch) bool {
		return !h.loop.Contains(b.(ir.Stmt))
	}
	if first == header {
		h.insertBefore(loads, header, outside)
	} else {
		h.insertPreheader(loads, first, header, outside)
	}
	h.insertBefore(stores, exit, func(b ir.Branch) bool {
		return h.loop.Contains(b.(ir.Stmt))
	})
	return stats
}

// insertBefore places stmts, in order, in front of point. Only jumps to point
// selected by redirect are moved onto the first inserted statement.
func (h *hoister) insertBefore(stmts []ir.Stmt, point ir.Stmt, redirect func(ir.Branch) bool) {
	if len(stmts) == 0 {
		return
	}
	units := h.body.Units
	units.InsertBefore(stmts[0], point)
	units.RedirectJumps(stmts[0], point, func(b ir.Branch) bool { return !redirect(b) })
	for i := 1; i < len(stmts); i++ {
		units.InsertAfter(stmts[i], stmts[i-1])
	}
}

// insertPreheader places loads in front of first, the loop's first statement,
// followed by a jump to header. Nothing outside the loop falls through into
// first, since header dominates it, so the block runs only through the
// redirected jumps: those selected by enter that aimed at header.
func (h *hoister) insertPreheader(loads []ir.Stmt, first, header ir.Stmt, enter func(ir.Branch) bool) {
	units := h.body.Units
	units.InsertBefore(loads[0], first)
	units.RedirectJumps(loads[0], first, nil)
	for i := 1; i < len(loads); i++ {
		units.InsertAfter(loads[i], loads[i-1])
	}
	units.RedirectJumps(header, loads[0], enter)
	units.InsertAfter(&ir.GotoStmt{Target: header}, loads[len(loads)-1])
}
