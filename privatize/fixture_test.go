package privatize

import (
	"testing"

	"github.com/chazu/encap/alias"
	"github.com/chazu/encap/interp"
	"github.com/chazu/encap/ir"
	"github.com/chazu/encap/ir/loops"
	"github.com/chazu/encap/pipeline"
)

// fixture is a program with class Point{int x; int y} and class Main whose
// static method run(Point p, int n) sums p.x over n iterations:
//
//	s = 0; i = 0
//	head: if i >= n goto done
//	v = p.x
//	s = s + v
//	<extra loop statements>
//	i = i + 1
//	goto head
//	done: return s
//
// Main.helper(Point q) increments q.x.
type fixture struct {
	prog   *ir.Program
	point  *ir.Class
	x, y   *ir.Field
	main   *ir.Class
	run    *ir.Method
	helper *ir.Method
	p      *ir.Local
	n      *ir.Local
	i      *ir.Local
	s      *ir.Local
	locals map[string]*ir.Local
}

// loopBody emits extra statements inside the loop of Main.run.
type loopBody func(f *fixture, b *ir.Builder)

func newFixture(t *testing.T, extra loopBody) *fixture {
	t.Helper()
	f := &fixture{prog: ir.NewProgram(), locals: make(map[string]*ir.Local)}
	f.point = f.prog.MustAddClass(ir.NewClass("Point", 0))
	f.x = f.point.AddField("x", ir.Int, 0)
	f.y = f.point.AddField("y", ir.Int, 0)

	reset := f.point.AddMethod(ir.NewMethod("reset", nil, ir.Void, ir.ModPublic))
	rb := ir.NewBuilder(reset)
	this := rb.This()
	rb.Assign(ir.FieldRef(this, f.x), ir.IntConst(0))
	rb.Assign(ir.FieldRef(this, f.y), ir.IntConst(0))
	rb.Return(nil)
	rb.MustBuild()

	f.main = f.prog.MustAddClass(ir.NewClass("Main", 0))

	f.helper = f.main.AddMethod(ir.NewMethod("helper", []ir.Type{f.point.Type()}, ir.Void, ir.ModStatic))
	hb := ir.NewBuilder(f.helper)
	q := hb.Param(0, "q")
	tmp := hb.Local("t", ir.Int)
	hb.Assign(tmp, ir.FieldRef(q, f.x))
	hb.Assign(tmp, ir.Binop(ir.OpAdd, tmp, ir.IntConst(1)))
	hb.Assign(ir.FieldRef(q, f.x), tmp)
	hb.Return(nil)
	hb.MustBuild()

	f.run = f.main.AddMethod(ir.NewMethod("run", []ir.Type{f.point.Type(), ir.Int}, ir.Int, ir.ModStatic))
	b := ir.NewBuilder(f.run)
	f.p = b.Param(0, "p")
	f.n = b.Param(1, "n")
	f.s = b.Local("s", ir.Int)
	f.i = b.Local("i", ir.Int)
	v := b.Local("v", ir.Int)
	b.Assign(f.s, ir.IntConst(0))
	b.Assign(f.i, ir.IntConst(0))
	b.Label("head").If(ir.Binop(ir.OpGe, f.i, f.n), "done")
	b.Assign(v, ir.FieldRef(f.p, f.x))
	b.Assign(f.s, ir.Binop(ir.OpAdd, f.s, v))
	if extra != nil {
		extra(f, b)
	}
	b.Assign(f.i, ir.Binop(ir.OpAdd, f.i, ir.IntConst(1)))
	b.Goto("head")
	b.Label("done").Return(f.s)
	b.MustBuild()

	for _, body := range f.prog.Bodies() {
		if err := body.Validate(); err != nil {
			t.Fatalf("fixture invalid: %v", err)
		}
	}
	return f
}

// local declares a local of the run body, remembered by name.
func (f *fixture) local(b *ir.Builder, name string, ty ir.Type) *ir.Local {
	l := b.Local(name, ty)
	f.locals[name] = l
	return l
}

// transform runs the privatization phase over the fixture's program.
func (f *fixture) transform(t *testing.T, opts Options) *Transformer {
	t.Helper()
	return transformProgram(t, f.prog, opts)
}

// transformProgram runs the privatization phase over prog.
func transformProgram(t *testing.T, prog *ir.Program, opts Options) *Transformer {
	t.Helper()
	tr := NewTransformer(prog, opts)
	pack := pipeline.NewPack("jtp")
	if err := tr.Register(pack); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := pack.Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return tr
}

// execute runs Main.run on a fresh Point{x: 3, y: 5} for n iterations.
func (f *fixture) execute(t *testing.T, n int64) (*interp.Interpreter, interp.Value) {
	t.Helper()
	in := interp.New(f.prog)
	pt := in.NewObject(f.point)
	pt.Set("x", interp.IntValue(3))
	pt.Set("y", interp.IntValue(5))
	got, err := in.Run(f.run, nil, interp.RefValue(pt), interp.IntValue(n))
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, f.run.Body)
	}
	return in, got
}

// loopOf returns the single loop of Main.run.
func (f *fixture) loopOf(t *testing.T) *loops.Loop {
	t.Helper()
	found := loops.Find(f.run.Body)
	if len(found) != 1 {
		t.Fatalf("found %d loops, want 1", len(found))
	}
	return found[0]
}

// callsIn counts the calls to m among stmts.
func callsIn(stmts []ir.Stmt, m *ir.Method) int {
	n := 0
	for _, s := range stmts {
		if call := ir.InvokeOf(s); call != nil && call.Method == m {
			n++
		}
	}
	return n
}

// distinctOracle gives every listed local its own object.
func distinctOracle(locals ...*ir.Local) *alias.MapOracle {
	o := alias.NewMapOracle()
	for i, l := range locals {
		o.Set(l, i+1)
	}
	return o
}

// setFilter is a ClassFilter over a fixed list.
type setFilter []*ir.Class

func (s setFilter) Privatized(c *ir.Class) bool {
	for _, x := range s {
		if x == c {
			return true
		}
	}
	return false
}
