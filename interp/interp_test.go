package interp

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/encap/ir"
)

// counterProgram declares Counter{int n} with a static method
// bump(Counter c, int k) that adds 1 to c.n k times and returns c.n, and a
// getter-like method peek() returning n.
func counterProgram(t *testing.T) (*ir.Program, *ir.Class, *ir.Method, *ir.Method) {
	t.Helper()
	prog := ir.NewProgram()
	counter := prog.MustAddClass(ir.NewClass("Counter", 0))
	n := counter.AddField("n", ir.Int, 0)

	peek := counter.AddMethod(ir.NewMethod("peek", nil, ir.Int, ir.ModPublic))
	pb := ir.NewBuilder(peek)
	this := pb.This()
	tmp := pb.Local("tmp", ir.Int)
	pb.Assign(tmp, ir.FieldRef(this, n))
	pb.Return(tmp)
	pb.MustBuild()

	bump := counter.AddMethod(ir.NewMethod("bump", []ir.Type{counter.Type(), ir.Int}, ir.Int, ir.ModStatic))
	b := ir.NewBuilder(bump)
	c := b.Param(0, "c")
	k := b.Param(1, "k")
	i := b.Local("i", ir.Int)
	v := b.Local("v", ir.Int)
	b.Assign(i, ir.IntConst(0))
	b.Label("head").If(ir.Binop(ir.OpGe, i, k), "done")
	b.Assign(v, ir.FieldRef(c, n))
	b.Assign(v, ir.Binop(ir.OpAdd, v, ir.IntConst(1)))
	b.Assign(ir.FieldRef(c, n), v)
	b.Assign(i, ir.Binop(ir.OpAdd, i, ir.IntConst(1)))
	b.Goto("head")
	b.Label("done").Assign(v, ir.Virtual(c, peek))
	b.Return(v)
	b.MustBuild()

	return prog, counter, bump, peek
}

func TestRunLoop(t *testing.T) {
	prog, counter, bump, _ := counterProgram(t)
	in := New(prog)
	c := in.NewObject(counter)
	c.Set("n", IntValue(10))

	got, err := in.Run(bump, nil, RefValue(c), IntValue(3))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.Int != 13 {
		t.Errorf("result = %d, want 13", got.Int)
	}
	if c.Get("n").Int != 13 {
		t.Errorf("c.n = %d, want 13", c.Get("n").Int)
	}
	if in.Calls("peek") != 1 {
		t.Errorf("peek called %d times, want 1", in.Calls("peek"))
	}
}

func TestFieldTrace(t *testing.T) {
	prog, counter, bump, _ := counterProgram(t)
	in := New(prog)
	c := in.NewObject(counter)

	if _, err := in.Run(bump, nil, RefValue(c), IntValue(2)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{
		"read #1.<Counter: int n> = 0",
		"write #1.<Counter: int n> = 1",
		"read #1.<Counter: int n> = 1",
		"write #1.<Counter: int n> = 2",
		"read #1.<Counter: int n> = 2",
	}
	got := in.FieldTrace()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("trace:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestDump(t *testing.T) {
	prog, counter, _, _ := counterProgram(t)
	in := New(prog)
	in.NewObject(counter).Set("n", IntValue(4))
	in.NewObject(counter)

	want := "#1 Counter{n=4}\n#2 Counter{n=0}\n"
	if got := in.Dump(); got != want {
		t.Errorf("Dump = %q, want %q", got, want)
	}
}

func TestNullReceiver(t *testing.T) {
	prog, _, bump, _ := counterProgram(t)
	in := New(prog)

	_, err := in.Run(bump, nil, Value{}, IntValue(1))
	var rerr *RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want RuntimeError", err)
	}
	if !strings.Contains(rerr.Message, "null dereference") {
		t.Errorf("message = %q", rerr.Message)
	}
}

func TestStepLimit(t *testing.T) {
	prog := ir.NewProgram()
	c := prog.MustAddClass(ir.NewClass("C", 0))
	m := c.AddMethod(ir.NewMethod("spin", nil, ir.Void, ir.ModStatic))
	b := ir.NewBuilder(m)
	b.Label("top").Goto("top")
	b.MustBuild()

	in := New(prog)
	in.SetStepLimit(100)
	if _, err := in.Run(m, nil); !errors.Is(err, ErrStepLimit) {
		t.Fatalf("err = %v, want ErrStepLimit", err)
	}
}

func TestArgumentCount(t *testing.T) {
	prog, _, bump, _ := counterProgram(t)
	if _, err := New(prog).Run(bump, nil); err == nil {
		t.Fatal("expected arity error")
	}
}

func TestStaticFieldsAndAllocation(t *testing.T) {
	prog := ir.NewProgram()
	box := prog.MustAddClass(ir.NewClass("Box", 0))
	count := box.AddField("count", ir.Int, ir.ModStatic)
	val := box.AddField("val", ir.Int, 0)
	m := box.AddMethod(ir.NewMethod("make", nil, box.Type(), ir.ModStatic))
	b := ir.NewBuilder(m)
	o := b.Local("o", box.Type())
	n := b.Local("n", ir.Int)
	b.Assign(o, ir.New(box))
	b.Assign(ir.FieldRef(o, val), ir.IntConst(7))
	b.Assign(n, &ir.StaticFieldRef{Field: count})
	b.Assign(n, ir.Binop(ir.OpAdd, n, ir.IntConst(1)))
	b.Assign(&ir.StaticFieldRef{Field: count}, n)
	b.Return(o)
	b.MustBuild()

	in := New(prog)
	got, err := in.Run(m, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.Obj == nil || got.Obj.Get("val").Int != 7 {
		t.Errorf("result = %v", got)
	}
	if !strings.Contains(in.Dump(), "<Box: int count> = 1") {
		t.Errorf("static not recorded:\n%s", in.Dump())
	}
}
