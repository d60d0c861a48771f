package privatize

import (
	"testing"

	"github.com/chazu/encap/interp"
	"github.com/chazu/encap/ir"
)

func TestSynthesize(t *testing.T) {
	prog := ir.NewProgram()
	point := prog.MustAddClass(ir.NewClass("Point", 0))
	x := point.AddField("x", ir.Int, ir.ModPublic)
	y := point.AddField("y", ir.Int, 0)
	count := point.AddField("count", ir.Int, ir.ModStatic|ir.ModPublic)

	if n := Synthesize(point); n != 2 {
		t.Fatalf("Synthesize = %d, want 2", n)
	}

	for _, f := range []*ir.Field{x, y} {
		if !f.IsPrivate() {
			t.Errorf("%s should be private", f.Name)
		}
		get, set := f.Getter(), f.Setter()
		if get == nil || set == nil {
			t.Fatalf("%s has no accessors", f.Name)
		}
		if acc := get.Accessor(); acc == nil || acc.Field != f || acc.Kind != ir.AccessorGet {
			t.Errorf("getter of %s bound to %+v", f.Name, acc)
		}
		if acc := set.Accessor(); acc == nil || acc.Field != f || acc.Kind != ir.AccessorSet {
			t.Errorf("setter of %s bound to %+v", f.Name, acc)
		}
		if get.Return != f.Type || len(get.Params) != 0 {
			t.Errorf("getter signature %s", get.Signature())
		}
		if set.Return != ir.Void || len(set.Params) != 1 || set.Params[0] != f.Type {
			t.Errorf("setter signature %s", set.Signature())
		}
		for _, m := range []*ir.Method{get, set} {
			if err := m.Body.Validate(); err != nil {
				t.Errorf("accessor body invalid: %v", err)
			}
		}
	}
	if x.Getter().Name != "getX" || y.Setter().Name != "setY" {
		t.Errorf("accessor names %s, %s", x.Getter().Name, y.Setter().Name)
	}

	if count.IsPrivate() || count.Getter() != nil {
		t.Error("static field must be left alone")
	}
	if len(point.Methods) != 4 {
		t.Errorf("class has %d methods, want 4", len(point.Methods))
	}
}

func TestSynthesizeAvoidsUserMethodNames(t *testing.T) {
	prog := ir.NewProgram()
	point := prog.MustAddClass(ir.NewClass("Point", 0))
	x := point.AddField("x", ir.Int, 0)
	user := point.AddMethod(ir.NewMethod("getX", nil, ir.Int, ir.ModPublic))
	b := ir.NewBuilder(user)
	b.This()
	b.Return(ir.IntConst(42))
	b.MustBuild()

	Synthesize(point)

	if x.Getter() == user {
		t.Fatal("user method bound as accessor")
	}
	if x.Getter().Name != "getX$1" {
		t.Errorf("getter named %s, want getX$1", x.Getter().Name)
	}
	if user.IsAccessor() {
		t.Error("user method marked as accessor")
	}
}

func TestSynthesizedAccessorsRun(t *testing.T) {
	prog := ir.NewProgram()
	point := prog.MustAddClass(ir.NewClass("Point", 0))
	x := point.AddField("x", ir.Int, 0)
	Synthesize(point)

	in := interp.New(prog)
	o := in.NewObject(point)
	if _, err := in.Run(x.Setter(), o, interp.IntValue(9)); err != nil {
		t.Fatalf("setter: %v", err)
	}
	got, err := in.Run(x.Getter(), o)
	if err != nil {
		t.Fatalf("getter: %v", err)
	}
	if got.Int != 9 {
		t.Errorf("getter returned %d, want 9", got.Int)
	}
}

func TestSynthesizeEmptyClass(t *testing.T) {
	c := ir.NewClass("Empty", 0)
	if n := Synthesize(c); n != 0 || len(c.Methods) != 0 {
		t.Errorf("Synthesize on empty class added %d fields, %d methods", n, len(c.Methods))
	}
}
