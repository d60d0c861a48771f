package image

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/encap/ir"
)

// sampleProgram builds Point{x, y} with a bound getter for x and a Main
// class whose static method loops over p.x.
func sampleProgram(t *testing.T) *ir.Program {
	t.Helper()
	prog := ir.NewProgram()
	point := prog.MustAddClass(ir.NewClass("Point", 0))
	x := point.AddField("x", ir.Int, ir.ModPrivate)
	point.AddField("y", ir.Int, 0)
	point.AddField("origin", point.Type(), ir.ModStatic)

	get := point.AddMethod(ir.NewMethod("getX", nil, ir.Int, ir.ModPublic))
	gb := ir.NewBuilder(get)
	this := gb.This()
	tmp := gb.Local("tmp", ir.Int)
	gb.Assign(tmp, ir.FieldRef(this, x))
	gb.Return(tmp)
	if _, err := gb.Build(); err != nil {
		t.Fatalf("Build getter: %v", err)
	}
	x.BindAccessors(get, nil)

	main := prog.MustAddClass(ir.NewClass("Main", 0))
	run := main.AddMethod(ir.NewMethod("run", []ir.Type{point.Type()}, ir.Int, ir.ModStatic))
	b := ir.NewBuilder(run)
	p := b.Param(0, "p")
	i := b.Local("i", ir.Int)
	s := b.Local("s", ir.Int)
	q := b.Local("q", point.Type())
	b.Assign(i, ir.IntConst(0))
	b.Assign(s, ir.IntConst(0))
	b.Assign(q, ir.New(point))
	b.Assign(q, ir.NullConst())
	b.Label("head").If(ir.Binop(ir.OpGe, i, ir.IntConst(3)), "done")
	v := b.Local("v", ir.Int)
	b.Assign(v, ir.Virtual(p, get))
	b.Assign(s, ir.Binop(ir.OpAdd, s, v))
	b.Assign(i, ir.Binop(ir.OpAdd, i, ir.IntConst(1)))
	b.Goto("head")
	b.Label("done").Return(s)
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build run: %v", err)
	}
	return prog
}

func TestRoundTrip(t *testing.T) {
	prog := sampleProgram(t)

	data, err := Marshal(prog)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(got.Classes) != len(prog.Classes) {
		t.Fatalf("decoded %d classes, want %d", len(got.Classes), len(prog.Classes))
	}
	for i, c := range prog.Classes {
		if a, b := ir.DisassembleClass(c), ir.DisassembleClass(got.Classes[i]); a != b {
			t.Errorf("class %s differs:\n--- want\n%s\n--- got\n%s", c.Name, a, b)
		}
	}
	want, have := prog.Bodies(), got.Bodies()
	for i := range want {
		if a, b := want[i].Disassemble(), have[i].Disassemble(); a != b {
			t.Errorf("body %d differs:\n--- want\n%s\n--- got\n%s", i, a, b)
		}
		if err := have[i].Validate(); err != nil {
			t.Errorf("decoded body invalid: %v", err)
		}
	}
}

func TestRoundTripKeepsAccessorBinding(t *testing.T) {
	data, err := Marshal(sampleProgram(t))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	point := got.Class("Point")
	x := point.Field("x")
	get := point.Method("getX")
	if x.Getter() != get {
		t.Fatal("getter binding lost")
	}
	if x.Setter() != nil {
		t.Error("unexpected setter binding")
	}
	if acc := get.Accessor(); acc == nil || acc.Field != x || acc.Kind != ir.AccessorGet {
		t.Errorf("accessor = %+v", acc)
	}
	if point.Field("y").Getter() != nil {
		t.Error("y should have no accessors")
	}

	// The call in Main.run must resolve to the same method object.
	for _, s := range got.Class("Main").Method("run").Body.Units.Snapshot() {
		if call := ir.InvokeOf(s); call != nil && call.Method != get {
			t.Error("call resolves to a different method")
		}
	}
}

func TestRoundTripJumpTargets(t *testing.T) {
	data, err := Marshal(sampleProgram(t))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	units := got.Class("Main").Method("run").Body.Units
	for _, s := range units.Snapshot() {
		br, ok := s.(ir.Branch)
		if !ok {
			continue
		}
		for _, target := range br.Targets() {
			if !units.Contains(target) {
				t.Errorf("%v jumps outside the body", s)
			}
		}
	}
}

func TestMarshalDeterministic(t *testing.T) {
	a, err := Marshal(sampleProgram(t))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(sampleProgram(t))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding is not deterministic")
	}
}

func TestDecodeRejectsVersion(t *testing.T) {
	_, err := Decode(&Image{Version: ImageVersion + 1})
	if err == nil || !strings.Contains(err.Error(), "unsupported version") {
		t.Fatalf("err = %v", err)
	}
}

func TestDecodeRejectsBadTarget(t *testing.T) {
	img, err := Encode(sampleProgram(t))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	units := img.Classes[1].Methods[0].Body.Units
	for i := range units {
		if units[i].Op == StmtGoto {
			units[i].Target = 99
		}
	}
	if _, err := Decode(img); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("err = %v", err)
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0x00}); err == nil {
		t.Fatal("expected error")
	}
}

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.img")
	if err := WriteFile(path, sampleProgram(t)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.Class("Point") == nil || got.Class("Main") == nil {
		t.Error("classes missing after reload")
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.img")); err == nil {
		t.Error("expected error for missing file")
	}
}
