package privatize

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/encap/alias"
	"github.com/chazu/encap/ir"
	"github.com/chazu/encap/pipeline"
)

func TestRegisterUnderPhaseName(t *testing.T) {
	f := newFixture(t, nil)
	tr := NewTransformer(f.prog, Options{})
	pack := pipeline.NewPack("jtp")
	if err := tr.Register(pack); err != nil {
		t.Fatalf("Register: %v", err)
	}
	phases := pack.Phases()
	if len(phases) != 1 || phases[0] != PhaseName {
		t.Fatalf("phases = %v, want [%s]", phases, PhaseName)
	}
	if err := tr.Register(pack); err == nil {
		t.Error("registering twice should fail")
	}
}

func TestTransformWholeProgram(t *testing.T) {
	tests := []struct {
		name     string
		opts     func(f *fixture) Options
		getters  int
		hoisted  bool
		minLoops int64
	}{
		{
			name:    "no optimization",
			opts:    func(*fixture) Options { return Options{} },
			getters: 1,
		},
		{
			name:    "optimize without oracle",
			opts:    func(*fixture) Options { return Options{Optimize: true} },
			getters: 1,
		},
		{
			name: "optimize with type oracle",
			opts: func(f *fixture) Options {
				return Options{Optimize: true, Oracle: alias.NewTypeOracle(f.prog)}
			},
			getters:  1,
			hoisted:  true,
			minLoops: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			tr := f.transform(t, tt.opts(f))

			for _, body := range f.prog.Bodies() {
				if err := body.Validate(); err != nil {
					t.Errorf("%s invalid: %v", body.Method.Signature(), err)
				}
				for _, s := range body.Units.Snapshot() {
					if ref, _ := ir.FieldRefOf(s); ref != nil && !body.Method.IsAccessor() {
						t.Errorf("%s still accesses %s directly", body.Method.Signature(), ref.Field.Name)
					}
				}
			}

			stats := tr.Stats()
			// reset, helper and run; accessors are added after the snapshot.
			if stats.Bodies != 3 {
				t.Errorf("Bodies = %d, want 3", stats.Bodies)
			}
			if stats.Classes != 2 || stats.Fields != 2 {
				t.Errorf("Classes, Fields = %d, %d, want 2, 2", stats.Classes, stats.Fields)
			}
			// reset writes x and y, helper reads and writes x, run reads x.
			if stats.Reads != 2 || stats.Writes != 3 {
				t.Errorf("Reads, Writes = %d, %d, want 2, 3", stats.Reads, stats.Writes)
			}
			if stats.Loops < tt.minLoops {
				t.Errorf("Loops = %d, want at least %d", stats.Loops, tt.minLoops)
			}
			if hoisted := stats.Selected > 0; hoisted != tt.hoisted {
				t.Errorf("hoisted = %v, want %v (%s)", hoisted, tt.hoisted, stats)
			}
			if got := callsIn(f.run.Body.Units.Snapshot(), f.x.Getter()); got != tt.getters {
				t.Errorf("run calls getX %d times, want %d", got, tt.getters)
			}

			_, got := f.execute(t, 7)
			if got.Int != 21 {
				t.Errorf("run = %d, want 21", got.Int)
			}
		})
	}
}

func TestTransformMovesGetterOutOfLoop(t *testing.T) {
	f := newFixture(t, nil)
	f.transform(t, Options{Optimize: true, Oracle: alias.NewTypeOracle(f.prog)})

	loop := f.loopOf(t)
	if n := callsIn(loop.Stmts, f.x.Getter()); n != 0 {
		t.Errorf("loop still calls getX %d times:\n%s", n, f.run.Body)
	}
	in, _ := f.execute(t, 10)
	if n := in.Calls("getX"); n != 1 {
		t.Errorf("getX ran %d times, want 1", n)
	}
}

func TestTransformSkippedAfterFailedPhase(t *testing.T) {
	f := newFixture(t, nil)
	tr := NewTransformer(f.prog, Options{Optimize: true, Oracle: alias.NewTypeOracle(f.prog)})

	broken := errors.New("broken")
	pack := pipeline.NewPack("jtp")
	if err := pack.Add("jtp.break", pipeline.BodyTransformerFunc(func(body *ir.Body) error {
		if body == f.run.Body {
			return broken
		}
		return nil
	})); err != nil {
		t.Fatal(err)
	}
	if err := tr.Register(pack); err != nil {
		t.Fatal(err)
	}

	err := pack.Run(f.prog)
	if !errors.Is(err, broken) {
		t.Fatalf("Run = %v, want %v", err, broken)
	}
	if tr.Stats().Bodies != 0 {
		t.Error("privatization ran after a failed phase")
	}
}

func TestStatsString(t *testing.T) {
	s := Stats{Bodies: 3, Classes: 2, Fields: 4, Reads: 5, Writes: 1, Loops: 1, Selected: 1, Locals: 2, Replaced: 3}
	for _, want := range []string{"3 bodies", "4 fields privatized", "5 reads", "2 locals hoisted", "3 calls replaced"} {
		if !strings.Contains(s.String(), want) {
			t.Errorf("%q missing %q", s, want)
		}
	}
}

func TestTransformPrivatizesClassWithoutMethods(t *testing.T) {
	prog := ir.NewProgram()
	point := prog.MustAddClass(ir.NewClass("Point", 0))
	x := point.AddField("x", ir.Int, ir.ModPublic)
	mainClass := prog.MustAddClass(ir.NewClass("Main", 0))
	run := mainClass.AddMethod(ir.NewMethod("run", []ir.Type{point.Type()}, ir.Int, ir.ModStatic))
	b := ir.NewBuilder(run)
	p := b.Param(0, "p")
	v := b.Local("v", ir.Int)
	b.Assign(v, ir.FieldRef(p, x))
	w := b.Local("w", ir.Int)
	b.Assign(w, ir.Binop(ir.OpAdd, v, ir.IntConst(1)))
	b.Assign(ir.FieldRef(p, x), w)
	b.Return(v)
	b.MustBuild()

	tr := NewTransformer(prog, Options{})
	pack := pipeline.NewPack("jtp")
	if err := tr.Register(pack); err != nil {
		t.Fatal(err)
	}
	if err := pack.Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !x.IsPrivate() || x.Getter() == nil || x.Setter() == nil {
		t.Fatalf("field of a class without methods not privatized:\n%s", ir.DisassembleClass(point))
	}
	for _, s := range run.Body.Units.Snapshot() {
		if ref, _ := ir.FieldRefOf(s); ref != nil {
			t.Errorf("direct access left: %v", s)
		}
	}
	if st := tr.Stats(); st.Classes != 2 || st.Reads != 1 || st.Writes != 1 {
		t.Errorf("stats = %s", st)
	}
}
