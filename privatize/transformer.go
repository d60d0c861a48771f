package privatize

import (
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-set/v3"
	"github.com/tliron/commonlog"

	"github.com/chazu/encap/alias"
	"github.com/chazu/encap/ir"
	"github.com/chazu/encap/ir/loops"
	"github.com/chazu/encap/pipeline"
)

// PhaseName is the pipeline phase the transformer registers under.
const PhaseName = "jtp.privatize"

var log = commonlog.GetLogger("encap.privatize")

// Options configures a Transformer.
type Options struct {
	// Optimize enables loop accessor hoisting.
	Optimize bool
	// Oracle answers alias queries for hoisting. Hoisting is skipped when
	// it is nil.
	Oracle alias.Oracle
	// Logger replaces the package logger when set.
	Logger commonlog.Logger
}

// Stats summarizes a run.
type Stats struct {
	Bodies   int64
	Classes  int64
	Fields   int64
	Reads    int64
	Writes   int64
	Loops    int64
	Selected int64
	Locals   int64
	Replaced int64
}

func (s Stats) String() string {
	return fmt.Sprintf("%d bodies, %d classes, %d fields privatized; %d reads, %d writes rewritten; %d loops, %d receivers, %d locals hoisted, %d calls replaced",
		s.Bodies, s.Classes, s.Fields, s.Reads, s.Writes, s.Loops, s.Selected, s.Locals, s.Replaced)
}

// Transformer privatizes the fields of a program one body at a time. It is
// a pipeline.BodyTransformer; Transform is called concurrently, once for
// every body of the program.
type Transformer struct {
	coord *Coordinator
	opts  Options
	log   commonlog.Logger

	bodies, classes, fields           atomic.Int64
	reads, writes                     atomic.Int64
	loops, selected, locals, replaced atomic.Int64
}

var _ pipeline.BodyTransformer = (*Transformer)(nil)

// NewTransformer creates the transformer for one run over prog.
func NewTransformer(prog *ir.Program, opts Options) *Transformer {
	t := &Transformer{coord: NewCoordinator(prog), opts: opts, log: opts.Logger}
	if t.log == nil {
		t.log = log
	}
	return t
}

// Register adds t to pack under PhaseName.
func (t *Transformer) Register(pack *pipeline.Pack) error {
	return pack.Add(PhaseName, t)
}

// Coordinator returns the coordinator shared by the transformer's tasks.
func (t *Transformer) Coordinator() *Coordinator {
	return t.coord
}

// Transform runs the pass on one body: synthesize the body's class if this
// task claims it, wait until every class is synthesized, rewrite field
// accesses, then hoist accessor calls out of loops when optimizing.
func (t *Transformer) Transform(body *ir.Body) error {
	t.bodies.Add(1)
	t.coord.Enter(body, func(c *ir.Class) {
		n := Synthesize(c)
		t.classes.Add(1)
		t.fields.Add(int64(n))
		t.log.Debugf("privatized %d fields of %s", n, c.Name)
	})

	rs := Rewrite(body, t.coord)
	t.reads.Add(int64(rs.Reads))
	t.writes.Add(int64(rs.Writes))

	if !t.opts.Optimize || t.opts.Oracle == nil || body.Method.IsAccessor() {
		return nil
	}
	return t.hoistLoops(body)
}

// hoistLoops hoists every loop of body once, innermost first. Loops are
// found again after each change so that an enclosing loop sees the loads
// and stores placed around the loops it contains.
func (t *Transformer) hoistLoops(body *ir.Body) error {
	handled := set.New[ir.Stmt](0)
	for {
		var next *loops.Loop
		for _, l := range loops.Find(body) {
			if !handled.Contains(l.Header) {
				next = l
				break
			}
		}
		if next == nil {
			return nil
		}
		handled.Insert(next.Header)
		t.loops.Add(1)

		hs, err := Hoist(body, next, t.coord, t.opts.Oracle)
		if err != nil {
			return fmt.Errorf("%s: %w", body.Method.Signature(), err)
		}
		t.selected.Add(int64(hs.Selected))
		t.locals.Add(int64(hs.Locals))
		t.replaced.Add(int64(hs.Replaced))
		if hs.Selected > 0 {
			t.log.Debugf("%s: hoisted %d receivers into %d locals", body.Method.Signature(), hs.Selected, hs.Locals)
		}
	}
}

// Stats returns the counters accumulated so far.
func (t *Transformer) Stats() Stats {
	return Stats{
		Bodies:   t.bodies.Load(),
		Classes:  t.classes.Load(),
		Fields:   t.fields.Load(),
		Reads:    t.reads.Load(),
		Writes:   t.writes.Load(),
		Loops:    t.loops.Load(),
		Selected: t.selected.Load(),
		Locals:   t.locals.Load(),
		Replaced: t.replaced.Load(),
	}
}
