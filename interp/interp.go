// Package interp executes IR programs and records every field access and
// call they make.
//
// The interpreter exists to check transformations: a program and its
// transformed copy, run on the same inputs, must compute the same results
// and leave the same heap behind. The recorded trace also lets tests count
// how often a method ran.
package interp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/encap/ir"
)

// DefaultStepLimit bounds the statements executed by one Interpreter.
const DefaultStepLimit = 1_000_000

// MaxCallDepth bounds the call stack.
const MaxCallDepth = 512

// ErrStepLimit is returned when a run executes more statements than allowed.
var ErrStepLimit = errors.New("interp: step limit exceeded")

// ---------------------------------------------------------------------------
// Values and objects
// ---------------------------------------------------------------------------

// Value is a runtime value. Ints and booleans live in Int; references live
// in Obj, with nil meaning null.
type Value struct {
	Int int64
	Obj *Object
}

// IntValue returns an int or boolean value.
func IntValue(v int64) Value { return Value{Int: v} }

// RefValue returns a reference to o.
func RefValue(o *Object) Value { return Value{Obj: o} }

func (v Value) String() string {
	if v.Obj != nil {
		return fmt.Sprintf("#%d", v.Obj.ID)
	}
	return fmt.Sprint(v.Int)
}

// Object is a heap-allocated instance.
type Object struct {
	ID     int
	Class  *ir.Class
	fields map[*ir.Field]Value
}

// Get returns the value of the named field, or the zero value.
func (o *Object) Get(name string) Value {
	if f := o.Class.Field(name); f != nil {
		return o.fields[f]
	}
	return Value{}
}

// Set stores v in the named field. It reports false if there is no such
// field.
func (o *Object) Set(name string, v Value) bool {
	f := o.Class.Field(name)
	if f == nil || f.IsStatic() {
		return false
	}
	o.fields[f] = v
	return true
}

func (o *Object) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s{", o.ID, o.Class.Name)
	sep := ""
	for _, f := range o.Class.Fields {
		if f.IsStatic() {
			continue
		}
		fmt.Fprintf(&b, "%s%s=%s", sep, f.Name, o.fields[f])
		sep = " "
	}
	b.WriteString("}")
	return b.String()
}

// ---------------------------------------------------------------------------
// Trace
// ---------------------------------------------------------------------------

// EventKind classifies trace events.
type EventKind uint8

const (
	EventRead EventKind = iota + 1
	EventWrite
	EventCall
)

// Event is one observable action of a run. Object is 0 for static fields
// and static calls.
type Event struct {
	Kind   EventKind
	Object int
	Field  *ir.Field
	Method *ir.Method
	Value  Value
}

func (e Event) String() string {
	switch e.Kind {
	case EventRead:
		return fmt.Sprintf("read #%d.%s = %s", e.Object, e.Field.Signature(), e.Value)
	case EventWrite:
		return fmt.Sprintf("write #%d.%s = %s", e.Object, e.Field.Signature(), e.Value)
	case EventCall:
		return fmt.Sprintf("call #%d.%s", e.Object, e.Method.Signature())
	default:
		return fmt.Sprintf("event(%d)", e.Kind)
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// RuntimeError reports a failure at a statement of a running method.
type RuntimeError struct {
	Method  string
	Index   int
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s @%d: %s", e.Method, e.Index, e.Message)
}

// ---------------------------------------------------------------------------
// Interpreter
// ---------------------------------------------------------------------------

// Interpreter runs methods of one program against one heap. It is not safe
// for concurrent use.
type Interpreter struct {
	prog      *ir.Program
	objects   []*Object
	statics   map[*ir.Field]Value
	trace     []Event
	steps     int
	stepLimit int
	depth     int
}

// New creates an interpreter with an empty heap.
func New(prog *ir.Program) *Interpreter {
	return &Interpreter{
		prog:      prog,
		statics:   make(map[*ir.Field]Value),
		stepLimit: DefaultStepLimit,
	}
}

// SetStepLimit changes the number of statements a run may execute.
func (in *Interpreter) SetStepLimit(n int) {
	in.stepLimit = n
}

// NewObject allocates a zeroed instance of c.
func (in *Interpreter) NewObject(c *ir.Class) *Object {
	o := &Object{ID: len(in.objects) + 1, Class: c, fields: make(map[*ir.Field]Value)}
	in.objects = append(in.objects, o)
	return o
}

// Objects returns the heap in allocation order.
func (in *Interpreter) Objects() []*Object {
	return in.objects
}

// Trace returns every event recorded so far.
func (in *Interpreter) Trace() []Event {
	return in.trace
}

// FieldTrace returns the field reads and writes of the trace, rendered.
func (in *Interpreter) FieldTrace() []string {
	var out []string
	for _, e := range in.trace {
		if e.Kind == EventRead || e.Kind == EventWrite {
			out = append(out, e.String())
		}
	}
	return out
}

// Calls counts the recorded calls of methods with the given name.
func (in *Interpreter) Calls(name string) int {
	n := 0
	for _, e := range in.trace {
		if e.Kind == EventCall && e.Method.Name == name {
			n++
		}
	}
	return n
}

// Steps returns the number of statements executed.
func (in *Interpreter) Steps() int {
	return in.steps
}

// Dump renders the heap and the static fields deterministically.
func (in *Interpreter) Dump() string {
	var b strings.Builder
	for _, o := range in.objects {
		b.WriteString(o.String())
		b.WriteByte('\n')
	}
	for _, c := range in.prog.Classes {
		for _, f := range c.Fields {
			if v, ok := in.statics[f]; ok {
				fmt.Fprintf(&b, "%s = %s\n", f.Signature(), v)
			}
		}
	}
	return b.String()
}

// Run executes m with the given receiver (nil for static methods) and
// arguments and returns its result.
func (in *Interpreter) Run(m *ir.Method, recv *Object, args ...Value) (Value, error) {
	if len(args) != len(m.Params) {
		return Value{}, fmt.Errorf("interp: %s takes %d arguments, got %d", m.Signature(), len(m.Params), len(args))
	}
	return in.call(m, recv, args)
}

// frame is the execution state of one method invocation.
type frame struct {
	method *ir.Method
	recv   *Object
	args   []Value
	locals map[*ir.Local]Value
	units  []ir.Stmt
	index  map[ir.Stmt]int
	pc     int
}

func (in *Interpreter) call(m *ir.Method, recv *Object, args []Value) (Value, error) {
	if m.Body == nil {
		return Value{}, fmt.Errorf("interp: %s has no body", m.Signature())
	}
	if in.depth >= MaxCallDepth {
		return Value{}, fmt.Errorf("interp: %s: call depth exceeds %d", m.Signature(), MaxCallDepth)
	}
	in.depth++
	defer func() { in.depth-- }()

	units := m.Body.Units.Snapshot()
	f := &frame{
		method: m,
		recv:   recv,
		args:   args,
		locals: make(map[*ir.Local]Value, len(m.Body.Locals)),
		units:  units,
		index:  make(map[ir.Stmt]int, len(units)),
	}
	for i, s := range units {
		f.index[s] = i
	}

	for f.pc < len(f.units) {
		in.steps++
		if in.steps > in.stepLimit {
			return Value{}, ErrStepLimit
		}
		s := f.units[f.pc]
		next := f.pc + 1
		switch s := s.(type) {
		case *ir.IdentityStmt:
			switch ref := s.Ref.(type) {
			case *ir.ThisRef:
				f.locals[s.Local] = RefValue(f.recv)
			case *ir.ParamRef:
				if ref.Index >= len(f.args) {
					return Value{}, in.fail(f, "no parameter %d", ref.Index)
				}
				f.locals[s.Local] = f.args[ref.Index]
			default:
				return Value{}, in.fail(f, "bad identity reference %T", ref)
			}
		case *ir.AssignStmt:
			v, err := in.eval(f, s.Right)
			if err != nil {
				return Value{}, err
			}
			if err := in.store(f, s.Left, v); err != nil {
				return Value{}, err
			}
		case *ir.InvokeStmt:
			if _, err := in.eval(f, s.Call); err != nil {
				return Value{}, err
			}
		case *ir.ReturnStmt:
			if s.Value == nil {
				return Value{}, nil
			}
			return in.eval(f, s.Value)
		case *ir.IfStmt:
			c, err := in.eval(f, s.Cond)
			if err != nil {
				return Value{}, err
			}
			if c.Int != 0 {
				t, ok := f.index[s.Target]
				if !ok {
					return Value{}, in.fail(f, "jump target outside the body")
				}
				next = t
			}
		case *ir.GotoStmt:
			t, ok := f.index[s.Target]
			if !ok {
				return Value{}, in.fail(f, "jump target outside the body")
			}
			next = t
		default:
			return Value{}, in.fail(f, "unknown statement %T", s)
		}
		f.pc = next
	}
	return Value{}, in.fail(f, "control fell off the end of the body")
}

func (in *Interpreter) fail(f *frame, format string, args ...any) error {
	return &RuntimeError{Method: f.method.Signature(), Index: f.pc, Message: fmt.Sprintf(format, args...)}
}

func (in *Interpreter) eval(f *frame, v ir.Value) (Value, error) {
	switch v := v.(type) {
	case *ir.Local:
		return f.locals[v], nil
	case *ir.Constant:
		if v.Ty.Kind == ir.KindNull {
			return Value{}, nil
		}
		return IntValue(v.Val), nil
	case *ir.InstanceFieldRef:
		o := f.locals[v.Base].Obj
		if o == nil {
			return Value{}, in.fail(f, "null dereference reading %s", v.Field.Signature())
		}
		val := o.fields[v.Field]
		in.trace = append(in.trace, Event{Kind: EventRead, Object: o.ID, Field: v.Field, Value: val})
		return val, nil
	case *ir.StaticFieldRef:
		val := in.statics[v.Field]
		in.trace = append(in.trace, Event{Kind: EventRead, Field: v.Field, Value: val})
		return val, nil
	case *ir.InvokeExpr:
		return in.invoke(f, v)
	case *ir.NewExpr:
		return RefValue(in.NewObject(v.Class)), nil
	case *ir.BinopExpr:
		x, err := in.eval(f, v.X)
		if err != nil {
			return Value{}, err
		}
		y, err := in.eval(f, v.Y)
		if err != nil {
			return Value{}, err
		}
		return binop(v.Op, x, y), nil
	default:
		return Value{}, in.fail(f, "cannot evaluate %T", v)
	}
}

func (in *Interpreter) store(f *frame, dst ir.Value, v Value) error {
	switch dst := dst.(type) {
	case *ir.Local:
		f.locals[dst] = v
	case *ir.InstanceFieldRef:
		o := f.locals[dst.Base].Obj
		if o == nil {
			return in.fail(f, "null dereference writing %s", dst.Field.Signature())
		}
		o.fields[dst.Field] = v
		in.trace = append(in.trace, Event{Kind: EventWrite, Object: o.ID, Field: dst.Field, Value: v})
	case *ir.StaticFieldRef:
		in.statics[dst.Field] = v
		in.trace = append(in.trace, Event{Kind: EventWrite, Field: dst.Field, Value: v})
	default:
		return in.fail(f, "cannot assign to %T", dst)
	}
	return nil
}

func (in *Interpreter) invoke(f *frame, call *ir.InvokeExpr) (Value, error) {
	var recv *Object
	if call.Kind != ir.InvokeStatic {
		if call.Base == nil {
			return Value{}, in.fail(f, "instance call without receiver")
		}
		recv = f.locals[call.Base].Obj
		if recv == nil {
			return Value{}, in.fail(f, "null receiver calling %s", call.Method.Signature())
		}
	}
	args := make([]Value, len(call.Args))
	for i, a := range call.Args {
		v, err := in.eval(f, a)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	ev := Event{Kind: EventCall, Method: call.Method}
	if recv != nil {
		ev.Object = recv.ID
	}
	in.trace = append(in.trace, ev)
	return in.call(call.Method, recv, args)
}

func binop(op ir.BinOp, x, y Value) Value {
	b := func(c bool) Value {
		if c {
			return IntValue(1)
		}
		return IntValue(0)
	}
	switch op {
	case ir.OpAdd:
		return IntValue(x.Int + y.Int)
	case ir.OpSub:
		return IntValue(x.Int - y.Int)
	case ir.OpMul:
		return IntValue(x.Int * y.Int)
	case ir.OpEq:
		return b(x == y)
	case ir.OpNe:
		return b(x != y)
	case ir.OpLt:
		return b(x.Int < y.Int)
	case ir.OpLe:
		return b(x.Int <= y.Int)
	case ir.OpGt:
		return b(x.Int > y.Int)
	case ir.OpGe:
		return b(x.Int >= y.Int)
	default:
		return Value{}
	}
}
