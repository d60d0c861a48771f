package ir

import "fmt"

// ValidationError reports a well-formedness violation in a body.
type ValidationError struct {
	Method  string // method signature
	Index   int    // statement index, -1 for body-level problems
	Stmt    string // offending statement, empty for body-level problems
	Message string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", e.Method, e.Message)
	}
	return fmt.Sprintf("%s @%d: %s (%s)", e.Method, e.Index, e.Message, e.Stmt)
}

// Validate checks b against the IR well-formedness rules and returns the
// first violation as a *ValidationError.
//
// Rules:
//   - the body belongs to a method and is not empty
//   - control never falls off the last statement
//   - identity statements come first and bind @this or a parameter
//   - every local used is declared in the body
//   - jump targets are statements of the body, and never identity statements
//   - field references appear only in assignments, on at most one side,
//     match the static-ness of the field, and respect private visibility
//   - assignments, call arguments, receivers, conditions and return values
//     are type-correct
//   - return values, call arguments and binary operands are locals or
//     constants; conditions are boolean immediates or comparisons of them
func (b *Body) Validate() error {
	v := &validator{body: b}
	if b.Method == nil {
		return &ValidationError{Method: "<detached>", Index: -1, Message: "body has no method"}
	}
	v.sig = b.Method.Signature()
	if b.Units.Len() == 0 {
		return v.bodyErr("empty body")
	}
	if FallsThrough(b.Units.Last()) {
		return v.bodyErr("control falls off the end of the body")
	}
	seenCode := false
	for i, s := range b.Units.Snapshot() {
		v.index, v.stmt = i, s
		if _, ok := s.(*IdentityStmt); ok {
			if seenCode {
				v.fail("identity statement after code")
			}
		} else {
			seenCode = true
		}
		v.checkStmt(s)
		if v.err != nil {
			return v.err
		}
	}
	return nil
}

type validator struct {
	body  *Body
	sig   string
	index int
	stmt  Stmt
	err   *ValidationError
}

func (v *validator) bodyErr(msg string) error {
	return &ValidationError{Method: v.sig, Index: -1, Message: msg}
}

func (v *validator) fail(format string, args ...any) {
	if v.err != nil {
		return
	}
	v.err = &ValidationError{
		Method:  v.sig,
		Index:   v.index,
		Stmt:    v.stmt.String(),
		Message: fmt.Sprintf(format, args...),
	}
}

func (v *validator) checkStmt(s Stmt) {
	switch s := s.(type) {
	case *IdentityStmt:
		v.checkLocal(s.Local)
		switch ref := s.Ref.(type) {
		case *ThisRef:
			if v.body.Method.IsStatic() {
				v.fail("@this in static method")
			}
		case *ParamRef:
			if ref.Index < 0 || ref.Index >= len(v.body.Method.Params) {
				v.fail("parameter %d out of range", ref.Index)
			} else if ref.Ty != v.body.Method.Params[ref.Index] {
				v.fail("parameter %d has type %s, want %s", ref.Index, ref.Ty, v.body.Method.Params[ref.Index])
			}
		default:
			v.fail("identity statement binds %T", s.Ref)
		}
		if s.Ref != nil && !s.Ref.Type().AssignableTo(s.Local.Ty) {
			v.fail("cannot bind %s to local of type %s", s.Ref.Type(), s.Local.Ty)
		}

	case *AssignStmt:
		v.checkAssign(s)

	case *InvokeStmt:
		v.checkInvoke(s.Call)

	case *ReturnStmt:
		ret := v.body.Method.Return
		switch {
		case s.Value == nil && ret.Kind != KindVoid:
			v.fail("missing return value of type %s", ret)
		case s.Value != nil && ret.Kind == KindVoid:
			v.fail("return value in void method")
		case s.Value != nil:
			v.checkImmediate(s.Value)
			if !s.Value.Type().AssignableTo(ret) {
				v.fail("cannot return %s as %s", s.Value.Type(), ret)
			}
		}

	case *IfStmt:
		v.checkTarget(s.Target)
		switch cond := s.Cond.(type) {
		case *BinopExpr:
			if !cond.Op.IsComparison() {
				v.fail("condition is not a comparison")
			}
			v.checkBinop(cond)
		default:
			v.checkImmediate(cond)
			if cond != nil && cond.Type() != Bool {
				v.fail("condition has type %s", cond.Type())
			}
		}

	case *GotoStmt:
		v.checkTarget(s.Target)

	default:
		v.fail("unknown statement %T", s)
	}
}

func (v *validator) checkAssign(s *AssignStmt) {
	_, leftField := s.Left.(*InstanceFieldRef)
	_, leftStatic := s.Left.(*StaticFieldRef)
	switch left := s.Left.(type) {
	case *Local:
		v.checkLocal(left)
	case *InstanceFieldRef:
		v.checkFieldRef(left)
	case *StaticFieldRef:
		v.checkStaticRef(left)
	default:
		v.fail("cannot assign to %T", s.Left)
		return
	}

	switch right := s.Right.(type) {
	case *Local, *Constant:
		v.checkImmediate(right)
	case *InstanceFieldRef:
		if leftField || leftStatic {
			v.fail("field reference on both sides")
		}
		v.checkFieldRef(right)
	case *StaticFieldRef:
		if leftField || leftStatic {
			v.fail("field reference on both sides")
		}
		v.checkStaticRef(right)
	case *InvokeExpr:
		if leftField || leftStatic {
			v.fail("call result stored directly into a field")
		}
		v.checkInvoke(right)
		if right.Method.Return.Kind == KindVoid {
			v.fail("void call used as a value")
		}
	case *NewExpr:
		if leftField || leftStatic {
			v.fail("allocation stored directly into a field")
		}
	case *BinopExpr:
		if leftField || leftStatic {
			v.fail("expression stored directly into a field")
		}
		v.checkBinop(right)
	default:
		v.fail("cannot assign from %T", s.Right)
		return
	}
	if v.err == nil && !s.Right.Type().AssignableTo(s.Left.Type()) {
		v.fail("cannot assign %s to %s", s.Right.Type(), s.Left.Type())
	}
}

func (v *validator) checkFieldRef(r *InstanceFieldRef) {
	v.checkLocal(r.Base)
	if r.Field.IsStatic() {
		v.fail("instance access to static field %s", r.Field.Name)
	}
	if r.Base.Ty != r.Field.Class.Type() {
		v.fail("base %s has type %s, field belongs to %s", r.Base.Name, r.Base.Ty, r.Field.Class.Name)
	}
	v.checkVisible(r.Field)
}

func (v *validator) checkStaticRef(r *StaticFieldRef) {
	if !r.Field.IsStatic() {
		v.fail("static access to instance field %s", r.Field.Name)
	}
	v.checkVisible(r.Field)
}

func (v *validator) checkVisible(f *Field) {
	if f.IsPrivate() && f.Class != v.body.Class() {
		v.fail("private field %s accessed from %s", f.Signature(), v.body.Class())
	}
}

func (v *validator) checkInvoke(call *InvokeExpr) {
	m := call.Method
	if m == nil || m.Class == nil || !m.Class.HasMethod(m) {
		v.fail("call to unresolved method")
		return
	}
	if len(call.Args) != len(m.Params) {
		v.fail("%s takes %d arguments, got %d", m.Name, len(m.Params), len(call.Args))
		return
	}
	for i, a := range call.Args {
		v.checkImmediate(a)
		if a != nil && !a.Type().AssignableTo(m.Params[i]) {
			v.fail("argument %d has type %s, want %s", i, a.Type(), m.Params[i])
		}
	}
	switch call.Kind {
	case InvokeStatic:
		if call.Base != nil || !m.IsStatic() {
			v.fail("static call to instance method %s", m.Name)
		}
	default:
		if call.Base == nil || m.IsStatic() {
			v.fail("%s of %s needs a receiver", call.Kind, m.Name)
			return
		}
		v.checkLocal(call.Base)
		if call.Base.Ty != m.Class.Type() {
			v.fail("receiver %s has type %s, method belongs to %s", call.Base.Name, call.Base.Ty, m.Class.Name)
		}
	}
}

func (v *validator) checkBinop(e *BinopExpr) {
	v.checkImmediate(e.X)
	v.checkImmediate(e.Y)
	if v.err != nil {
		return
	}
	switch e.Op {
	case OpEq, OpNe:
		if !e.X.Type().AssignableTo(e.Y.Type()) && !e.Y.Type().AssignableTo(e.X.Type()) {
			v.fail("cannot compare %s with %s", e.X.Type(), e.Y.Type())
		}
	default:
		if e.X.Type() != Int || e.Y.Type() != Int {
			v.fail("operator %s needs int operands", e.Op)
		}
	}
}

func (v *validator) checkImmediate(val Value) {
	switch val := val.(type) {
	case *Local:
		v.checkLocal(val)
	case *Constant:
	case nil:
		v.fail("missing operand")
	default:
		v.fail("operand %s is not a local or constant", val)
	}
}

func (v *validator) checkLocal(l *Local) {
	if l == nil {
		v.fail("missing local")
		return
	}
	if !v.body.HasLocal(l) {
		v.fail("local %s is not declared in the body", l.Name)
	}
}

func (v *validator) checkTarget(t Stmt) {
	if t == nil || !v.body.Units.Contains(t) {
		v.fail("jump target is not in the body")
		return
	}
	if _, ok := t.(*IdentityStmt); ok {
		v.fail("jump to identity statement")
	}
}
