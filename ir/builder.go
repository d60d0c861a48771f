package ir

import "fmt"

// Builder assembles a method body statement by statement. Jumps name their
// target by label; labels are attached to the next emitted statement and
// resolved by Build, so forward jumps are allowed.
//
//	b := ir.NewBuilder(m)
//	this := b.This()
//	tmp := b.Local("tmp", ir.Int)
//	b.Assign(tmp, ir.FieldRef(this, x))
//	b.Return(tmp)
//	body, err := b.Build()
type Builder struct {
	method  *Method
	body    *Body
	labels  map[string]Stmt
	pending []string
	jumps   []jumpFixup
}

type jumpFixup struct {
	stmt  Stmt
	label string
}

// NewBuilder starts a body for m.
func NewBuilder(m *Method) *Builder {
	return &Builder{
		method: m,
		body:   NewBody(),
		labels: make(map[string]Stmt),
	}
}

// This declares the receiver local "this" and binds it.
func (b *Builder) This() *Local {
	l := b.body.NewLocal("this", b.method.Class.Type())
	b.emit(&IdentityStmt{Local: l, Ref: &ThisRef{Class: b.method.Class}})
	return l
}

// Param declares a local named name and binds it to parameter i.
func (b *Builder) Param(i int, name string) *Local {
	t := b.method.Params[i]
	l := b.body.NewLocal(name, t)
	b.emit(&IdentityStmt{Local: l, Ref: &ParamRef{Index: i, Ty: t}})
	return l
}

// Local declares a local without emitting code.
func (b *Builder) Local(name string, t Type) *Local {
	return b.body.NewLocal(name, t)
}

// Label names the next emitted statement.
func (b *Builder) Label(name string) *Builder {
	b.pending = append(b.pending, name)
	return b
}

// Assign emits left = right.
func (b *Builder) Assign(left, right Value) *AssignStmt {
	s := &AssignStmt{Left: left, Right: right}
	b.emit(s)
	return s
}

// Invoke emits a call statement.
func (b *Builder) Invoke(call *InvokeExpr) *InvokeStmt {
	s := &InvokeStmt{Call: call}
	b.emit(s)
	return s
}

// Return emits return v; v is nil in void methods.
func (b *Builder) Return(v Value) *ReturnStmt {
	s := &ReturnStmt{Value: v}
	b.emit(s)
	return s
}

// If emits a conditional jump to label.
func (b *Builder) If(cond Value, label string) *IfStmt {
	s := &IfStmt{Cond: cond}
	b.emit(s)
	b.jumps = append(b.jumps, jumpFixup{stmt: s, label: label})
	return s
}

// Goto emits an unconditional jump to label.
func (b *Builder) Goto(label string) *GotoStmt {
	s := &GotoStmt{}
	b.emit(s)
	b.jumps = append(b.jumps, jumpFixup{stmt: s, label: label})
	return s
}

// Build resolves jumps and attaches the body to the method.
func (b *Builder) Build() (*Body, error) {
	if len(b.pending) > 0 {
		return nil, fmt.Errorf("%s: label %q not followed by a statement", b.method.Signature(), b.pending[0])
	}
	for _, j := range b.jumps {
		target, ok := b.labels[j.label]
		if !ok {
			return nil, fmt.Errorf("%s: undefined label %q", b.method.Signature(), j.label)
		}
		switch s := j.stmt.(type) {
		case *IfStmt:
			s.Target = target
		case *GotoStmt:
			s.Target = target
		}
	}
	b.method.SetBody(b.body)
	return b.body, nil
}

// MustBuild is Build for bodies constructed by code, where a bad label is a
// programming error.
func (b *Builder) MustBuild() *Body {
	body, err := b.Build()
	if err != nil {
		panic(err)
	}
	return body
}

func (b *Builder) emit(s Stmt) {
	for _, name := range b.pending {
		b.labels[name] = s
	}
	b.pending = b.pending[:0]
	b.body.Units.Add(s)
}
