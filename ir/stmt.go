package ir

import "fmt"

// Stmt is a single statement of a body.
type Stmt interface {
	// Uses returns the values read by the statement, outermost first.
	Uses() []Value
	String() string
	stmt()
}

// Branch is implemented by statements that may transfer control to a
// target statement.
type Branch interface {
	Stmt
	Targets() []Stmt
	// Retarget replaces every target equal to from with to.
	Retarget(from, to Stmt)
}

// IdentityStmt binds Local to the receiver or a parameter on entry.
type IdentityStmt struct {
	Local *Local
	Ref   Value // *ThisRef or *ParamRef
}

func (s *IdentityStmt) Uses() []Value  { return nil }
func (s *IdentityStmt) String() string { return fmt.Sprintf("%s := %s", s.Local, s.Ref) }
func (*IdentityStmt) stmt()            {}

// AssignStmt stores Right into Left. Left is a local or a field reference.
type AssignStmt struct {
	Left  Value
	Right Value
}

func (s *AssignStmt) Uses() []Value {
	uses := usesOf(s.Right)
	if r, ok := s.Left.(*InstanceFieldRef); ok {
		uses = append(uses, r.Base)
	}
	return uses
}

func (s *AssignStmt) String() string { return fmt.Sprintf("%s = %s", s.Left, s.Right) }
func (*AssignStmt) stmt()            {}

// InvokeStmt performs a call and discards its result.
type InvokeStmt struct {
	Call *InvokeExpr
}

func (s *InvokeStmt) Uses() []Value  { return usesOf(s.Call) }
func (s *InvokeStmt) String() string { return s.Call.String() }
func (*InvokeStmt) stmt()            {}

// ReturnStmt leaves the method. Value is nil in void methods.
type ReturnStmt struct {
	Value Value
}

func (s *ReturnStmt) Uses() []Value {
	if s.Value == nil {
		return nil
	}
	return []Value{s.Value}
}

func (s *ReturnStmt) String() string {
	if s.Value == nil {
		return "return"
	}
	return "return " + s.Value.String()
}
func (*ReturnStmt) stmt() {}

// IfStmt jumps to Target when Cond holds, and falls through otherwise.
type IfStmt struct {
	Cond   Value
	Target Stmt
}

func (s *IfStmt) Uses() []Value   { return usesOf(s.Cond) }
func (s *IfStmt) String() string  { return fmt.Sprintf("if %s goto %s", s.Cond, targetString(s.Target)) }
func (s *IfStmt) Targets() []Stmt { return []Stmt{s.Target} }
func (s *IfStmt) Retarget(from, to Stmt) {
	if s.Target == from {
		s.Target = to
	}
}
func (*IfStmt) stmt() {}

// GotoStmt jumps to Target unconditionally.
type GotoStmt struct {
	Target Stmt
}

func (s *GotoStmt) Uses() []Value   { return nil }
func (s *GotoStmt) String() string  { return "goto " + targetString(s.Target) }
func (s *GotoStmt) Targets() []Stmt { return []Stmt{s.Target} }
func (s *GotoStmt) Retarget(from, to Stmt) {
	if s.Target == from {
		s.Target = to
	}
}
func (*GotoStmt) stmt() {}

// FallsThrough reports whether control may continue to the statement
// following s.
func FallsThrough(s Stmt) bool {
	switch s.(type) {
	case *GotoStmt, *ReturnStmt:
		return false
	}
	return true
}

// InvokeOf returns the call performed by s, if any.
func InvokeOf(s Stmt) *InvokeExpr {
	switch s := s.(type) {
	case *InvokeStmt:
		return s.Call
	case *AssignStmt:
		if call, ok := s.Right.(*InvokeExpr); ok {
			return call
		}
	}
	return nil
}

// FieldRefOf returns the instance field reference read or written by s, and
// whether it is written.
func FieldRefOf(s Stmt) (ref *InstanceFieldRef, write bool) {
	a, ok := s.(*AssignStmt)
	if !ok {
		return nil, false
	}
	if r, ok := a.Left.(*InstanceFieldRef); ok {
		return r, true
	}
	if r, ok := a.Right.(*InstanceFieldRef); ok {
		return r, false
	}
	return nil, false
}

// usesOf flattens v into the values it reads, v itself first.
func usesOf(v Value) []Value {
	if v == nil {
		return nil
	}
	uses := []Value{v}
	switch v := v.(type) {
	case *InstanceFieldRef:
		uses = append(uses, v.Base)
	case *InvokeExpr:
		if v.Base != nil {
			uses = append(uses, v.Base)
		}
		for _, a := range v.Args {
			uses = append(uses, usesOf(a)...)
		}
	case *BinopExpr:
		uses = append(uses, usesOf(v.X)...)
		uses = append(uses, usesOf(v.Y)...)
	}
	return uses
}

// targetString renders a jump target outside of a body listing, where no
// label is available. Branch targets are not expanded since they may cycle.
func targetString(s Stmt) string {
	switch s.(type) {
	case nil:
		return "<nil>"
	case *IfStmt:
		return "[if]"
	case *GotoStmt:
		return "[goto]"
	}
	return "[" + s.String() + "]"
}
