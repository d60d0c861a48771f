package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is an operand or expression appearing in a statement.
type Value interface {
	Type() Type
	String() string
}

// Local is a typed local variable of a body. Locals are compared by
// identity.
type Local struct {
	Name string
	Ty   Type
}

func (l *Local) Type() Type     { return l.Ty }
func (l *Local) String() string { return l.Name }

// Constant is an int, boolean or null literal.
type Constant struct {
	Ty  Type
	Val int64
}

// IntConst returns an int literal.
func IntConst(v int64) *Constant { return &Constant{Ty: Int, Val: v} }

// BoolConst returns a boolean literal.
func BoolConst(v bool) *Constant {
	c := &Constant{Ty: Bool}
	if v {
		c.Val = 1
	}
	return c
}

// NullConst returns the null literal.
func NullConst() *Constant { return &Constant{Ty: Null} }

func (c *Constant) Type() Type { return c.Ty }

func (c *Constant) String() string {
	switch c.Ty.Kind {
	case KindBool:
		return strconv.FormatBool(c.Val != 0)
	case KindNull:
		return "null"
	default:
		return strconv.FormatInt(c.Val, 10)
	}
}

// InstanceFieldRef reads or writes a non-static field through Base.
type InstanceFieldRef struct {
	Base  *Local
	Field *Field
}

// FieldRef returns base.f.
func FieldRef(base *Local, f *Field) *InstanceFieldRef {
	return &InstanceFieldRef{Base: base, Field: f}
}

func (r *InstanceFieldRef) Type() Type { return r.Field.Type }
func (r *InstanceFieldRef) String() string {
	return r.Base.Name + "." + r.Field.Signature()
}

// StaticFieldRef reads or writes a static field.
type StaticFieldRef struct {
	Field *Field
}

func (r *StaticFieldRef) Type() Type     { return r.Field.Type }
func (r *StaticFieldRef) String() string { return r.Field.Signature() }

// InvokeKind selects the dispatch of an InvokeExpr.
type InvokeKind uint8

const (
	InvokeVirtual InvokeKind = iota
	InvokeStatic
	InvokeSpecial
)

func (k InvokeKind) String() string {
	switch k {
	case InvokeVirtual:
		return "virtualinvoke"
	case InvokeStatic:
		return "staticinvoke"
	case InvokeSpecial:
		return "specialinvoke"
	default:
		return fmt.Sprintf("InvokeKind(%d)", k)
	}
}

// InvokeExpr calls Method. Base is nil for static calls.
type InvokeExpr struct {
	Kind   InvokeKind
	Base   *Local
	Method *Method
	Args   []Value
}

// Virtual returns base.m(args...).
func Virtual(base *Local, m *Method, args ...Value) *InvokeExpr {
	return &InvokeExpr{Kind: InvokeVirtual, Base: base, Method: m, Args: args}
}

// Static returns m(args...).
func Static(m *Method, args ...Value) *InvokeExpr {
	return &InvokeExpr{Kind: InvokeStatic, Method: m, Args: args}
}

// Special returns a non-dispatching call such as a constructor call.
func Special(base *Local, m *Method, args ...Value) *InvokeExpr {
	return &InvokeExpr{Kind: InvokeSpecial, Base: base, Method: m, Args: args}
}

func (e *InvokeExpr) Type() Type { return e.Method.Return }

func (e *InvokeExpr) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	if e.Base == nil {
		return fmt.Sprintf("%s %s(%s)", e.Kind, e.Method.Signature(), strings.Join(args, ", "))
	}
	return fmt.Sprintf("%s %s.%s(%s)", e.Kind, e.Base.Name, e.Method.Signature(), strings.Join(args, ", "))
}

// NewExpr allocates an instance of Class.
type NewExpr struct {
	Class *Class
}

// New returns new C.
func New(c *Class) *NewExpr { return &NewExpr{Class: c} }

func (e *NewExpr) Type() Type     { return e.Class.Type() }
func (e *NewExpr) String() string { return "new " + e.Class.Name }

// BinOp is a binary operator.
type BinOp uint8

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var binOpNames = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
}

func (op BinOp) String() string {
	if int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return fmt.Sprintf("BinOp(%d)", op)
}

// IsComparison reports whether op yields a boolean.
func (op BinOp) IsComparison() bool {
	return op >= OpEq
}

// BinopExpr is X op Y over immediates.
type BinopExpr struct {
	Op   BinOp
	X, Y Value
}

// Binop returns x op y.
func Binop(op BinOp, x, y Value) *BinopExpr { return &BinopExpr{Op: op, X: x, Y: y} }

func (e *BinopExpr) Type() Type {
	if e.Op.IsComparison() {
		return Bool
	}
	return Int
}

func (e *BinopExpr) String() string {
	return fmt.Sprintf("%s %s %s", e.X, e.Op, e.Y)
}

// ThisRef is the receiver of the executing method; only valid in an
// IdentityStmt.
type ThisRef struct {
	Class *Class
}

func (r *ThisRef) Type() Type     { return r.Class.Type() }
func (r *ThisRef) String() string { return "@this: " + r.Class.Name }

// ParamRef is the Index'th parameter of the executing method; only valid in
// an IdentityStmt.
type ParamRef struct {
	Index int
	Ty    Type
}

func (r *ParamRef) Type() Type     { return r.Ty }
func (r *ParamRef) String() string { return fmt.Sprintf("@parameter%d: %s", r.Index, r.Ty) }

// IsImmediate reports whether v is a local or a constant.
func IsImmediate(v Value) bool {
	switch v.(type) {
	case *Local, *Constant:
		return true
	}
	return false
}
