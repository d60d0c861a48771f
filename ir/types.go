package ir

import "fmt"

// Kind classifies a Type.
type Kind uint8

const (
	KindVoid Kind = iota
	KindInt
	KindBool
	KindRef
	KindNull // type of the null constant, assignable to any reference
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindBool:
		return "boolean"
	case KindRef:
		return "ref"
	case KindNull:
		return "null_type"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Type is a value type. Reference types name their class.
type Type struct {
	Kind  Kind
	Class string
}

var (
	Void = Type{Kind: KindVoid}
	Int  = Type{Kind: KindInt}
	Bool = Type{Kind: KindBool}
	Null = Type{Kind: KindNull}
)

// Ref returns the reference type for the named class.
func Ref(class string) Type {
	return Type{Kind: KindRef, Class: class}
}

// IsRef reports whether values of t are object references.
func (t Type) IsRef() bool {
	return t.Kind == KindRef || t.Kind == KindNull
}

func (t Type) String() string {
	if t.Kind == KindRef {
		return t.Class
	}
	return t.Kind.String()
}

// AssignableTo reports whether a value of type t may be stored in a
// location of type dst.
func (t Type) AssignableTo(dst Type) bool {
	if t == dst {
		return true
	}
	return t.Kind == KindNull && dst.Kind == KindRef
}
