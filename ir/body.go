package ir

import "fmt"

// Body is the code of a method: its locals and its statements.
type Body struct {
	Method *Method
	Locals []*Local
	Units  *UnitChain
}

// NewBody creates an empty body not yet attached to a method.
func NewBody() *Body {
	return &Body{Units: NewUnitChain()}
}

// AddLocal declares l in b.
func (b *Body) AddLocal(l *Local) *Local {
	b.Locals = append(b.Locals, l)
	return l
}

// NewLocal declares a fresh local. If name is taken, the first free numeric
// suffix is appended.
func (b *Body) NewLocal(name string, t Type) *Local {
	unique := name
	for i := 1; b.Local(unique) != nil; i++ {
		unique = fmt.Sprintf("%s#%d", name, i)
	}
	return b.AddLocal(&Local{Name: unique, Ty: t})
}

// Local returns the local with the given name, or nil.
func (b *Body) Local(name string) *Local {
	for _, l := range b.Locals {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// HasLocal reports whether l is declared in b.
func (b *Body) HasLocal(l *Local) bool {
	for _, bl := range b.Locals {
		if bl == l {
			return true
		}
	}
	return false
}

// Class returns the class declaring the body's method.
func (b *Body) Class() *Class {
	if b.Method == nil {
		return nil
	}
	return b.Method.Class
}

func (b *Body) String() string {
	return b.Disassemble()
}
