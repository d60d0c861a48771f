package alias

import (
	"fmt"
	"sync"

	"github.com/chazu/encap/ir"
)

// Oracle answers "which objects may this local point to?". Implementations
// must be safe for concurrent use and must over-approximate: a local that
// may reach an object has that object in its set.
type Oracle interface {
	ReachingObjects(l *ir.Local) *Set
}

// MapOracle is an Oracle backed by an explicit table. Locals missing from
// the table reach no objects.
type MapOracle struct {
	mu   sync.RWMutex
	sets map[*ir.Local]*Set
}

// NewMapOracle creates an empty table.
func NewMapOracle() *MapOracle {
	return &MapOracle{sets: make(map[*ir.Local]*Set)}
}

// Set records that l may point to objs, adding to what is already known.
func (o *MapOracle) Set(l *ir.Local, objs ...int) *MapOracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sets[l]
	if !ok {
		s = &Set{}
		o.sets[l] = s
	}
	for _, obj := range objs {
		s.Insert(obj)
	}
	return o
}

// ReachingObjects implements Oracle.
func (o *MapOracle) ReachingObjects(l *ir.Local) *Set {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sets[l]
	if !ok {
		return &Set{}
	}
	out := &Set{}
	out.UnionWith(s)
	return out
}

// TypeOracle assumes every reference local may point to any instance of its
// declared class, and through that instance to any object its reference
// fields may hold, transitively. Each class is one abstract object,
// identified by its ID in the program. Locals of the null type or of unknown
// classes reach nothing.
//
// Reachability is computed from the fields the classes have when the oracle
// is created.
type TypeOracle struct {
	prog    *ir.Program
	reaches map[*ir.Class]*Set
}

// NewTypeOracle creates a TypeOracle over prog.
func NewTypeOracle(prog *ir.Program) *TypeOracle {
	o := &TypeOracle{prog: prog, reaches: make(map[*ir.Class]*Set, len(prog.Classes))}
	for _, c := range prog.Classes {
		o.reaches[c] = o.closure(c)
	}
	return o
}

// closure returns the IDs of c and of every class reachable from c through
// reference-typed fields.
func (o *TypeOracle) closure(c *ir.Class) *Set {
	objs := NewSet(c.ID)
	work := []*ir.Class{c}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		for _, f := range cur.Fields {
			if !f.Type.IsRef() {
				continue
			}
			next := o.prog.Class(f.Type.Class)
			if next == nil || objs.Has(next.ID) {
				continue
			}
			objs.Insert(next.ID)
			work = append(work, next)
		}
	}
	return objs
}

// ReachingObjects implements Oracle.
func (o *TypeOracle) ReachingObjects(l *ir.Local) *Set {
	if !l.Ty.IsRef() {
		return &Set{}
	}
	c := o.prog.Class(l.Ty.Class)
	if c == nil {
		return &Set{}
	}
	objs, ok := o.reaches[c]
	if !ok {
		return NewSet(c.ID)
	}
	out := &Set{}
	out.UnionWith(objs)
	return out
}

// Universal is an Oracle for which every reference local may point to the
// same single object. It never proves two references distinct.
type Universal struct{}

// ReachingObjects implements Oracle.
func (Universal) ReachingObjects(l *ir.Local) *Set {
	if !l.Ty.IsRef() {
		return &Set{}
	}
	return NewSet(0)
}

// Oracle names accepted by ByName.
const (
	OracleType = "type"
	OracleNone = "none"
)

// ByName returns the oracle configured under name for prog.
func ByName(name string, prog *ir.Program) (Oracle, error) {
	switch name {
	case OracleType, "":
		return NewTypeOracle(prog), nil
	case OracleNone:
		return Universal{}, nil
	default:
		return nil, fmt.Errorf("unknown alias oracle %q", name)
	}
}
