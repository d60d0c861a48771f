// Package alias answers points-to queries for the loop hoister.
//
// An Oracle maps a reference local to the abstract objects it may point to.
// Objects are small integers; their meaning belongs to the oracle (an
// allocation site, a class, one universal object). The hoister only needs to
// know whether two object sets share a member.
package alias

import (
	"golang.org/x/tools/container/intsets"
)

// Set is a set of abstract objects. The zero Set is empty and ready to use.
// A Set must not be copied after first use.
type Set struct {
	objs intsets.Sparse
}

// NewSet returns a set holding objs.
func NewSet(objs ...int) *Set {
	s := &Set{}
	for _, o := range objs {
		s.objs.Insert(o)
	}
	return s
}

// Insert adds obj to s and reports whether it was new.
func (s *Set) Insert(obj int) bool {
	return s.objs.Insert(obj)
}

// Has reports whether obj is in s.
func (s *Set) Has(obj int) bool {
	return s.objs.Has(obj)
}

// Len returns the number of objects in s.
func (s *Set) Len() int {
	return s.objs.Len()
}

// IsEmpty reports whether s has no objects.
func (s *Set) IsEmpty() bool {
	return s == nil || s.objs.IsEmpty()
}

// Intersects reports whether s and t share an object. A nil set is empty.
func (s *Set) Intersects(t *Set) bool {
	if s == nil || t == nil {
		return false
	}
	return s.objs.Intersects(&t.objs)
}

// UnionWith adds the objects of t to s and reports whether s grew.
func (s *Set) UnionWith(t *Set) bool {
	if t == nil {
		return false
	}
	return s.objs.UnionWith(&t.objs)
}

// Objects returns the members of s in increasing order.
func (s *Set) Objects() []int {
	if s == nil {
		return nil
	}
	return s.objs.AppendTo(nil)
}

func (s *Set) String() string {
	if s == nil {
		return "{}"
	}
	return s.objs.String()
}
