package privatize

import (
	"github.com/chazu/encap/ir"
)

// ClassFilter tells which classes have been privatized.
type ClassFilter interface {
	Privatized(class *ir.Class) bool
}

// RewriteStats counts the statements changed by Rewrite.
type RewriteStats struct {
	Reads  int
	Writes int
}

// Rewrite replaces every direct access to an instance field of a privatized
// class with a call to the field's accessor:
//
//	x = b.f   becomes   x = b.getF()
//	b.f = v   becomes   b.setF(v)
//
// Jumps to a replaced statement follow it to its replacement. Accesses to
// fields without a bound accessor are left alone, as are the bodies of the
// accessors themselves.
func Rewrite(body *ir.Body, classes ClassFilter) RewriteStats {
	var stats RewriteStats
	if body.Method != nil && body.Method.IsAccessor() {
		return stats
	}
	for _, s := range body.Units.Snapshot() {
		ref, write := ir.FieldRefOf(s)
		if ref == nil || !classes.Privatized(ref.Field.Class) {
			continue
		}
		assign := s.(*ir.AssignStmt)
		if write {
			setter := ref.Field.Setter()
			if setter == nil {
				continue
			}
			body.Units.Replace(s, &ir.InvokeStmt{Call: ir.Virtual(ref.Base, setter, assign.Right)})
			stats.Writes++
			continue
		}
		getter := ref.Field.Getter()
		if getter == nil {
			continue
		}
		body.Units.Replace(s, &ir.AssignStmt{Left: assign.Left, Right: ir.Virtual(ref.Base, getter)})
		stats.Reads++
	}
	return stats
}
