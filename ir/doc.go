// Package ir provides the statement-level intermediate representation the
// encap passes operate on.
//
// A Program is an ordered list of classes. Each class owns an ordered list of
// fields and methods; a method with code owns a Body, which is a set of typed
// locals plus a mutable UnitChain of three-address statements:
//
//	this := @this: Point
//	tmp = this.<Point: int x>
//	tmp = tmp + 1
//	this.<Point: int x> = tmp
//	return
//
// # Three-address form
//
// Field references only ever appear as one side of an AssignStmt. Conditions,
// return operands, call arguments and binary operands are locals or
// constants. The Builder enforces this, and Validate rejects bodies that
// violate it. Passes can therefore find every field touch by looking at
// assignments alone.
//
// # Mutation
//
// The UnitChain behaves like a patching chain: InsertBefore and Replace move
// jumps that targeted the old statement onto the new one, Remove moves them
// onto the successor. Snapshot returns a copy of the statement order so a pass
// can iterate while it mutates.
//
// # Accessor binding
//
// Synthesized accessors are bound to their field explicitly (Field.Getter,
// Field.Setter, Method.Accessor). Nothing in this package derives a binding
// from a method name.
package ir
