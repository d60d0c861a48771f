package ir

// UnitChain is the ordered statement list of a body.
//
// Insertion and removal keep jumps consistent the way a patching chain
// does: InsertBefore and Replace move jumps aimed at the old statement onto
// the new one, and Remove moves them onto the removed statement's successor.
// InsertAfter never moves jumps.
type UnitChain struct {
	units []Stmt
}

// NewUnitChain creates a chain holding stmts in order.
func NewUnitChain(stmts ...Stmt) *UnitChain {
	return &UnitChain{units: append([]Stmt(nil), stmts...)}
}

// Len returns the number of statements in the chain.
func (c *UnitChain) Len() int { return len(c.units) }

// At returns the i'th statement.
func (c *UnitChain) At(i int) Stmt { return c.units[i] }

// Index returns the position of s, or -1 if s is not in the chain.
func (c *UnitChain) Index(s Stmt) int {
	for i, u := range c.units {
		if u == s {
			return i
		}
	}
	return -1
}

// Contains reports whether s is in the chain.
func (c *UnitChain) Contains(s Stmt) bool { return c.Index(s) >= 0 }

// First returns the first statement, or nil if the chain is empty.
func (c *UnitChain) First() Stmt {
	if len(c.units) == 0 {
		return nil
	}
	return c.units[0]
}

// Last returns the last statement, or nil if the chain is empty.
func (c *UnitChain) Last() Stmt {
	if len(c.units) == 0 {
		return nil
	}
	return c.units[len(c.units)-1]
}

// Pred returns the statement before s, or nil.
func (c *UnitChain) Pred(s Stmt) Stmt {
	if i := c.Index(s); i > 0 {
		return c.units[i-1]
	}
	return nil
}

// Succ returns the statement after s, or nil.
func (c *UnitChain) Succ(s Stmt) Stmt {
	if i := c.Index(s); i >= 0 && i+1 < len(c.units) {
		return c.units[i+1]
	}
	return nil
}

// Add appends s.
func (c *UnitChain) Add(s Stmt) {
	c.units = append(c.units, s)
}

// InsertBefore inserts s in front of point and moves every jump aimed at
// point onto s. It panics if point is not in the chain.
func (c *UnitChain) InsertBefore(s, point Stmt) {
	c.insertAt(c.mustIndex(point), s)
	c.RedirectJumps(point, s, nil)
}

// InsertAfter inserts s behind point. It panics if point is not in the
// chain.
func (c *UnitChain) InsertAfter(s, point Stmt) {
	c.insertAt(c.mustIndex(point)+1, s)
}

// Remove deletes s and moves jumps aimed at it onto its successor. It
// reports whether s was in the chain.
func (c *UnitChain) Remove(s Stmt) bool {
	i := c.Index(s)
	if i < 0 {
		return false
	}
	var next Stmt
	if i+1 < len(c.units) {
		next = c.units[i+1]
	}
	c.units = append(c.units[:i], c.units[i+1:]...)
	if next != nil {
		c.RedirectJumps(s, next, nil)
	}
	return true
}

// Replace puts s where old was and moves jumps aimed at old onto s. It
// panics if old is not in the chain.
func (c *UnitChain) Replace(old, s Stmt) {
	c.units[c.mustIndex(old)] = s
	c.RedirectJumps(old, s, nil)
}

// RedirectJumps retargets jumps aimed at from onto to. When keep is non-nil,
// only branches for which keep returns true are changed.
func (c *UnitChain) RedirectJumps(from, to Stmt, keep func(Branch) bool) {
	for _, u := range c.units {
		b, ok := u.(Branch)
		if !ok {
			continue
		}
		if keep != nil && !keep(b) {
			continue
		}
		b.Retarget(from, to)
	}
}

// Snapshot returns the current statement order. The slice is not affected
// by later mutation of the chain.
func (c *UnitChain) Snapshot() []Stmt {
	return append([]Stmt(nil), c.units...)
}

func (c *UnitChain) insertAt(i int, s Stmt) {
	c.units = append(c.units, nil)
	copy(c.units[i+1:], c.units[i:])
	c.units[i] = s
}

func (c *UnitChain) mustIndex(s Stmt) int {
	i := c.Index(s)
	if i < 0 {
		panic("ir: statement not in chain: " + s.String())
	}
	return i
}
