package ir

import "testing"

func newGotoLoop() (*UnitChain, *AssignStmt, *GotoStmt, *ReturnStmt) {
	x := &Local{Name: "x", Ty: Int}
	a := &AssignStmt{Left: x, Right: IntConst(1)}
	g := &GotoStmt{Target: a}
	r := &ReturnStmt{}
	return NewUnitChain(a, g, r), a, g, r
}

func TestUnitChainNavigation(t *testing.T) {
	c, a, g, r := newGotoLoop()

	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}
	if c.First() != a || c.Last() != r {
		t.Error("First/Last mismatch")
	}
	if c.Pred(g) != a || c.Succ(g) != r {
		t.Error("Pred/Succ mismatch")
	}
	if c.Pred(a) != nil || c.Succ(r) != nil {
		t.Error("Pred of first and Succ of last should be nil")
	}
	if c.Index(&ReturnStmt{}) != -1 {
		t.Error("Index of foreign statement should be -1")
	}
}

func TestUnitChainInsertBeforeRedirects(t *testing.T) {
	c, a, g, _ := newGotoLoop()
	n := &AssignStmt{Left: &Local{Name: "y", Ty: Int}, Right: IntConst(2)}

	c.InsertBefore(n, a)

	if c.First() != n {
		t.Fatal("inserted statement should be first")
	}
	if g.Target != n {
		t.Error("goto should now target the inserted statement")
	}
}

func TestUnitChainInsertAfterKeepsJumps(t *testing.T) {
	c, a, g, _ := newGotoLoop()
	n := &AssignStmt{Left: &Local{Name: "y", Ty: Int}, Right: IntConst(2)}

	c.InsertAfter(n, a)

	if c.Index(n) != 1 {
		t.Errorf("Index = %d, want 1", c.Index(n))
	}
	if g.Target != a {
		t.Error("InsertAfter must not move jumps")
	}
}

func TestUnitChainRemoveRedirectsToSuccessor(t *testing.T) {
	c, a, g, _ := newGotoLoop()
	n := &AssignStmt{Left: &Local{Name: "y", Ty: Int}, Right: IntConst(2)}
	c.InsertAfter(n, a)

	if !c.Remove(a) {
		t.Fatal("Remove returned false")
	}
	if g.Target != n {
		t.Error("jump to removed statement should move to its successor")
	}
	if c.Remove(a) {
		t.Error("second Remove should report false")
	}
}

func TestUnitChainReplace(t *testing.T) {
	c, a, g, _ := newGotoLoop()
	n := &AssignStmt{Left: &Local{Name: "y", Ty: Int}, Right: IntConst(2)}

	c.Replace(a, n)

	if c.First() != n || c.Contains(a) {
		t.Error("replacement not in place")
	}
	if g.Target != n {
		t.Error("jump should follow the replacement")
	}
}

func TestUnitChainRedirectJumpsFiltered(t *testing.T) {
	x := &Local{Name: "x", Ty: Bool}
	head := &AssignStmt{Left: &Local{Name: "i", Ty: Int}, Right: IntConst(0)}
	entry := &GotoStmt{Target: head}
	back := &IfStmt{Cond: x, Target: head}
	c := NewUnitChain(entry, head, back, &ReturnStmt{})
	pre := &AssignStmt{Left: &Local{Name: "p", Ty: Int}, Right: IntConst(0)}
	c.InsertAfter(pre, entry)

	c.RedirectJumps(head, pre, func(b Branch) bool { return b != Branch(back) })

	if entry.Target != pre {
		t.Error("entry jump should be redirected")
	}
	if back.Target != head {
		t.Error("filtered jump should keep its target")
	}
}

func TestUnitChainSnapshotIsStable(t *testing.T) {
	c, a, _, _ := newGotoLoop()
	snap := c.Snapshot()

	c.InsertBefore(&ReturnStmt{}, a)
	c.Remove(a)

	if len(snap) != 3 || snap[0] != a {
		t.Error("snapshot changed after mutation")
	}
}
