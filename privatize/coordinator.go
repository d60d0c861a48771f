package privatize

import (
	"slices"
	"sync"

	"github.com/hashicorp/go-set/v3"

	"github.com/chazu/encap/ir"
)

// Eligible reports whether c takes part in privatization: it is loaded,
// concrete and not static.
func Eligible(c *ir.Class) bool {
	return !c.IsPhantom() && !c.IsInterface() && !c.IsAbstract() && !c.IsStatic()
}

// Coordinator is the state shared by every task of one run. It decides which
// task synthesizes the accessors of each class and holds all tasks at a
// barrier until every eligible class has been synthesized.
//
// The barrier opens once and stays open.
type Coordinator struct {
	prog *ir.Program

	mu          sync.Mutex
	initialized bool
	eligible    *set.Set[*ir.Class] // fixed after initialization
	remaining   *set.Set[*ir.Class]
	bodiless    []*ir.Class // eligible classes no task transforms; taken by the first task
	completed   int
	opened      bool
	open        chan struct{}
}

// NewCoordinator creates the coordinator for one run over prog.
func NewCoordinator(prog *ir.Program) *Coordinator {
	return &Coordinator{prog: prog, open: make(chan struct{})}
}

// initLocked computes the privatization set on first use. The caller holds
// c.mu.
func (c *Coordinator) initLocked() {
	if c.initialized {
		return
	}
	c.initialized = true
	c.eligible = set.New[*ir.Class](len(c.prog.Classes))
	for _, cls := range c.prog.Classes {
		if Eligible(cls) {
			c.eligible.Insert(cls)
		}
	}
	c.remaining = c.eligible.Copy()
	for _, cls := range c.prog.Classes {
		if c.eligible.Contains(cls) && !cls.HasBody() {
			c.remaining.Remove(cls)
			c.bodiless = append(c.bodiless, cls)
		}
	}
	log.Debugf("privatization set: %d of %d classes", c.eligible.Size(), len(c.prog.Classes))
	c.maybeOpenLocked()
}

// maybeOpenLocked opens the barrier once every eligible class is done. The
// caller holds c.mu.
func (c *Coordinator) maybeOpenLocked() {
	if !c.opened && c.completed == c.eligible.Size() {
		c.opened = true
		close(c.open)
	}
}

// Claim removes class from the remaining set. It returns true for exactly
// one caller per eligible class; that caller must synthesize the class and
// then call Complete(true).
func (c *Coordinator) Claim(class *ir.Class) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initLocked()
	return c.remaining.Remove(class)
}

// Complete records that a task finished its part. Responsible tasks count
// towards the barrier; the call that completes the last class opens it.
func (c *Coordinator) Complete(responsible bool) {
	n := 0
	if responsible {
		n = 1
	}
	c.completeN(n)
}

func (c *Coordinator) completeN(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initLocked()
	c.completed += n
	c.maybeOpenLocked()
}

// claimBodiless hands the eligible classes without method bodies to the
// first caller. Later callers get nothing.
func (c *Coordinator) claimBodiless() []*ir.Class {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initLocked()
	classes := c.bodiless
	c.bodiless = nil
	return classes
}

// Wait blocks until the barrier is open. Tasks arriving after it opened
// return immediately.
func (c *Coordinator) Wait() {
	<-c.open
}

// Opened reports whether the barrier is open.
func (c *Coordinator) Opened() bool {
	select {
	case <-c.open:
		return true
	default:
		return false
	}
}

// Enter runs the coordination protocol for the task transforming body:
// claim the body's class, synthesize it outside the lock if claimed, count
// it, and wait at the barrier. The first task to enter also synthesizes the
// eligible classes that have no method body, since no task is ever started
// for them. Enter reports whether this task was responsible for the body's
// class.
func (c *Coordinator) Enter(body *ir.Body, synthesize func(*ir.Class)) bool {
	class := body.Class()
	responsible := class != nil && c.Claim(class)
	claimed := c.claimBodiless()
	if responsible {
		claimed = append([]*ir.Class{class}, claimed...)
	}

	// Count every claimed class even if synthesis panics; the barrier must open.
	defer c.Wait()
	defer c.completeN(len(claimed))
	for _, cls := range claimed {
		synthesize(cls)
	}
	return responsible
}

// Privatized reports whether class is in the privatization set.
func (c *Coordinator) Privatized(class *ir.Class) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initLocked()
	return c.eligible.Contains(class)
}

// Classes returns the privatization set in program order.
func (c *Coordinator) Classes() []*ir.Class {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initLocked()
	classes := c.eligible.Slice()
	slices.SortFunc(classes, func(a, b *ir.Class) int { return a.ID - b.ID })
	return classes
}

// Completed returns how many classes have been synthesized.
func (c *Coordinator) Completed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}
