// Package pipeline runs body-level transformation phases over a program.
//
// A Pack holds named phases. Run applies each phase, in order, to every
// method body that existed when the phase started. Bodies of one phase are
// transformed concurrently, one goroutine per body; a phase may therefore
// coordinate its tasks (for example with a barrier) as long as it never
// waits for a task that is not running. The pool is unbounded for that
// reason.
package pipeline

import (
	"fmt"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/encap/ir"
)

var log = commonlog.GetLogger("encap.pipeline")

// BodyTransformer transforms one method body. Implementations are called
// concurrently for different bodies of the same program.
type BodyTransformer interface {
	Transform(body *ir.Body) error
}

// BodyTransformerFunc adapts a function to BodyTransformer.
type BodyTransformerFunc func(body *ir.Body) error

// Transform calls f(body).
func (f BodyTransformerFunc) Transform(body *ir.Body) error {
	return f(body)
}

// Phase is a named transformer registered with a pack.
type Phase struct {
	Name        string
	Transformer BodyTransformer
}

// Pack is an ordered list of phases.
type Pack struct {
	name   string
	phases []Phase
}

// NewPack creates an empty pack. Phase names registered with it must start
// with name followed by a dot.
func NewPack(name string) *Pack {
	return &Pack{name: name}
}

// Name returns the pack name.
func (p *Pack) Name() string {
	return p.name
}

// Add registers t under the phase name.
func (p *Pack) Add(name string, t BodyTransformer) error {
	prefix := p.name + "."
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return fmt.Errorf("phase %q does not belong to pack %q", name, p.name)
	}
	for _, ph := range p.phases {
		if ph.Name == name {
			return fmt.Errorf("phase %q already registered", name)
		}
	}
	p.phases = append(p.phases, Phase{Name: name, Transformer: t})
	return nil
}

// Phases returns the registered phase names in order.
func (p *Pack) Phases() []string {
	names := make([]string, len(p.phases))
	for i, ph := range p.phases {
		names[i] = ph.Name
	}
	return names
}

// Run applies every phase to prog. The first failure of a phase is returned
// after all of that phase's tasks have finished; later phases do not run.
func (p *Pack) Run(prog *ir.Program) error {
	for _, ph := range p.phases {
		if err := runPhase(ph, prog); err != nil {
			return err
		}
	}
	return nil
}

func runPhase(ph Phase, prog *ir.Program) error {
	bodies := prog.Bodies()
	log.Infof("phase %s: %d bodies", ph.Name, len(bodies))
	start := time.Now()

	var g errgroup.Group
	for _, body := range bodies {
		g.Go(func() error {
			err := transform(ph, body)
			if err != nil {
				log.Errorf("%s", err)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Debugf("phase %s finished in %s", ph.Name, time.Since(start))
	return nil
}

// transform runs one task, turning a panic into an error.
func transform(ph Phase, body *ir.Body) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %s: panic: %v", ph.Name, body.Method.Signature(), r)
		}
	}()
	if err := ph.Transformer.Transform(body); err != nil {
		return fmt.Errorf("%s: %w", ph.Name, err)
	}
	return nil
}
