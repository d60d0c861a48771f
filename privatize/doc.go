// Package privatize hides the instance fields of a program behind accessor
// methods.
//
// The pass runs once per method body, concurrently. Every task first meets
// at the Coordinator: the first task to see a class synthesizes that class's
// getters and setters, and no task goes further until all classes are done.
// Each task then rewrites its own body so that field reads and writes become
// accessor calls. With optimization enabled, accessor calls inside loops are
// replaced by locals loaded before the loop and written back after it,
// wherever an alias oracle shows that nothing else in the loop can observe
// the object.
//
// Wire a Transformer into a pipeline:
//
//	t := privatize.NewTransformer(prog, privatize.Options{
//		Optimize: true,
//		Oracle:   alias.NewTypeOracle(prog),
//	})
//	pack := pipeline.NewPack("jtp")
//	if err := t.Register(pack); err != nil {
//		return err
//	}
//	if err := pack.Run(prog); err != nil {
//		return err
//	}
package privatize
