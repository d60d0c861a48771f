// encap privatizes the fields of a program image: every eligible field
// becomes private behind synthesized accessors, direct accesses are
// rewritten into accessor calls, and accessor calls are hoisted out of loops.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/encap/alias"
	"github.com/chazu/encap/ir"
	"github.com/chazu/encap/ir/image"
	"github.com/chazu/encap/manifest"
	"github.com/chazu/encap/pipeline"
	"github.com/chazu/encap/privatize"
)

var log = commonlog.GetLogger("encap")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("encap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("config", "", "Directory holding encap.toml (default: search upward from the working directory)")
	input := fs.String("i", "", "Input program image")
	output := fs.String("o", "", "Output program image (default: <input>_opt or <input>_no_op)")
	noOpt := fs.Bool("no-opt", false, "Disable loop accessor hoisting")
	oracle := fs.String("oracle", "", "Alias oracle for hoisting: type, none")
	dump := fs.Bool("dump", false, "Print the transformed program")
	verbose := fs.Int("v", 0, "Log verbosity (-4 silent, 0 notices, 1 info, 2 debug)")
	noReport := fs.Bool("no-report", false, "Do not write the run report")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: encap [options] [image]\n\n")
		fmt.Fprintf(stderr, "Privatizes the fields of a program image and writes the result.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  encap prog.img              # writes prog_opt.img\n")
		fmt.Fprintf(stderr, "  encap -no-opt prog.img      # writes prog_no_op.img\n")
		fmt.Fprintf(stderr, "  encap -i prog.img -o out.img -dump\n")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	m, err := loadManifest(*configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// Flags override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			m.Image.Input = *input
		case "o":
			m.Image.Output = *output
		case "no-opt":
			m.SetOptimize(!*noOpt)
		case "oracle":
			m.Alias.Oracle = *oracle
		case "dump":
			m.Image.Dump = *dump
		case "v":
			m.Log.Verbosity = *verbose
		}
	})
	if fs.NArg() > 1 {
		fs.Usage()
		return 2
	}
	if fs.NArg() == 1 {
		m.Image.Input = fs.Arg(0)
	}
	if m.Image.Input == "" {
		fmt.Fprintf(stderr, "Error: no input image\n")
		fs.Usage()
		return 2
	}

	var logPath *string
	if m.Log.File != "" {
		p := m.Resolve(m.Log.File)
		logPath = &p
	}
	commonlog.Configure(m.Log.Verbosity, logPath)

	report, err := privatizeImage(m, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "%s -> %s\n", report.Input, report.Output)

	if !*noReport {
		if err := manifest.WriteReport(m.ReportPath(), report); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

func loadManifest(dir string) (*manifest.Manifest, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}

// privatizeImage runs the pass over the configured input image and writes
// the output image. Nothing is written when the pass fails.
func privatizeImage(m *manifest.Manifest, stdout io.Writer) (*manifest.Report, error) {
	runID := uuid.NewString()
	in, out := m.Resolve(m.Image.Input), m.OutputPath()
	report := &manifest.Report{
		Run:      runID,
		Started:  time.Now().UTC(),
		Input:    in,
		Output:   out,
		Optimize: m.Optimize(),
		Oracle:   m.Alias.Oracle,
	}
	log.Info("run started", "run", runID, "input", in, "optimize", report.Optimize, "oracle", report.Oracle)

	prog, err := image.ReadFile(in)
	if err != nil {
		return nil, err
	}

	opts := privatize.Options{Optimize: m.Optimize()}
	if opts.Optimize {
		if opts.Oracle, err = alias.ByName(m.Alias.Oracle, prog); err != nil {
			return nil, err
		}
	}

	tr := privatize.NewTransformer(prog, opts)
	pack := pipeline.NewPack("jtp")
	if err := tr.Register(pack); err != nil {
		return nil, err
	}
	if err := pack.Run(prog); err != nil {
		return nil, err
	}

	if err := image.WriteFile(out, prog); err != nil {
		return nil, err
	}

	stats := tr.Stats()
	report.Counts = manifest.ReportCounts{
		Bodies:   stats.Bodies,
		Classes:  stats.Classes,
		Fields:   stats.Fields,
		Reads:    stats.Reads,
		Writes:   stats.Writes,
		Loops:    stats.Loops,
		Selected: stats.Selected,
		Locals:   stats.Locals,
		Replaced: stats.Replaced,
	}
	log.Info("run finished", "run", runID, "output", out, "stats", stats.String())

	if m.Image.Dump {
		dumpProgram(stdout, prog)
	}
	return report, nil
}

func dumpProgram(w io.Writer, prog *ir.Program) {
	for _, c := range prog.Classes {
		fmt.Fprintln(w, ir.DisassembleClass(c))
	}
}
