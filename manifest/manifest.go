// Package manifest handles encap.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "encap.toml"

// Manifest represents an encap.toml configuration.
type Manifest struct {
	Pass  Pass        `toml:"pass"`
	Alias Alias       `toml:"alias"`
	Image ImageConfig `toml:"image"`
	Log   Log         `toml:"log"`

	// Dir is the directory containing the encap.toml file (set at load time).
	// It is empty for the default manifest.
	Dir string `toml:"-"`
}

// Pass configures the privatization pass.
type Pass struct {
	// Optimize enables loop accessor hoisting. A pointer so that an absent
	// key keeps the default.
	Optimize *bool `toml:"optimize"`
}

// Alias selects the alias oracle used for hoisting.
type Alias struct {
	Oracle string `toml:"oracle"`
}

// ImageConfig configures program image input and output.
type ImageConfig struct {
	Input  string `toml:"input"`
	Output string `toml:"output"`
	Dump   bool   `toml:"dump"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no encap.toml is found.
func Default() *Manifest {
	m := &Manifest{}
	m.setDefaults()
	return m
}

func (m *Manifest) setDefaults() {
	if m.Pass.Optimize == nil {
		on := true
		m.Pass.Optimize = &on
	}
	if m.Alias.Oracle == "" {
		m.Alias.Oracle = "type"
	}
}

// Optimize reports whether loop hoisting is enabled.
func (m *Manifest) Optimize() bool {
	return m.Pass.Optimize == nil || *m.Pass.Optimize
}

// SetOptimize overrides the optimize setting.
func (m *Manifest) SetOptimize(on bool) {
	m.Pass.Optimize = &on
}

// Load parses an encap.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.setDefaults()
	switch m.Alias.Oracle {
	case "type", "none":
	default:
		return nil, fmt.Errorf("%s: unknown alias oracle %q", path, m.Alias.Oracle)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find an encap.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Resolve returns path relative to the manifest directory. Absolute paths
// and paths of the default manifest are returned unchanged.
func (m *Manifest) Resolve(path string) string {
	if path == "" || m.Dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.Dir, path)
}

// OutputPath returns where the transformed image is written: the configured
// output, or the input path with an "_opt" or "_no_op" suffix added before
// the extension.
func (m *Manifest) OutputPath() string {
	if m.Image.Output != "" {
		return m.Resolve(m.Image.Output)
	}
	in := m.Resolve(m.Image.Input)
	if in == "" {
		return ""
	}
	suffix := "_opt"
	if !m.Optimize() {
		suffix = "_no_op"
	}
	ext := filepath.Ext(in)
	return strings.TrimSuffix(in, ext) + suffix + ext
}

// ReportPath returns the path of the run report written next to the output.
func (m *Manifest) ReportPath() string {
	out := m.OutputPath()
	if out == "" {
		return ""
	}
	return strings.TrimSuffix(out, filepath.Ext(out)) + ".report.toml"
}
