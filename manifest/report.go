package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Report records one run of the pass.
type Report struct {
	Run      string       `toml:"run"`
	Started  time.Time    `toml:"started"`
	Input    string       `toml:"input"`
	Output   string       `toml:"output"`
	Optimize bool         `toml:"optimize"`
	Oracle   string       `toml:"oracle"`
	Counts   ReportCounts `toml:"counts"`
}

// ReportCounts mirrors the pass statistics.
type ReportCounts struct {
	Bodies   int64 `toml:"bodies"`
	Classes  int64 `toml:"classes"`
	Fields   int64 `toml:"fields"`
	Reads    int64 `toml:"reads"`
	Writes   int64 `toml:"writes"`
	Loops    int64 `toml:"loops"`
	Selected int64 `toml:"selected"`
	Locals   int64 `toml:"locals"`
	Replaced int64 `toml:"replaced"`
}

// WriteReport writes r to path as TOML.
func WriteReport(path string, r *Report) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// ReadReport reads a report. A missing file yields nil, nil.
func ReadReport(path string) (*Report, error) {
	var r Report
	if _, err := toml.DecodeFile(path, &r); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return &r, nil
}
