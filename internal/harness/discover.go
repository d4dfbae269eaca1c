package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioFiles returns the .yaml and .yml files directly under dir, sorted.
func ScenarioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// FileResult is the outcome of one scenario file.
type FileResult struct {
	Path     string  `json:"path"`
	Scenario string  `json:"scenario,omitempty"`
	Result   *Result `json:"result,omitempty"`
	// Err is set when the scenario could not be loaded or run.
	Err error `json:"-"`
}

// Passed reports whether the scenario ran and passed.
func (f FileResult) Passed() bool {
	return f.Err == nil && f.Result != nil && f.Result.Pass
}

// RunDir loads and runs every scenario file in dir in name order. A file
// that fails to load does not stop the others.
func (h *Harness) RunDir(ctx context.Context, dir string) ([]FileResult, error) {
	files, err := ScenarioFiles(dir)
	if err != nil {
		return nil, err
	}

	out := make([]FileResult, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		fr := FileResult{Path: path}
		s, err := LoadScenario(path)
		if err != nil {
			fr.Err = err
			out = append(out, fr)
			continue
		}
		fr.Scenario = s.Name
		fr.Result, fr.Err = h.Run(ctx, s)
		out = append(out, fr)
	}
	return out, nil
}
