// Package scenarios runs YAML-described planning scenarios against the
// scheduler and checks the outcomes. The scenario files double as executable
// documentation of the scheduling semantics.
package scenarios

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/capaplan/capaplan/core/planfile"
)

// Expected describes the outcome a scenario requires.
type Expected struct {
	// Ends maps item ids to their expected end dates (2006-01-02).
	Ends map[string]string `yaml:"ends,omitempty"`
	// Starts maps item ids to their expected start dates.
	Starts map[string]string `yaml:"starts,omitempty"`
	// Conflicts is the expected number of conflict records.
	Conflicts int `yaml:"conflicts"`
	// Unscheduled lists items expected to be reported without capacity.
	Unscheduled []string `yaml:"unscheduled,omitempty"`
	// ExcludedItems must not appear in the output at all.
	ExcludedItems []string `yaml:"excluded_items,omitempty"`
}

// Scenario is one named planning case.
type Scenario struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description,omitempty"`
	Resources   []planfile.ResourceDef `yaml:"resources"`
	Items       []planfile.ItemDef     `yaml:"items"`
	Expected    Expected               `yaml:"expected"`
}

// Load reads a single scenario file.
func Load(path string) (Scenario, error) {
	var sc Scenario
	b, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return sc, err
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// LoadDir reads every .yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	scs := make([]Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := Load(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		scs = append(scs, sc)
	}
	return scs, nil
}
