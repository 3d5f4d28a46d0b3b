package harness

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// RunScenarioDir loads every scenario YAML file in dir and runs each
// as a subtest. This is how protocol conformance suites are wired: a
// testdata directory of scenarios plus one test function calling
// RunScenarioDir.
func RunScenarioDir(t *testing.T, dir string) {
	t.Helper()

	paths, err := findScenarioFiles(dir)
	if err != nil {
		t.Fatalf("scanning scenario dir %s: %v", dir, err)
	}
	if len(paths) == 0 {
		t.Fatalf("no scenario files in %s", dir)
	}

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		if err != nil {
			t.Errorf("loading %s: %v", path, err)
			continue
		}
		t.Run(scenario.Name, func(t *testing.T) {
			_, errs := RunAndVerify(scenario)
			for _, err := range errs {
				t.Error(err)
			}
		})
	}
}

// findScenarioFiles returns the .yaml files directly in dir, sorted
// for stable subtest order.
func findScenarioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
