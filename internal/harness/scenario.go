package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: one protocol run with
// fixed parameters and a set of assertions on the resulting trace,
// ledger and step log.
type Scenario struct {
	// Name uniquely identifies this scenario. Doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Protocol is the registered protocol name to execute.
	Protocol string `yaml:"protocol"`

	// RunToken is an optional fixed run token for deterministic
	// traces. If empty, defaults to "scenario-default".
	RunToken string `yaml:"run_token,omitempty"`

	// Params configures the run. Zero values fall back to the
	// protocol defaults.
	Params ScenarioParams `yaml:"params,omitempty"`

	// OfflineHHSNodes lists heater-shaker nodes the simulated
	// instrument reports as unreachable. Exercises degraded-deck
	// behavior.
	OfflineHHSNodes []int `yaml:"offline_hhs_nodes,omitempty"`

	// Assertions validate the execution. Supported types:
	// trace_contains, trace_order, trace_count, withdrawn,
	// step_status.
	Assertions []Assertion `yaml:"assertions"`
}

// ScenarioParams mirrors the run parameters a scenario can pin.
type ScenarioParams struct {
	Samples        int     `yaml:"samples,omitempty"`
	SampleVolumeUL float64 `yaml:"sample_volume_ul,omitempty"`
	InputMassNG    float64 `yaml:"input_mass_ng,omitempty"`
	PCRCycles      int     `yaml:"pcr_cycles,omitempty"`
}

// Assertion validates one aspect of a finished run.
type Assertion struct {
	// Type selects the check; see the package doc for the list.
	Type string `yaml:"type"`

	// Op is the trace op name (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Args are expected op arguments (trace_contains). Subset match;
	// only specified fields are compared.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Ops is the expected op order (trace_order). Ops need not be
	// consecutive in the trace.
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected occurrence count (trace_count).
	Count int `yaml:"count,omitempty"`

	// Reagent names the consumable to check (withdrawn).
	Reagent string `yaml:"reagent,omitempty"`

	// Container restricts the withdrawal check to one container
	// (withdrawn). Empty means the reagent's total across the deck.
	Container string `yaml:"container,omitempty"`

	// VolumeUL is the expected withdrawal (withdrawn).
	VolumeUL float64 `yaml:"volume_ul"`

	// Step is the step ID to check (step_status).
	Step string `yaml:"step,omitempty"`

	// Status is the expected step outcome (step_status): "ok",
	// "error" or "skipped".
	Status string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertWithdrawn     = "withdrawn"
	AssertStepStatus    = "step_status"
)

// LoadScenario reads and parses a scenario YAML file. Returns an
// error if the file doesn't exist, is malformed, contains unknown
// fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs
	// "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Protocol == "" {
		return fmt.Errorf("protocol is required")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, node := range s.OfflineHHSNodes {
		if node < 1 {
			return fmt.Errorf("offline_hhs_nodes: node %d is not a valid node number", node)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertWithdrawn:
		if a.Reagent == "" {
			return fmt.Errorf("assertions[%d]: reagent is required for withdrawn", index)
		}
		if a.VolumeUL < 0 {
			return fmt.Errorf("assertions[%d]: volume_ul must be non-negative for withdrawn", index)
		}
	case AssertStepStatus:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for step_status", index)
		}
		switch a.Status {
		case "ok", "error", "skipped":
		default:
			return fmt.Errorf("assertions[%d]: status must be ok, error or skipped", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
