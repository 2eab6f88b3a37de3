package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSession is the session used by steps that do not name one.
const DefaultSession = "main"

// Scenario is a scripted sequence of commands with expected replies.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed drives random selection (RAND, POP, RANDSET). Zero uses
	// testutil.Seed.
	Seed uint64 `yaml:"seed,omitempty"`

	// Limits bounds evaluation and arena growth. Nil uses the defaults.
	Limits *Limits `yaml:"limits,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Limits overrides evaluator and arena limits for a scenario.
type Limits struct {
	MaxPowersetCard int `yaml:"max_powerset_card,omitempty"`
	MaxProductSize  int `yaml:"max_product_size,omitempty"`
	MaxObjects      int `yaml:"max_objects,omitempty"`
}

// Step sends one command line on behalf of a session.
type Step struct {
	// Session names the sending session. Empty means DefaultSession.
	// A session that sent QUIT is reopened by its next step.
	Session string `yaml:"session,omitempty"`

	// Send is the command line.
	Send string `yaml:"send"`

	// Expect is the exact expected reply. Nil skips the check.
	Expect *string `yaml:"expect,omitempty"`

	// ExpectError requires an "ERROR: " reply.
	ExpectError bool `yaml:"expect_error,omitempty"`
}

// Assertion validates the final store or the journal trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Name is the set name (set_equals, set_missing).
	Name string `yaml:"name,omitempty"`

	// Value is the expected rendering (set_equals).
	Value string `yaml:"value,omitempty"`

	// Command is the command name (trace_count).
	Command string `yaml:"command,omitempty"`

	// Commands is the expected command order (trace_order).
	Commands []string `yaml:"commands,omitempty"`

	// Count is the expected number (objects, trace_count).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertSetEquals  = "set_equals"
	AssertSetMissing = "set_missing"
	AssertObjects    = "objects"
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
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
	if strings.ContainsAny(s.Name, `/\`) {
		return fmt.Errorf("name %q must not contain path separators", s.Name)
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if strings.TrimSpace(step.Send) == "" {
			return fmt.Errorf("step %d: send is required", i)
		}
		if step.Expect != nil && step.ExpectError {
			return fmt.Errorf("step %d: expect and expect_error are mutually exclusive", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertSetEquals:
		if a.Name == "" {
			return fmt.Errorf("set_equals requires name")
		}
		if a.Value == "" {
			return fmt.Errorf("set_equals requires value")
		}
	case AssertSetMissing:
		if a.Name == "" {
			return fmt.Errorf("set_missing requires name")
		}
	case AssertObjects:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("objects requires a non-negative count")
		}
	case AssertTraceCount:
		if a.Command == "" {
			return fmt.Errorf("trace_count requires command")
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("trace_count requires a non-negative count")
		}
	case AssertTraceOrder:
		if len(a.Commands) < 2 {
			return fmt.Errorf("trace_order requires at least two commands")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
