package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one end-to-end test of the runtime.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// DNA is an optional path to a CUE definition loaded by a genesis step.
	// Relative paths are resolved against the scenario file.
	DNA string `yaml:"dna,omitempty"`

	// MaxPendingAttempts is passed to every tick step. Zero retries forever.
	MaxPendingAttempts int `yaml:"max_pending_attempts,omitempty"`

	// Entries declares the entries steps refer to, in order. An entry may
	// reference entries declared before it.
	Entries []EntrySpec `yaml:"entries"`

	// Steps drive the instance.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// EntrySpec declares a named entry.
type EntrySpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// app
	AppType  string `yaml:"app_type,omitempty"`
	Value    string `yaml:"value,omitempty"`
	Replaces string `yaml:"replaces,omitempty"`

	// link_add, link_remove
	Base     string `yaml:"base,omitempty"`
	Target   string `yaml:"target,omitempty"`
	LinkType string `yaml:"link_type,omitempty"`
	Tag      string `yaml:"tag,omitempty"`

	// deletion
	Deleted string `yaml:"deleted,omitempty"`

	// cap_token_grant
	GrantID   string   `yaml:"grant_id,omitempty"`
	CapType   string   `yaml:"cap_type,omitempty"`
	Functions []string `yaml:"functions,omitempty"`
}

// Step is one operation against the instance.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Entry names the entry the step operates on.
	Entry string `yaml:"entry,omitempty"`

	// Count repeats a tick step. Defaults to one.
	Count int `yaml:"count,omitempty"`

	// Expect is the expected outcome: ok, pending or error.
	// Empty skips the check.
	Expect string `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpGenesis     = "genesis"
	OpCommit      = "commit"
	OpHoldEntry   = "hold_entry"
	OpHoldLink    = "hold_link"
	OpRemoveLink  = "remove_link"
	OpUpdateEntry = "update_entry"
	OpRemoveEntry = "remove_entry"
	OpInject      = "inject"
	OpTick        = "tick"
)

// Step outcomes.
const (
	OutcomeOK      = "ok"
	OutcomePending = "pending"
	OutcomeError   = "error"
)

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Entry names the entry the assertion is about.
	Entry string `yaml:"entry,omitempty"`

	// Workflow selects the pending queue slot (pending assertions).
	Workflow string `yaml:"workflow,omitempty"`

	// Present defaults to true.
	Present *bool `yaml:"present,omitempty"`

	// Attempts checks the retry count of a pending validation.
	Attempts *int `yaml:"attempts,omitempty"`

	// Count is the expected count (chain_length, pending_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertPending      = "pending"
	AssertHeld         = "held"
	AssertChainLength  = "chain_length"
	AssertPendingCount = "pending_count"
	AssertPublicToken  = "public_token"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.DNA != "" && !filepath.IsAbs(s.DNA) {
		s.DNA = filepath.Join(filepath.Dir(path), s.DNA)
	}
	return s, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.MaxPendingAttempts < 0 {
		return fmt.Errorf("max_pending_attempts must be non-negative")
	}

	names := map[string]bool{}
	for i, e := range s.Entries {
		if e.Name == "" {
			return fmt.Errorf("entries[%d]: name is required", i)
		}
		if names[e.Name] {
			return fmt.Errorf("entries[%d]: duplicate name %q", i, e.Name)
		}
		names[e.Name] = true
	}

	for i, step := range s.Steps {
		switch step.Op {
		case OpGenesis:
			if s.DNA == "" {
				return fmt.Errorf("steps[%d]: genesis requires dna", i)
			}
		case OpTick:
			if step.Count < 0 {
				return fmt.Errorf("steps[%d]: count must be non-negative", i)
			}
		case OpCommit, OpHoldEntry, OpHoldLink, OpRemoveLink, OpUpdateEntry, OpRemoveEntry, OpInject:
			if !names[step.Entry] {
				return fmt.Errorf("steps[%d]: unknown entry %q", i, step.Entry)
			}
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		switch step.Expect {
		case "", OutcomeOK, OutcomePending, OutcomeError:
		default:
			return fmt.Errorf("steps[%d]: unknown expect %q", i, step.Expect)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertPending:
			if a.Workflow == "" {
				return fmt.Errorf("assertions[%d]: workflow is required for pending", i)
			}
			fallthrough
		case AssertHeld:
			if !names[a.Entry] {
				return fmt.Errorf("assertions[%d]: unknown entry %q", i, a.Entry)
			}
		case AssertPublicToken:
			if a.Entry != "" && !names[a.Entry] {
				return fmt.Errorf("assertions[%d]: unknown entry %q", i, a.Entry)
			}
		case AssertChainLength, AssertPendingCount:
			if a.Count < 0 {
				return fmt.Errorf("assertions[%d]: count must be non-negative", i)
			}
		case "":
			return fmt.Errorf("assertions[%d]: type is required", i)
		default:
			return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
	}
	return nil
}
