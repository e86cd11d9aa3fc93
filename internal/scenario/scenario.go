// Package scenario replays class-loading traces through the verification
// engine.
//
// A scenario is a JSON document describing class loaders and an ordered
// stream of events: verification passes with their recorded snippets, and
// class definitions that trigger deferred validation. Scenarios drive the
// CLI and make engine behavior reproducible from a file.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/class-verify/pkg/errors"
)

// LoaderSpec declares a class loader used by the scenario. Kind is parsed
// with model.ParseLoaderKind; unrecognized kinds fall back to a custom
// loader.
type LoaderSpec struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// LoadEvent defines a class in a loader and validates its deferred
// constraints.
type LoadEvent struct {
	Loader    string `json:"loader"`
	ClassName string `json:"class_name"`
	Interface bool   `json:"interface"`
	Super     string `json:"super,omitempty"`
}

// VerifyEvent runs one class's verification pass. Snippets are index pairs
// into Names.
type VerifyEvent struct {
	Loader    string   `json:"loader"`
	ClassName string   `json:"class_name"`
	Names     []string `json:"names"`
	Snippets  [][2]int `json:"snippets"`
}

// Event is one step of the scenario. Exactly one field is set.
type Event struct {
	Load   *LoadEvent   `json:"load,omitempty"`
	Verify *VerifyEvent `json:"verify,omitempty"`
}

// Scenario is a parsed scenario document.
type Scenario struct {
	Loaders []LoaderSpec `json:"loaders"`
	Events  []Event      `json:"events"`
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(errors.CodeInvalidInput, "failed to parse scenario", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidInput, "failed to read scenario file", err)
	}
	return Parse(data)
}

func (s *Scenario) validate() error {
	for i, l := range s.Loaders {
		if l.Name == "" {
			return errors.New(errors.CodeInvalidInput, fmt.Sprintf("loader %d has no name", i))
		}
	}
	for i, ev := range s.Events {
		switch {
		case ev.Load != nil && ev.Verify != nil:
			return errors.New(errors.CodeInvalidInput, fmt.Sprintf("event %d sets both load and verify", i))
		case ev.Load != nil:
			if ev.Load.ClassName == "" {
				return errors.New(errors.CodeInvalidInput, fmt.Sprintf("load event %d has no class name", i))
			}
		case ev.Verify != nil:
			v := ev.Verify
			if v.ClassName == "" {
				return errors.New(errors.CodeInvalidInput, fmt.Sprintf("verify event %d has no class name", i))
			}
			for _, pair := range v.Snippets {
				if pair[0] < 0 || pair[0] >= len(v.Names) || pair[1] < 0 || pair[1] >= len(v.Names) {
					return errors.New(errors.CodeInvalidInput,
						fmt.Sprintf("verify event %d references a name index out of range", i))
				}
			}
		default:
			return errors.New(errors.CodeInvalidInput, fmt.Sprintf("event %d is empty", i))
		}
	}
	return nil
}
