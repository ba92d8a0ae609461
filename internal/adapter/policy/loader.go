package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a YAML policy file and returns a validated Policy.
// Unknown keys are an error so a typo cannot silently disable a rule.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var pol Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pol); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	if err := validate(&pol); err != nil {
		return nil, fmt.Errorf("validating policy: %w", err)
	}

	return &pol, nil
}

func validate(pol *Policy) error {
	for i, r := range pol.Gate.InjectionPatterns {
		if r.Pattern == "" {
			return fmt.Errorf("gate.injection_patterns[%d]: pattern is required", i)
		}
		if r.Name == "" {
			return fmt.Errorf("gate.injection_patterns[%d]: name is required", i)
		}
	}
	// Building the gate compiles every pattern and checks every verb.
	if _, err := pol.NewGate(); err != nil {
		return err
	}
	return nil
}
