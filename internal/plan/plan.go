// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// package plan loads, validates, and fingerprints provisioning plans. A plan
// is either read from a YAML file or synthesized by Default, which reproduces
// the standard single-server bootstrap sequence.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/opsforge/quartermaster/internal/model"
)

// knownKinds is the set of step kinds the engine understands.
var knownKinds = map[model.StepKind]bool{
	model.KindCommand:  true,
	model.KindPackage:  true,
	model.KindService:  true,
	model.KindDatabase: true,
	model.KindSession:  true,
}

// Load reads and validates a plan from a YAML file.
func Load(path string) (*model.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read plan file: %w", err)
	}
	var p model.Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("could not parse plan file %s: %w", path, err)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks a plan for structural problems: missing names, duplicate
// step names, unknown kinds, and steps whose kind demands fields the plan
// does not provide.
func Validate(p *model.Plan) error {
	if p.Name == "" {
		return fmt.Errorf("plan has no name")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan %q has no steps", p.Name)
	}

	seen := make(map[string]bool, len(p.Steps))
	for i := range p.Steps {
		s := &p.Steps[i]
		if s.Name == "" {
			return fmt.Errorf("plan %q: step %d has no name", p.Name, i)
		}
		if seen[s.Name] {
			return fmt.Errorf("plan %q: duplicate step name %q", p.Name, s.Name)
		}
		seen[s.Name] = true

		if s.Kind == "" {
			s.Kind = model.KindCommand
		}
		if !knownKinds[s.Kind] {
			return fmt.Errorf("plan %q: step %q has unknown kind %q", p.Name, s.Name, s.Kind)
		}

		switch s.Kind {
		case model.KindPackage:
			if len(s.Packages) == 0 {
				return fmt.Errorf("plan %q: package step %q lists no packages", p.Name, s.Name)
			}
		case model.KindService:
			if s.Service == "" {
				return fmt.Errorf("plan %q: service step %q names no service", p.Name, s.Name)
			}
		case model.KindSession:
			if p.Session == "" {
				return fmt.Errorf("plan %q: session step %q requires the plan to name a session", p.Name, s.Name)
			}
			if s.Command == "" {
				return fmt.Errorf("plan %q: session step %q has no command", p.Name, s.Name)
			}
		case model.KindDatabase:
			if s.Command == "" {
				return fmt.Errorf("plan %q: database step %q has no statement", p.Name, s.Name)
			}
		default:
			if s.Command == "" {
				return fmt.Errorf("plan %q: step %q has no command", p.Name, s.Name)
			}
		}
	}
	return nil
}

// Hash returns the sha256 fingerprint of the plan's canonical YAML encoding.
// The journal stores it per run so history can be compared against the plan
// that is active today.
func Hash(p *model.Plan) (string, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("could not encode plan for hashing: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Render returns the plan's YAML encoding, as written by `plan render`.
func Render(p *model.Plan) (string, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
