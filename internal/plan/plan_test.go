// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opsforge/quartermaster/internal/model"
)

func validPlan() *model.Plan {
	return &model.Plan{
		Name:    "test",
		Session: "work",
		Steps: []model.Step{
			{Name: "one", Command: "true"},
			{Name: "two", Kind: model.KindPackage, Packages: []string{"curl"}},
			{Name: "three", Kind: model.KindService, Service: "redis-server"},
			{Name: "four", Kind: model.KindSession, Command: "echo hi"},
			{Name: "five", Kind: model.KindDatabase, Command: "SELECT 1"},
		},
	}
}

func TestValidateOK(t *testing.T) {
	p := validPlan()
	if err := Validate(p); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	// Empty kinds default to command.
	if p.Steps[0].Kind != model.KindCommand {
		t.Errorf("step kind = %q, want %q", p.Steps[0].Kind, model.KindCommand)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*model.Plan)
		wantSub string
	}{
		{"no plan name", func(p *model.Plan) { p.Name = "" }, "no name"},
		{"no steps", func(p *model.Plan) { p.Steps = nil }, "no steps"},
		{"unnamed step", func(p *model.Plan) { p.Steps[0].Name = "" }, "has no name"},
		{"duplicate step", func(p *model.Plan) { p.Steps[1].Name = "one"; p.Steps[1].Kind = ""; p.Steps[1].Command = "true" }, "duplicate step name"},
		{"unknown kind", func(p *model.Plan) { p.Steps[0].Kind = "teleport" }, "unknown kind"},
		{"package without packages", func(p *model.Plan) { p.Steps[1].Packages = nil }, "lists no packages"},
		{"service without service", func(p *model.Plan) { p.Steps[2].Service = "" }, "names no service"},
		{"session without session name", func(p *model.Plan) { p.Session = "" }, "requires the plan to name a session"},
		{"session without command", func(p *model.Plan) { p.Steps[3].Command = "" }, "has no command"},
		{"database without statement", func(p *model.Plan) { p.Steps[4].Command = "" }, "has no statement"},
		{"command without command", func(p *model.Plan) { p.Steps[0].Command = "" }, "has no command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(p)
			err := Validate(p)
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	content := `name: from-file
session: work
steps:
  - name: say-hello
    phase: greeting
    command: echo hello
  - name: install-tools
    kind: package
    packages: [curl, jq]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if p.Name != "from-file" {
		t.Errorf("plan name = %q, want %q", p.Name, "from-file")
	}
	if len(p.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(p.Steps))
	}
	if p.Steps[0].Kind != model.KindCommand {
		t.Errorf("first step kind = %q, want default %q", p.Steps[0].Kind, model.KindCommand)
	}
	if got := p.Steps[1].Packages; len(got) != 2 || got[0] != "curl" {
		t.Errorf("packages = %v, want [curl jq]", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoadInvalidPlan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("name: bad\nsteps: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected validation error for empty steps")
	}
}

func TestHashStable(t *testing.T) {
	a, err := Hash(validPlan())
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	b, err := Hash(validPlan())
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	if a != b {
		t.Errorf("Hash() not stable: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Hash() length = %d, want 64 hex chars", len(a))
	}

	changed := validPlan()
	changed.Steps[0].Command = "false"
	c, err := Hash(changed)
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	if a == c {
		t.Error("Hash() should change when a step changes")
	}
}

func TestRenderContainsSteps(t *testing.T) {
	out, err := Render(validPlan())
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	for _, want := range []string{"name: test", "session: work", "redis-server"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() output missing %q", want)
		}
	}
}
