// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package provision

import (
	"testing"

	"github.com/opsforge/quartermaster/internal/model"
)

func TestRenderCommand(t *testing.T) {
	p := &model.Plan{Name: "test", Session: "work", DatabaseName: "app"}

	tests := []struct {
		name string
		step model.Step
		want string
	}{
		{
			"plain command",
			model.Step{Name: "hello", Kind: model.KindCommand, Command: "echo hello"},
			"echo hello",
		},
		{
			"package install",
			model.Step{Name: "tools", Kind: model.KindPackage, Packages: []string{"redis-server", "postgresql"}},
			"DEBIAN_FRONTEND=noninteractive apt-get install -y redis-server postgresql",
		},
		{
			"service start",
			model.Step{Name: "cache", Kind: model.KindService, Service: "redis-server"},
			"systemctl enable --now redis-server",
		},
		{
			"session command",
			model.Step{Name: "venv", Kind: model.KindSession, Command: "python3 -m venv venv"},
			"tmux send-keys -t work 'python3 -m venv venv' Enter",
		},
		{
			// Database statements keep their placeholders; secrets are only
			// substituted at execution time.
			"database statement",
			model.Step{Name: "pw", Kind: model.KindDatabase, Command: "ALTER ROLE postgres WITH PASSWORD {{password}}"},
			"ALTER ROLE postgres WITH PASSWORD {{password}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderCommand(p, tt.step)
			if err != nil {
				t.Fatalf("RenderCommand() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("RenderCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		plan model.Plan
		step model.Step
	}{
		{"package without packages", model.Plan{}, model.Step{Name: "x", Kind: model.KindPackage}},
		{"service without service", model.Plan{}, model.Step{Name: "x", Kind: model.KindService}},
		{"session without session", model.Plan{}, model.Step{Name: "x", Kind: model.KindSession, Command: "ls"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RenderCommand(&tt.plan, tt.step); err == nil {
				t.Error("RenderCommand() expected error, got nil")
			}
		})
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "'plain'"},
		{"with space", "'with space'"},
		{"it's quoted", `'it'\''s quoted'`},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.in); got != tt.want {
			t.Errorf("shellQuote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
