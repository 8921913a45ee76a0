// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package plan

import (
	"strings"
	"testing"

	"github.com/opsforge/quartermaster/internal/model"
)

func TestDefaultIsValid(t *testing.T) {
	p := Default(DefaultOptions{})
	if err := Validate(p); err != nil {
		t.Fatalf("built-in plan does not validate: %v", err)
	}
}

func TestDefaultFillsOptions(t *testing.T) {
	p := Default(DefaultOptions{})
	if p.Session != "app" {
		t.Errorf("Session = %q, want %q", p.Session, "app")
	}
	if p.PythonVersion != "3.11" {
		t.Errorf("PythonVersion = %q, want %q", p.PythonVersion, "3.11")
	}
	if p.ProxyPort != 40000 {
		t.Errorf("ProxyPort = %d, want 40000", p.ProxyPort)
	}
	if p.DatabaseName != "app" {
		t.Errorf("DatabaseName = %q, want %q", p.DatabaseName, "app")
	}
}

func TestDefaultStepOrdering(t *testing.T) {
	p := Default(DefaultOptions{})

	// Ordering constraints the bootstrap depends on: the package index is
	// refreshed first, the proxy connects before anything downloads through
	// it, the session exists before in-session steps, and the launch is last.
	wantBefore := [][2]string{
		{"update-package-index", "install-proxy-client"},
		{"install-proxy-client", "register-proxy-identity"},
		{"set-proxy-mode", "set-proxy-port"},
		{"set-proxy-port", "connect-proxy"},
		{"install-database-server", "set-superuser-password"},
		{"set-superuser-password", "create-database"},
		{"install-interpreter", "create-venv"},
		{"create-session", "create-venv"},
		{"create-venv", "install-dependency-manifest"},
		{"install-dependency-manifest", "swap-forked-library"},
		{"swap-forked-library", "launch-application"},
	}

	index := make(map[string]int, len(p.Steps))
	for i, s := range p.Steps {
		index[s.Name] = i
	}

	for _, pair := range wantBefore {
		a, okA := index[pair[0]]
		b, okB := index[pair[1]]
		if !okA || !okB {
			t.Fatalf("plan missing step %q or %q", pair[0], pair[1])
		}
		if a >= b {
			t.Errorf("step %q (index %d) must come before %q (index %d)", pair[0], a, pair[1], b)
		}
	}

	if last := p.Steps[len(p.Steps)-1].Name; last != "launch-application" {
		t.Errorf("last step = %q, want launch-application", last)
	}
}

func TestDefaultProxyOptions(t *testing.T) {
	p := Default(DefaultOptions{ProxyClient: "other-cli", ProxyPort: 12345})

	port := p.StepByName("set-proxy-port")
	if port == nil {
		t.Fatal("missing set-proxy-port step")
	}
	if !strings.Contains(port.Command, "other-cli") || !strings.Contains(port.Command, "12345") {
		t.Errorf("set-proxy-port command = %q, want client and port substituted", port.Command)
	}

	reg := p.StepByName("register-proxy-identity")
	if reg == nil || !reg.BestEffort {
		t.Error("register-proxy-identity must be best-effort: re-registration fails on provisioned hosts")
	}
}

func TestDefaultDatabaseSteps(t *testing.T) {
	p := Default(DefaultOptions{})

	pw := p.StepByName("set-superuser-password")
	if pw == nil || pw.Kind != model.KindDatabase {
		t.Fatal("set-superuser-password must be a database step")
	}
	if !strings.Contains(pw.Command, "{{password}}") {
		t.Errorf("password statement = %q, want {{password}} placeholder", pw.Command)
	}

	create := p.StepByName("create-database")
	if create == nil || !strings.Contains(create.Command, "{{database}}") {
		t.Error("create-database must use the {{database}} placeholder")
	}
}

func TestDefaultSessionSteps(t *testing.T) {
	p := Default(DefaultOptions{Session: "bot", VenvPath: "env", PythonVersion: "3.12"})

	create := p.StepByName("create-session")
	if create == nil || !strings.Contains(create.Command, "tmux new-session -d -s bot") {
		t.Fatalf("create-session command = %v, want tmux new-session for 'bot'", create)
	}

	venv := p.StepByName("create-venv")
	if venv == nil || venv.Kind != model.KindSession {
		t.Fatal("create-venv must run inside the session")
	}
	if !strings.Contains(venv.Command, "python3.12 -m venv env") {
		t.Errorf("create-venv command = %q, want python3.12 venv creation", venv.Command)
	}

	fork := p.StepByName("swap-forked-library")
	if fork == nil || !strings.Contains(fork.Command, "--force-reinstall") {
		t.Error("swap-forked-library must force-reinstall the forked package")
	}
	if !strings.Contains(fork.Command, "git+https://") {
		t.Errorf("swap-forked-library command = %q, want a VCS requirement", fork.Command)
	}
}
