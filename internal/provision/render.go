// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package provision

import (
	"fmt"
	"strings"

	"github.com/opsforge/quartermaster/internal/model"
)

// RenderCommand turns a step into the exact shell command (or SQL statement)
// the engine will execute. The TUI uses it for previews and clipboard copy;
// database statements keep their placeholders so secrets never render.
func RenderCommand(p *model.Plan, step model.Step) (string, error) {
	switch step.Kind {
	case model.KindPackage:
		if len(step.Packages) == 0 {
			return "", fmt.Errorf("package step %q lists no packages", step.Name)
		}
		return "DEBIAN_FRONTEND=noninteractive apt-get install -y " + strings.Join(step.Packages, " "), nil

	case model.KindService:
		if step.Service == "" {
			return "", fmt.Errorf("service step %q names no service", step.Name)
		}
		return "systemctl enable --now " + step.Service, nil

	case model.KindSession:
		if p.Session == "" {
			return "", fmt.Errorf("session step %q has no session to run in", step.Name)
		}
		// Commands typed into the persistent session survive the SSH/shell
		// that delivered them, exactly like an operator typing into tmux.
		return fmt.Sprintf("tmux send-keys -t %s %s Enter", p.Session, shellQuote(step.Command)), nil

	case model.KindDatabase:
		return step.Command, nil

	default:
		return step.Command, nil
	}
}

// shellQuote single-quotes s for safe embedding in a shell command line.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
