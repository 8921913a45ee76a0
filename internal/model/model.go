// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the core data structures for Quartermaster: the
// provisioning plan, its steps, and the journal records produced by runs.
package model // import "github.com/opsforge/quartermaster/internal/model"

import (
	"fmt"
	"time"
)

// StepKind classifies what a plan step does. The engine uses the kind to
// decide how a step is rendered and which transport details apply.
type StepKind string

const (
	// KindCommand is a plain shell command executed through the runner.
	KindCommand StepKind = "command"

	// KindPackage installs one or more OS packages via the package manager.
	KindPackage StepKind = "package"

	// KindService enables and starts a system service.
	KindService StepKind = "service"

	// KindDatabase executes SQL against the relational database natively
	// instead of driving an interactive client.
	KindDatabase StepKind = "database"

	// KindSession runs a command inside the persistent terminal session.
	KindSession StepKind = "session"
)

// StepStatus is the outcome of a single step within a run.
type StepStatus string

const (
	// StatusPending means the step has not been attempted yet.
	StatusPending StepStatus = "pending"

	// StatusRunning means the step is currently executing.
	StatusRunning StepStatus = "running"

	// StatusOK means the apply command completed successfully.
	StatusOK StepStatus = "ok"

	// StatusSkipped means the check probe reported the step as already
	// satisfied, so apply was not attempted.
	StatusSkipped StepStatus = "skipped"

	// StatusFailed means the apply command failed. A failed step halts the
	// run unless the step is marked best-effort.
	StatusFailed StepStatus = "failed"
)

// RunStatus is the overall outcome of a provisioning run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Step is a single provisioning action. Steps are executed strictly in plan
// order; a step's Check command, when present, is probed first and a zero
// exit status marks the step as already satisfied.
type Step struct {
	// Name uniquely identifies the step within its plan.
	Name string `yaml:"name"`

	// Phase groups related steps for display (e.g. "proxy", "runtime").
	Phase string `yaml:"phase"`

	// Kind classifies the step. Defaults to KindCommand when empty.
	Kind StepKind `yaml:"kind,omitempty"`

	// Command is the shell command applied when the check probe fails or is
	// absent. Database steps carry SQL here instead.
	Command string `yaml:"command"`

	// Check is an optional idempotency probe. Exit status zero means the
	// step's effect is already present and apply is skipped.
	Check string `yaml:"check,omitempty"`

	// Packages lists the OS packages for KindPackage steps.
	Packages []string `yaml:"packages,omitempty"`

	// Service names the system service for KindService steps.
	Service string `yaml:"service,omitempty"`

	// BestEffort lets the run continue even if this step fails.
	BestEffort bool `yaml:"best_effort,omitempty"`

	// Timeout bounds the apply command. Zero means the engine default.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// String returns the step's display identity.
func (s Step) String() string {
	if s.Phase == "" {
		return s.Name
	}
	return fmt.Sprintf("%s/%s", s.Phase, s.Name)
}

// Plan is an ordered provisioning sequence plus the settings shared by its
// steps. The zero value is not usable; plans come from YAML files or the
// built-in default.
type Plan struct {
	// Name identifies the plan in the journal.
	Name string `yaml:"name"`

	// Session is the persistent terminal session that in-session steps and
	// the final launch run inside.
	Session string `yaml:"session"`

	// VenvPath is where the interpreter's virtual environment lives.
	VenvPath string `yaml:"venv_path"`

	// PythonVersion is the interpreter version the runtime phase installs.
	PythonVersion string `yaml:"python_version"`

	// ProxyPort is the local port the VPN client's proxy mode binds to.
	ProxyPort int `yaml:"proxy_port"`

	// DatabaseName is the database created during the database phase.
	DatabaseName string `yaml:"database_name"`

	// Steps is the ordered step list.
	Steps []Step `yaml:"steps"`
}

// StepByName returns the named step, or nil when no such step exists.
func (p *Plan) StepByName(name string) *Step {
	for i := range p.Steps {
		if p.Steps[i].Name == name {
			return &p.Steps[i]
		}
	}
	return nil
}

// RunRecord is the journal entry for one provisioning run.
type RunRecord struct {
	ID         string     `json:"id"`          // UUID assigned when the run starts.
	PlanName   string     `json:"plan_name"`   // Name of the executed plan.
	PlanHash   string     `json:"plan_hash"`   // sha256 of the canonical plan encoding.
	Target     string     `json:"target"`      // "local" or user@host for remote runs.
	Status     RunStatus  `json:"status"`      // Overall outcome.
	StartedAt  time.Time  `json:"started_at"`  // When the run began.
	FinishedAt *time.Time `json:"finished_at"` // When the run ended (nil while running).
	DryRun     bool       `json:"dry_run"`     // Whether this was a dry run.
}

// StepResult is the journal entry for one step within a run.
type StepResult struct {
	ID       int           `json:"id"`        // Primary key in the journal.
	RunID    string        `json:"run_id"`    // Owning run.
	StepName string        `json:"step_name"` // Step identity within the plan.
	Phase    string        `json:"phase"`     // Step phase at execution time.
	Status   StepStatus    `json:"status"`    // Outcome.
	Output   string        `json:"output"`    // Captured combined output (truncated by the engine).
	Error    string        `json:"error"`     // Error text when Status is failed.
	Started  time.Time     `json:"started"`   // When the step began.
	Duration time.Duration `json:"duration"`
}

// KnownHost pins a remote host's SSH public key for the SSH runner.
type KnownHost struct {
	Hostname string `json:"hostname"`
	Key      string `json:"key"`
}

// AuditLogEntry records a user-visible action in the journal.
type AuditLogEntry struct {
	ID        int    `json:"id"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Details   string `json:"details"`
}

// BackupData is the serializable dump of the whole journal, used by the
// backup, restore, and migrate commands.
type BackupData struct {
	Runs        []RunRecord     `json:"runs"`
	StepResults []StepResult    `json:"step_results"`
	KnownHosts  []KnownHost     `json:"known_hosts"`
	AuditLog    []AuditLogEntry `json:"audit_log"`
}
