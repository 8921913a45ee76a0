// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// package provision contains the step engine: it walks a plan in order,
// probes each step for idempotency, applies the ones that are not yet
// satisfied, and journals every outcome.
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opsforge/quartermaster/internal/db"
	"github.com/opsforge/quartermaster/internal/logging"
	"github.com/opsforge/quartermaster/internal/model"
	"github.com/opsforge/quartermaster/internal/plan"
	"github.com/opsforge/quartermaster/internal/runner"
)

// maxJournaledOutput caps how much captured command output is persisted per
// step. Anything longer is truncated with a marker.
const maxJournaledOutput = 16 * 1024

// defaultStepTimeout bounds steps that do not declare their own timeout.
const defaultStepTimeout = 15 * time.Minute

// ErrHalted is returned when a step failure stops the run. The failing
// step's result carries the underlying error text.
var ErrHalted = errors.New("provisioning halted on failed step")

// Options tunes a single engine run.
type Options struct {
	// DryRun renders and journals the steps without executing anything.
	DryRun bool
	// FromStep skips all steps before the named one. Empty runs everything.
	FromStep string
	// DatabaseDSN is the superuser DSN of the database server being
	// provisioned, used by database-kind steps. The password portion is
	// taken from the password mailbox when the DSN omits it.
	DatabaseDSN string
}

// Engine executes plans through a Runner and journals results to a Store.
type Engine struct {
	Runner runner.Runner
	Store  db.Store

	// sqlExec applies a database-kind step. Overridable in tests; defaults
	// to the pgx-backed implementation in database.go.
	sqlExec func(ctx context.Context, dsn, stmt, database string) (bool, error)
}

// New returns an Engine bound to a runner and journal store.
func New(r runner.Runner, s db.Store) *Engine {
	return &Engine{Runner: r, Store: s, sqlExec: execDatabaseStatement}
}

// Apply walks the plan sequentially. It returns the per-step results; the
// returned error is ErrHalted when a step failure stopped the run early, or
// the context error when cancelled between steps.
func (e *Engine) Apply(ctx context.Context, p *model.Plan, opts Options) ([]model.StepResult, error) {
	hash, err := plan.Hash(p)
	if err != nil {
		return nil, err
	}

	run := model.RunRecord{
		ID:        uuid.NewString(),
		PlanName:  p.Name,
		PlanHash:  hash,
		Target:    e.Runner.Target(),
		Status:    model.RunRunning,
		StartedAt: time.Now(),
		DryRun:    opts.DryRun,
	}
	if e.Store != nil {
		if err := e.Store.CreateRun(run); err != nil {
			return nil, fmt.Errorf("could not journal run: %w", err)
		}
	}

	var results []model.StepResult
	var runErr error
	status := model.RunSucceeded

	started := opts.FromStep == ""
	for i := range p.Steps {
		step := p.Steps[i]
		if !started {
			if step.Name == opts.FromStep {
				started = true
			} else {
				continue
			}
		}

		if ctx.Err() != nil {
			status = model.RunCancelled
			runErr = ctx.Err()
			break
		}

		res := e.applyStep(ctx, p, step, opts)
		res.RunID = run.ID
		results = append(results, res)
		e.journalStep(res)

		switch res.Status {
		case model.StatusFailed:
			if step.BestEffort {
				logging.Warnf("step %s failed (best effort, continuing): %s", step.String(), res.Error)
				continue
			}
			logging.Errorf("step %s failed, halting: %s", step.String(), res.Error)
			status = model.RunFailed
			runErr = ErrHalted
		case model.StatusSkipped:
			logging.Debugf("step %s already satisfied", step.String())
		default:
			logging.Infof("step %s done in %s", step.String(), res.Duration.Round(time.Millisecond))
		}
		if runErr != nil {
			break
		}
	}

	// A resume point that matches no step would otherwise skip the whole
	// plan and journal an empty successful run.
	if !started {
		status = model.RunFailed
		runErr = fmt.Errorf("plan %s has no step named %q", p.Name, opts.FromStep)
	}

	if runErr != nil && errors.Is(runErr, context.Canceled) {
		status = model.RunCancelled
	}
	if e.Store != nil {
		if err := e.Store.FinishRun(run.ID, status, time.Now()); err != nil {
			logging.Errorf("could not journal run completion: %v", err)
		}
	}
	return results, runErr
}

// applyStep probes and applies a single step, producing its journal entry.
func (e *Engine) applyStep(ctx context.Context, p *model.Plan, step model.Step, opts Options) model.StepResult {
	res := model.StepResult{
		StepName: step.Name,
		Phase:    step.Phase,
		Started:  time.Now(),
	}
	defer func() { res.Duration = time.Since(res.Started) }()

	command, err := RenderCommand(p, step)
	if err != nil {
		res.Status = model.StatusFailed
		res.Error = err.Error()
		return res
	}

	if opts.DryRun {
		res.Status = model.StatusSkipped
		res.Output = command
		return res
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Idempotency probe: a zero exit status means the step's effect is
	// already present.
	if step.Check != "" && step.Kind != model.KindDatabase {
		probe, err := e.Runner.Run(stepCtx, step.Check)
		if err == nil && probe.ExitCode == 0 {
			res.Status = model.StatusSkipped
			return res
		}
	}

	if step.Kind == model.KindDatabase {
		applied, err := e.sqlExec(stepCtx, opts.DatabaseDSN, command, p.DatabaseName)
		if err != nil {
			res.Status = model.StatusFailed
			res.Error = err.Error()
			return res
		}
		if !applied {
			res.Status = model.StatusSkipped
			return res
		}
		res.Status = model.StatusOK
		return res
	}

	out, err := e.Runner.Run(stepCtx, command)
	res.Output = truncateOutput(out.Output)
	if err != nil {
		res.Status = model.StatusFailed
		res.Error = err.Error()
		return res
	}
	if out.ExitCode != 0 {
		res.Status = model.StatusFailed
		res.Error = fmt.Sprintf("exit status %d", out.ExitCode)
		return res
	}
	res.Status = model.StatusOK
	return res
}

// journalStep persists one step result; journal failures are logged, never
// fatal to the run.
func (e *Engine) journalStep(res model.StepResult) {
	if e.Store == nil {
		return
	}
	if _, err := e.Store.AddStepResult(res); err != nil {
		logging.Errorf("could not journal step %s: %v", res.StepName, err)
	}
}

// truncateOutput caps journaled output at maxJournaledOutput bytes.
func truncateOutput(out string) string {
	if len(out) <= maxJournaledOutput {
		return out
	}
	return out[:maxJournaledOutput] + "\n... (output truncated)"
}
