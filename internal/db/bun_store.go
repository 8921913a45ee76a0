// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/opsforge/quartermaster/internal/model"
)

// RunModel maps the `runs` table for Bun queries.
type RunModel struct {
	bun.BaseModel `bun:"table:runs"`
	ID            string     `bun:"id,pk"`
	PlanName      string     `bun:"plan_name"`
	PlanHash      string     `bun:"plan_hash"`
	Target        string     `bun:"target"`
	Status        string     `bun:"status"`
	StartedAt     time.Time  `bun:"started_at"`
	FinishedAt    *time.Time `bun:"finished_at,nullzero"`
	DryRun        bool       `bun:"dry_run"`
}

// StepResultModel maps the `step_results` table for Bun queries.
type StepResultModel struct {
	bun.BaseModel `bun:"table:step_results"`
	ID            int       `bun:"id,pk,autoincrement"`
	RunID         string    `bun:"run_id"`
	StepName      string    `bun:"step_name"`
	Phase         string    `bun:"phase"`
	Status        string    `bun:"status"`
	Output        string    `bun:"output"`
	Error         string    `bun:"error"`
	Started       time.Time `bun:"started"`
	DurationMS    int64     `bun:"duration_ms"`
}

// KnownHostModel maps the `known_hosts` table for Bun queries.
type KnownHostModel struct {
	bun.BaseModel `bun:"table:known_hosts"`
	Hostname      string `bun:"hostname,pk"`
	Key           string `bun:"key"`
}

// AuditLogModel maps the `audit_log` table for Bun queries.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int    `bun:"id,pk,autoincrement"`
	Timestamp     string `bun:"timestamp"`
	Action        string `bun:"action"`
	Details       string `bun:"details"`
}

// BunStore is the bun-backed implementation of the Store interface. The same
// implementation serves SQLite, PostgreSQL, and MySQL; the dialect is carried
// by the wrapped *bun.DB.
type BunStore struct {
	bun    *bun.DB
	dbType string
}

// Bun exposes the underlying *bun.DB for maintenance-style callers.
func (s *BunStore) Bun() *bun.DB { return s.bun }

func runModelToModel(m RunModel) model.RunRecord {
	return model.RunRecord{
		ID:         m.ID,
		PlanName:   m.PlanName,
		PlanHash:   m.PlanHash,
		Target:     m.Target,
		Status:     model.RunStatus(m.Status),
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		DryRun:     m.DryRun,
	}
}

func stepResultModelToModel(m StepResultModel) model.StepResult {
	return model.StepResult{
		ID:       m.ID,
		RunID:    m.RunID,
		StepName: m.StepName,
		Phase:    m.Phase,
		Status:   model.StepStatus(m.Status),
		Output:   m.Output,
		Error:    m.Error,
		Started:  m.Started,
		Duration: time.Duration(m.DurationMS) * time.Millisecond,
	}
}

// CreateRun inserts a new run record.
func (s *BunStore) CreateRun(run model.RunRecord) error {
	ctx := context.Background()
	m := RunModel{
		ID:         run.ID,
		PlanName:   run.PlanName,
		PlanHash:   run.PlanHash,
		Target:     run.Target,
		Status:     string(run.Status),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		DryRun:     run.DryRun,
	}
	if _, err := s.bun.NewInsert().Model(&m).Exec(ctx); err != nil {
		return err
	}
	_ = s.LogAction("RUN_STARTED", "run: "+run.ID+" plan: "+run.PlanName)
	return nil
}

// FinishRun marks a run as finished with the given status.
func (s *BunStore) FinishRun(id string, status model.RunStatus, finishedAt time.Time) error {
	ctx := context.Background()
	_, err := s.bun.NewUpdate().
		Model((*RunModel)(nil)).
		Set("status = ?", string(status)).
		Set("finished_at = ?", finishedAt).
		Where("id = ?", id).
		Exec(ctx)
	if err == nil {
		_ = s.LogAction("RUN_FINISHED", "run: "+id+" status: "+string(status))
	}
	return err
}

// GetRun retrieves a run by id. A run that does not exist returns
// ErrNotFound.
func (s *BunStore) GetRun(id string) (*model.RunRecord, error) {
	ctx := context.Background()
	var m RunModel
	err := s.bun.NewSelect().Model(&m).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r := runModelToModel(m)
	return &r, nil
}

// GetLatestRun returns the most recently started run, or nil when the
// journal is empty.
func (s *BunStore) GetLatestRun() (*model.RunRecord, error) {
	ctx := context.Background()
	var m RunModel
	err := s.bun.NewSelect().Model(&m).Order("started_at DESC").Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	r := runModelToModel(m)
	return &r, nil
}

// GetAllRuns returns all runs, newest first.
func (s *BunStore) GetAllRuns() ([]model.RunRecord, error) {
	ctx := context.Background()
	var ms []RunModel
	if err := s.bun.NewSelect().Model(&ms).Order("started_at DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.RunRecord, 0, len(ms))
	for _, m := range ms {
		out = append(out, runModelToModel(m))
	}
	return out, nil
}

// AddStepResult appends a step result to the journal and returns its id.
func (s *BunStore) AddStepResult(res model.StepResult) (int, error) {
	ctx := context.Background()
	m := StepResultModel{
		RunID:      res.RunID,
		StepName:   res.StepName,
		Phase:      res.Phase,
		Status:     string(res.Status),
		Output:     res.Output,
		Error:      res.Error,
		Started:    res.Started,
		DurationMS: res.Duration.Milliseconds(),
	}
	if _, err := s.bun.NewInsert().Model(&m).Exec(ctx); err != nil {
		return 0, err
	}
	return m.ID, nil
}

// GetStepResults returns the step results for one run in execution order.
func (s *BunStore) GetStepResults(runID string) ([]model.StepResult, error) {
	ctx := context.Background()
	var ms []StepResultModel
	if err := s.bun.NewSelect().Model(&ms).Where("run_id = ?", runID).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.StepResult, 0, len(ms))
	for _, m := range ms {
		out = append(out, stepResultModelToModel(m))
	}
	return out, nil
}

// GetKnownHostKey returns the pinned key for a hostname. A host that has not
// been trusted yet returns ErrNotFound.
func (s *BunStore) GetKnownHostKey(hostname string) (string, error) {
	ctx := context.Background()
	var m KnownHostModel
	err := s.bun.NewSelect().Model(&m).Where("hostname = ?", hostname).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return m.Key, nil
}

// AddKnownHostKey pins (or re-pins) a host key.
func (s *BunStore) AddKnownHostKey(hostname, key string) error {
	ctx := context.Background()
	m := KnownHostModel{Hostname: hostname, Key: key}
	// Upsert: replace any existing pin for the host.
	if _, err := s.bun.NewDelete().Model((*KnownHostModel)(nil)).Where("hostname = ?", hostname).Exec(ctx); err != nil {
		return err
	}
	if _, err := s.bun.NewInsert().Model(&m).Exec(ctx); err != nil {
		return err
	}
	_ = s.LogAction("TRUST_HOST", "host: "+hostname)
	return nil
}

// GetAllKnownHosts returns every pinned host key.
func (s *BunStore) GetAllKnownHosts() ([]model.KnownHost, error) {
	ctx := context.Background()
	var ms []KnownHostModel
	if err := s.bun.NewSelect().Model(&ms).Order("hostname ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.KnownHost, 0, len(ms))
	for _, m := range ms {
		out = append(out, model.KnownHost{Hostname: m.Hostname, Key: m.Key})
	}
	return out, nil
}

// LogAction records an audit entry with the current timestamp.
func (s *BunStore) LogAction(action, details string) error {
	return s.AddAuditLogEntry(model.AuditLogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Action:    action,
		Details:   details,
	})
}

// AddAuditLogEntry inserts an audit entry verbatim. Used by LogAction and by
// the restore path, which must preserve original timestamps.
func (s *BunStore) AddAuditLogEntry(e model.AuditLogEntry) error {
	ctx := context.Background()
	m := AuditLogModel{Timestamp: e.Timestamp, Action: e.Action, Details: e.Details}
	_, err := s.bun.NewInsert().Model(&m).Exec(ctx)
	return err
}

// GetAllAuditLogEntries returns the audit log, newest first.
func (s *BunStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	ctx := context.Background()
	var ms []AuditLogModel
	if err := s.bun.NewSelect().Model(&ms).Order("id DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.AuditLogEntry, 0, len(ms))
	for _, m := range ms {
		out = append(out, model.AuditLogEntry{ID: m.ID, Timestamp: m.Timestamp, Action: m.Action, Details: m.Details})
	}
	return out, nil
}

// WipeAll removes every journal row. Bun requires a WHERE clause on deletes,
// so raw statements are used here.
func (s *BunStore) WipeAll() error {
	ctx := context.Background()
	for _, stmt := range []string{
		"DELETE FROM step_results",
		"DELETE FROM runs",
		"DELETE FROM known_hosts",
		"DELETE FROM audit_log",
	} {
		if _, err := s.bun.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
