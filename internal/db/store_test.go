// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/opsforge/quartermaster/internal/model"
)

var storeSeq int

// newTestStore opens a fresh shared-cache in-memory SQLite journal. Each test
// gets its own database name so tests stay isolated.
func newTestStore(t *testing.T) Store {
	t.Helper()
	storeSeq++
	dsn := fmt.Sprintf("file:journal_test_%d?mode=memory&cache=shared", storeSeq)
	s, err := NewStoreFromDSN("sqlite", dsn)
	if err != nil {
		t.Fatalf("could not open test store: %v", err)
	}
	return s
}

func sampleRun(id string) model.RunRecord {
	return model.RunRecord{
		ID:        id,
		PlanName:  "bootstrap",
		PlanHash:  "abc123",
		Target:    "local",
		Status:    model.RunRunning,
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	run := sampleRun("run-1")
	if err := s.CreateRun(run); err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}

	got, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got == nil || got.PlanName != "bootstrap" || got.Status != model.RunRunning {
		t.Fatalf("GetRun() = %+v, want running bootstrap run", got)
	}
	if got.FinishedAt != nil {
		t.Error("unfinished run must have nil FinishedAt")
	}

	finished := time.Now().UTC().Truncate(time.Second)
	if err := s.FinishRun("run-1", model.RunSucceeded, finished); err != nil {
		t.Fatalf("FinishRun() error: %v", err)
	}

	got, err = s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got.Status != model.RunSucceeded {
		t.Errorf("status = %s, want succeeded", got.Status)
	}
	if got.FinishedAt == nil {
		t.Error("finished run must have FinishedAt set")
	}
}

func TestGetRunMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetRun("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRun(missing) error = %v, want ErrNotFound", err)
	}
	if got != nil {
		t.Errorf("GetRun(missing) = %+v, want nil", got)
	}
}

func TestGetLatestRun(t *testing.T) {
	s := newTestStore(t)

	if got, err := s.GetLatestRun(); err != nil || got != nil {
		t.Fatalf("GetLatestRun() on empty journal = (%+v, %v), want (nil, nil)", got, err)
	}

	older := sampleRun("run-old")
	older.StartedAt = time.Now().Add(-time.Hour).UTC()
	newer := sampleRun("run-new")

	if err := s.CreateRun(older); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateRun(newer); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetLatestRun()
	if err != nil {
		t.Fatalf("GetLatestRun() error: %v", err)
	}
	if got.ID != "run-new" {
		t.Errorf("GetLatestRun() = %s, want run-new", got.ID)
	}

	runs, err := s.GetAllRuns()
	if err != nil {
		t.Fatalf("GetAllRuns() error: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-new" {
		t.Errorf("GetAllRuns() = %v, want newest first", runs)
	}
}

func TestStepResults(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateRun(sampleRun("run-1")); err != nil {
		t.Fatal(err)
	}

	for i, status := range []model.StepStatus{model.StatusOK, model.StatusSkipped, model.StatusFailed} {
		id, err := s.AddStepResult(model.StepResult{
			RunID:    "run-1",
			StepName: fmt.Sprintf("step-%d", i),
			Phase:    "test",
			Status:   status,
			Output:   "out",
			Error:    "",
			Started:  time.Now().UTC(),
			Duration: 1500 * time.Millisecond,
		})
		if err != nil {
			t.Fatalf("AddStepResult() error: %v", err)
		}
		if id == 0 {
			t.Error("AddStepResult() must return the new row id")
		}
	}

	results, err := s.GetStepResults("run-1")
	if err != nil {
		t.Fatalf("GetStepResults() error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[0].StepName != "step-0" || results[2].Status != model.StatusFailed {
		t.Errorf("results out of order: %+v", results)
	}
	if results[0].Duration != 1500*time.Millisecond {
		t.Errorf("duration = %s, want 1.5s round-tripped", results[0].Duration)
	}
}

func TestKnownHosts(t *testing.T) {
	s := newTestStore(t)

	key, err := s.GetKnownHostKey("example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetKnownHostKey(untrusted) error = %v, want ErrNotFound", err)
	}
	if key != "" {
		t.Errorf("unknown host key = %q, want empty", key)
	}

	if err := s.AddKnownHostKey("example.com", "ssh-ed25519 AAAA..."); err != nil {
		t.Fatalf("AddKnownHostKey() error: %v", err)
	}
	key, err = s.GetKnownHostKey("example.com")
	if err != nil {
		t.Fatal(err)
	}
	if key != "ssh-ed25519 AAAA..." {
		t.Errorf("key = %q, want pinned key", key)
	}

	// Re-pinning replaces the old key.
	if err := s.AddKnownHostKey("example.com", "ssh-rsa BBBB..."); err != nil {
		t.Fatal(err)
	}
	hosts, err := s.GetAllKnownHosts()
	if err != nil {
		t.Fatal(err)
	}
	if len(hosts) != 1 || hosts[0].Key != "ssh-rsa BBBB..." {
		t.Errorf("hosts = %+v, want single re-pinned host", hosts)
	}
}

func TestAuditLog(t *testing.T) {
	s := newTestStore(t)

	if err := s.LogAction("TRUST_HOST", "host: a"); err != nil {
		t.Fatalf("LogAction() error: %v", err)
	}
	if err := s.LogAction("RUN_STARTED", "run: b"); err != nil {
		t.Fatal(err)
	}

	entries, err := s.GetAllAuditLogEntries()
	if err != nil {
		t.Fatalf("GetAllAuditLogEntries() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Action != "RUN_STARTED" {
		t.Errorf("entries[0].Action = %s, want RUN_STARTED", entries[0].Action)
	}
	if entries[0].Timestamp == "" {
		t.Error("LogAction must stamp entries")
	}
}

func TestCreateRunIsAudited(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateRun(sampleRun("run-1")); err != nil {
		t.Fatal(err)
	}
	entries, err := s.GetAllAuditLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Action != "RUN_STARTED" {
		t.Errorf("entries = %+v, want one RUN_STARTED entry", entries)
	}
}

func TestWipeAll(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateRun(sampleRun("run-1")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddStepResult(model.StepResult{RunID: "run-1", StepName: "x", Status: model.StatusOK, Started: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddKnownHostKey("h", "k"); err != nil {
		t.Fatal(err)
	}

	if err := s.WipeAll(); err != nil {
		t.Fatalf("WipeAll() error: %v", err)
	}

	runs, _ := s.GetAllRuns()
	hosts, _ := s.GetAllKnownHosts()
	entries, _ := s.GetAllAuditLogEntries()
	if len(runs) != 0 || len(hosts) != 0 || len(entries) != 0 {
		t.Errorf("after WipeAll: runs=%d hosts=%d audit=%d, want all 0", len(runs), len(hosts), len(entries))
	}
}
