// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opsforge/quartermaster/internal/model"
)

func TestBackupFileRoundtrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	data := &model.BackupData{
		Runs: []model.RunRecord{{
			ID:        "run-1",
			PlanName:  "bootstrap",
			PlanHash:  "hash",
			Target:    "local",
			Status:    model.RunSucceeded,
			StartedAt: now,
		}},
		StepResults: []model.StepResult{{
			RunID:    "run-1",
			StepName: "install-proxy-client",
			Status:   model.StatusOK,
			Started:  now,
			Duration: 2 * time.Second,
		}},
		KnownHosts: []model.KnownHost{{Hostname: "example.com", Key: "ssh-ed25519 AAAA"}},
		AuditLog:   []model.AuditLogEntry{{Timestamp: now.Format(time.RFC3339), Action: "TRUST_HOST", Details: "host: example.com"}},
	}

	path := filepath.Join(t.TempDir(), "journal.backup")
	if err := writeBackupFile(data, path); err != nil {
		t.Fatalf("writeBackupFile() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("backup file mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := readBackupFile(path)
	if err != nil {
		t.Fatalf("readBackupFile() error: %v", err)
	}
	if len(got.Runs) != 1 || got.Runs[0].ID != "run-1" {
		t.Errorf("Runs = %+v, want run-1", got.Runs)
	}
	if len(got.StepResults) != 1 || got.StepResults[0].Duration != 2*time.Second {
		t.Errorf("StepResults = %+v, want duration preserved", got.StepResults)
	}
	if len(got.KnownHosts) != 1 || got.KnownHosts[0].Hostname != "example.com" {
		t.Errorf("KnownHosts = %+v, want example.com", got.KnownHosts)
	}
	if len(got.AuditLog) != 1 {
		t.Errorf("AuditLog = %+v, want one entry", got.AuditLog)
	}
}

func TestReadBackupFileMissing(t *testing.T) {
	if _, err := readBackupFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("readBackupFile() expected error for missing file")
	}
}

func TestReadBackupFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage")
	if err := os.WriteFile(path, []byte("not zstd at all"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := readBackupFile(path); err == nil {
		t.Fatal("readBackupFile() expected error for corrupt file")
	}
}
