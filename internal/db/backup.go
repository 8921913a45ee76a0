// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"errors"
	"fmt"

	"github.com/opsforge/quartermaster/internal/model"
)

// ExportBackup dumps the entire journal into a BackupData snapshot.
func ExportBackup(s Store) (*model.BackupData, error) {
	runs, err := s.GetAllRuns()
	if err != nil {
		return nil, fmt.Errorf("export runs: %w", err)
	}

	var results []model.StepResult
	for _, r := range runs {
		rs, err := s.GetStepResults(r.ID)
		if err != nil {
			return nil, fmt.Errorf("export step results for run %s: %w", r.ID, err)
		}
		results = append(results, rs...)
	}

	hosts, err := s.GetAllKnownHosts()
	if err != nil {
		return nil, fmt.Errorf("export known hosts: %w", err)
	}

	audit, err := s.GetAllAuditLogEntries()
	if err != nil {
		return nil, fmt.Errorf("export audit log: %w", err)
	}

	return &model.BackupData{
		Runs:        runs,
		StepResults: results,
		KnownHosts:  hosts,
		AuditLog:    audit,
	}, nil
}

// ImportBackup loads a BackupData snapshot into the store. With full=true
// all existing data is wiped first; otherwise only records that do not
// already exist are added (runs are matched by id, hosts by hostname).
func ImportBackup(s Store, data *model.BackupData, full bool) error {
	if full {
		if err := s.WipeAll(); err != nil {
			return fmt.Errorf("wipe before restore: %w", err)
		}
	}

	for _, r := range data.Runs {
		if !full {
			_, err := s.GetRun(r.ID)
			if err == nil {
				continue
			}
			if !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("restore run %s: %w", r.ID, err)
			}
		}
		if err := s.CreateRun(r); err != nil {
			return fmt.Errorf("restore run %s: %w", r.ID, err)
		}
		for _, res := range data.StepResults {
			if res.RunID != r.ID {
				continue
			}
			if _, err := s.AddStepResult(res); err != nil {
				return fmt.Errorf("restore step result %s/%s: %w", res.RunID, res.StepName, err)
			}
		}
	}

	for _, h := range data.KnownHosts {
		if !full {
			_, err := s.GetKnownHostKey(h.Hostname)
			if err == nil {
				continue
			}
			if !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("restore known host %s: %w", h.Hostname, err)
			}
		}
		if err := s.AddKnownHostKey(h.Hostname, h.Key); err != nil {
			return fmt.Errorf("restore known host %s: %w", h.Hostname, err)
		}
	}

	// Audit entries are append-only history; replay them verbatim only on a
	// full restore to avoid duplicating the log on integrate restores.
	if full {
		for _, e := range data.AuditLog {
			if err := s.AddAuditLogEntry(e); err != nil {
				return fmt.Errorf("restore audit entry: %w", err)
			}
		}
	}

	return nil
}
