// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"time"

	"github.com/opsforge/quartermaster/internal/model"
)

// Store defines the interface for all journal database operations in
// Quartermaster. This allows for multiple database backends to be implemented.
type Store interface {
	// Run journal methods
	CreateRun(run model.RunRecord) error
	FinishRun(id string, status model.RunStatus, finishedAt time.Time) error
	// GetRun returns ErrNotFound when no run has the given id.
	GetRun(id string) (*model.RunRecord, error)
	GetLatestRun() (*model.RunRecord, error)
	GetAllRuns() ([]model.RunRecord, error)
	AddStepResult(res model.StepResult) (int, error)
	GetStepResults(runID string) ([]model.StepResult, error)

	// Host Key methods
	// GetKnownHostKey returns ErrNotFound for hosts that are not pinned.
	GetKnownHostKey(hostname string) (string, error)
	AddKnownHostKey(hostname, key string) error
	GetAllKnownHosts() ([]model.KnownHost, error)

	// Audit Log methods
	LogAction(action string, details string) error
	AddAuditLogEntry(e model.AuditLogEntry) error
	GetAllAuditLogEntries() ([]model.AuditLogEntry, error)

	// WipeAll removes all journal data. Used by the full restore path.
	WipeAll() error
}

// store is the package-level active store, set by New.
var store Store

// IsInitialized reports whether the package-level store has been set.
func IsInitialized() bool {
	return store != nil
}

// Default returns the package-level store. Callers must ensure New has been
// called first.
func Default() Store {
	return store
}

// GetKnownHostKey looks up a pinned host key through the package-level store.
// It exists so the SSH runner's host key callback does not need a store
// handle threaded through every call site.
func GetKnownHostKey(hostname string) (string, error) {
	if store == nil {
		return "", ErrNotInitialized
	}
	return store.GetKnownHostKey(hostname)
}

// AddKnownHostKey pins a host key through the package-level store.
func AddKnownHostKey(hostname, key string) error {
	if store == nil {
		return ErrNotInitialized
	}
	return store.AddKnownHostKey(hostname, key)
}

// LogAction records an audit entry through the package-level store. Audit
// failures are deliberately not fatal to callers.
func LogAction(action, details string) error {
	if store == nil {
		return ErrNotInitialized
	}
	return store.LogAction(action, details)
}
