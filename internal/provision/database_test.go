// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package provision

import (
	"context"
	"strings"
	"testing"

	"github.com/opsforge/quartermaster/internal/state"
)

func TestExpandStatementPassword(t *testing.T) {
	state.PasswordCache.Set([]byte("p4ss'word"))
	defer state.PasswordCache.Clear()

	expanded, dbName, err := expandStatement("ALTER ROLE postgres WITH PASSWORD {{password}}", "")
	if err != nil {
		t.Fatalf("expandStatement() error: %v", err)
	}
	// Single quotes inside the password must be doubled.
	want := "ALTER ROLE postgres WITH PASSWORD 'p4ss''word'"
	if expanded != want {
		t.Errorf("expanded = %q, want %q", expanded, want)
	}
	if dbName != "" {
		t.Errorf("dbName = %q, want empty", dbName)
	}
}

func TestExpandStatementMissingPassword(t *testing.T) {
	state.PasswordCache.Clear()

	_, _, err := expandStatement("ALTER ROLE postgres WITH PASSWORD {{password}}", "")
	if err == nil {
		t.Fatal("expected error when no password is cached")
	}
	if !strings.Contains(err.Error(), "password") {
		t.Errorf("error = %q, want mention of the password", err)
	}
}

func TestExpandStatementDatabase(t *testing.T) {
	expanded, dbName, err := expandStatement("CREATE DATABASE {{database}}", "my-app")
	if err != nil {
		t.Fatalf("expandStatement() error: %v", err)
	}
	if expanded != `CREATE DATABASE "my-app"` {
		t.Errorf("expanded = %q, want quoted identifier", expanded)
	}
	if dbName != "my-app" {
		t.Errorf("dbName = %q, want my-app", dbName)
	}
}

func TestExpandStatementMissingDatabase(t *testing.T) {
	if _, _, err := expandStatement("CREATE DATABASE {{database}}", ""); err == nil {
		t.Fatal("expected error when the plan defines no database name")
	}
}

func TestExpandStatementNoPlaceholders(t *testing.T) {
	expanded, dbName, err := expandStatement("SELECT 1", "app")
	if err != nil {
		t.Fatalf("expandStatement() error: %v", err)
	}
	if expanded != "SELECT 1" || dbName != "" {
		t.Errorf("got (%q, %q), want statement unchanged and no dbName", expanded, dbName)
	}
}

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "'plain'"},
		{"", "''"},
		{"o'clock", "'o''clock'"},
		{"two''quotes", "'two''''quotes'"},
	}
	for _, tt := range tests {
		if got := quoteLiteral(tt.in); got != tt.want {
			t.Errorf("quoteLiteral(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"app", `"app"`},
		{"my-app", `"my-app"`},
		{`odd"name`, `"odd""name"`},
	}
	for _, tt := range tests {
		if got := quoteIdent(tt.in); got != tt.want {
			t.Errorf("quoteIdent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExecDatabaseStatementRequiresDSN(t *testing.T) {
	if _, err := execDatabaseStatement(context.Background(), "", "SELECT 1", ""); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
