// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/opsforge/quartermaster/internal/state"
)

// Database-kind steps carry SQL with two placeholders: {{password}} expands
// to the superuser password held in the password mailbox (quoted as a SQL
// literal) and {{database}} expands to the plan's database name (quoted as an
// identifier). The statements are issued directly over pgx rather than by
// driving an interactive SQL shell, which makes them repeatable: CREATE
// DATABASE is preceded by an existence probe and skipped when the database
// is already there.

// execDatabaseStatement applies one database step. It reports whether the
// statement was actually executed (false means the existence probe found the
// effect already present).
func execDatabaseStatement(ctx context.Context, dsn, stmt, database string) (bool, error) {
	if dsn == "" {
		return false, fmt.Errorf("database step requires a provisioning DSN (set provision.database_dsn)")
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return false, fmt.Errorf("could not connect to database server: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	expanded, dbName, err := expandStatement(stmt, database)
	if err != nil {
		return false, err
	}

	// CREATE DATABASE cannot run inside a transaction and is not idempotent
	// on its own, so probe pg_database first.
	if dbName != "" && strings.HasPrefix(strings.ToUpper(strings.TrimSpace(stmt)), "CREATE DATABASE") {
		var one int
		err := conn.QueryRow(ctx, "SELECT 1 FROM pg_database WHERE datname = $1", dbName).Scan(&one)
		if err == nil {
			return false, nil // already exists
		}
		if err != pgx.ErrNoRows {
			return false, fmt.Errorf("could not probe for database %q: %w", dbName, err)
		}
	}

	if _, err := conn.Exec(ctx, expanded); err != nil {
		return false, fmt.Errorf("database statement failed: %w", err)
	}
	return true, nil
}

// expandStatement substitutes the {{password}} and {{database}} placeholders.
// It returns the expanded SQL and, when {{database}} was used, the plain
// database name for probing. DDL placeholders cannot use bind parameters, so
// both values are embedded with proper quoting instead.
func expandStatement(stmt, database string) (expanded, dbName string, err error) {
	expanded = stmt

	if strings.Contains(expanded, "{{password}}") {
		pw := state.PasswordCache.Get()
		if len(pw) == 0 {
			return "", "", fmt.Errorf("statement needs the superuser password but none was provided")
		}
		expanded = strings.ReplaceAll(expanded, "{{password}}", quoteLiteral(string(pw)))
		for i := range pw {
			pw[i] = 0
		}
	}

	if strings.Contains(expanded, "{{database}}") {
		if database == "" {
			return "", "", fmt.Errorf("statement needs a database name but the plan defines none")
		}
		dbName = database
		expanded = strings.ReplaceAll(expanded, "{{database}}", quoteIdent(dbName))
	}

	return expanded, dbName, nil
}

// quoteLiteral quotes s as a SQL string literal. DDL statements like ALTER
// ROLE cannot take bind parameters, so the password is embedded with
// standard single-quote doubling.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdent quotes s as a SQL identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
