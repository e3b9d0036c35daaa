package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// InitSchema applies the embedded schema on one pooled connection,
// executing it statement by statement. Every statement is written to be
// idempotent, so running InitSchema against an existing database is
// safe.
func InitSchema(ctx context.Context, pool *Pool) error {
	return WithConn(ctx, pool, func(conn Conn) error {
		for _, stmt := range splitStatements(schemaSQL) {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema statement %q: %w", firstLine(stmt), err)
			}
		}
		return nil
	})
}

// splitStatements breaks a schema file into individual statements,
// dropping comment-only and blank lines.
func splitStatements(sql string) []string {
	var stmts []string
	var b strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmts = append(stmts, strings.TrimSpace(b.String()))
			b.Reset()
		}
	}
	return stmts
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
