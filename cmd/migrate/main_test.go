package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingExecer struct {
	statements []string
}

func (r *recordingExecer) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	r.statements = append(r.statements, strings.TrimSpace(query))
	return nil, nil
}

func TestApplyFileSkipsDownSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0001_test.sql")
	content := `-- borrowers
CREATE TABLE borrowers (
    id BIGSERIAL PRIMARY KEY,
    notes TEXT DEFAULT 'a;b'
);
CREATE INDEX idx_borrowers_id ON borrowers (id);
-- +migrate Down
DROP TABLE borrowers;
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write migration: %v", err)
	}
	rec := &recordingExecer{}
	if err := applyFile(context.Background(), rec, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %#v", len(rec.statements), rec.statements)
	}
	if !strings.HasPrefix(rec.statements[0], "CREATE TABLE borrowers") || !strings.Contains(rec.statements[0], "'a;b'") {
		t.Fatalf("unexpected first statement: %q", rec.statements[0])
	}
	for _, stmt := range rec.statements {
		if strings.Contains(stmt, "DROP") {
			t.Fatalf("down section must not run: %q", stmt)
		}
	}
}
