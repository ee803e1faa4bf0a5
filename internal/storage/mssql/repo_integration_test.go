//go:build integration

package mssql

import (
	"context"
	"os"
	"testing"
	"time"
)

// getTestDSN reads the MSSQL_TEST_DSN environment variable.
// If it is empty, the caller should skip the test.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MSSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MSSQL_TEST_DSN not set; skipping MSSQL integration tests")
	}
	return dsn
}

// TestCopyFromAndExecIntegration verifies that Exec and CopyFrom work together
// against a real SQL Server.
func TestCopyFromAndExecIntegration(t *testing.T) {
	dsn := getTestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closeFn, err := NewRepository(ctx, Config{DSN: dsn})
	if err != nil {
		t.Fatalf("NewRepository() error = %v, want nil", err)
	}
	defer closeFn()

	_ = repo.Exec(ctx, "IF OBJECT_ID('dbo.repo_copyfrom_test', 'U') IS NOT NULL DROP TABLE dbo.repo_copyfrom_test;")
	if err := repo.Exec(ctx, `CREATE TABLE dbo.repo_copyfrom_test (
		[_pk_] BIGINT IDENTITY(1,1) NOT NULL PRIMARY KEY,
		[id] BIGINT,
		[name] NVARCHAR(MAX)
	);`); err != nil {
		t.Fatalf("Exec(CREATE TABLE) error = %v", err)
	}

	ok, err := repo.TableExists(ctx, "repo_copyfrom_test")
	if err != nil || !ok {
		t.Fatalf("TableExists() = %v, %v; want true", ok, err)
	}

	rows := [][]any{{int64(1), "alice"}, {int64(2), nil}, {nil, "carol"}}
	n, err := repo.CopyFrom(ctx, "dbo.repo_copyfrom_test", []string{"id", "name"}, rows)
	if err != nil {
		t.Fatalf("CopyFrom() error = %v, want nil", err)
	}
	if n != int64(len(rows)) {
		t.Fatalf("CopyFrom() inserted = %d, want %d", n, len(rows))
	}
}
