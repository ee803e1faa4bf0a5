// Package mssql implements a Microsoft SQL Server destination using the
// go-mssqldb bulk copy API. Each page is bulk-copied into the target table
// inside one transaction.
package mssql

import (
	"context"
	"fmt"
	"strings"

	gddl "socrata2sql/internal/ddl"
	msddl "socrata2sql/internal/storage/mssql/ddl"

	"github.com/jmoiron/sqlx"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// Config holds MSSQL destination configuration.
type Config struct {
	DSN string // sqlserver:// or mssql:// URL
}

// Repository is an MSSQL-backed destination.
type Repository struct {
	db *sqlx.DB
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn, err := DriverDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlx.Open("sqlserver", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlx.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: db}, func() { _ = db.Close() }, nil
}

// DriverDSN normalizes the mssql:// alias to sqlserver:// and validates the
// result early to fail fast on obvious mistakes.
func DriverDSN(raw string) (string, error) {
	if rest, ok := strings.CutPrefix(raw, "mssql://"); ok {
		raw = "sqlserver://" + rest
	}
	if _, err := msdsn.Parse(raw); err != nil {
		return "", fmt.Errorf("mssql dsn: %w", err)
	}
	return raw, nil
}

// Kind implements ddl.Destination.
func (r *Repository) Kind() string { return "mssql" }

// TableExists implements ddl.Destination.
func (r *Repository) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = @p1`, table); err != nil {
		return false, fmt.Errorf("mssql: table exists: %w", err)
	}
	return n > 0, nil
}

// EnsureSpatial implements ddl.Destination. Geometry is stored as WKT text.
func (r *Repository) EnsureSpatial(ctx context.Context) error {
	return &gddl.DestinationUnsupportedFeatureError{Destination: "mssql", Feature: "spatial columns"}
}

// CreateTableSQL implements ddl.Destination.
func (r *Repository) CreateTableSQL(spec gddl.TableSpec) (string, error) {
	return msddl.BuildCreateTableSQL(spec)
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// CopyFrom performs a bulk insert directly into table.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(msddl.QuoteFQN(table), mssql.BulkOptions{}, columns...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
