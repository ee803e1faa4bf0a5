// Package postgres implements a Postgres destination using pgx v5.
//
// Plain pages are loaded with COPY. Pages carrying geometry values go through
// a pipelined batch of INSERTs in one transaction, passing geometries as EWKT
// text to ST_GeomFromEWKT; COPY's binary format has no encoder for PostGIS
// types.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gddl "socrata2sql/internal/ddl"
	"socrata2sql/internal/schema"
	pgddl "socrata2sql/internal/storage/postgres/ddl"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres destination configuration.
type Config struct {
	DSN string // connection string or URL for pgxpool
}

// db is the subset of *pgxpool.Pool the repository uses.
type db interface {
	pgddl.Querier
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository is a Postgres-backed destination.
type Repository struct {
	db db
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repository{db: pool}, pool.Close, nil
}

// Kind implements ddl.Destination.
func (r *Repository) Kind() string { return "postgres" }

// TableExists implements ddl.Destination. The name is resolved through the
// search path.
func (r *Repository) TableExists(ctx context.Context, table string) (bool, error) {
	var ok bool
	if err := r.db.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", pgddl.QuoteIdent(table)).Scan(&ok); err != nil {
		return false, fmt.Errorf("postgres: table exists: %w", err)
	}
	return ok, nil
}

// EnsureSpatial implements ddl.Destination.
func (r *Repository) EnsureSpatial(ctx context.Context) error {
	return pgddl.EnsurePostGIS(ctx, r.db)
}

// CreateTableSQL implements ddl.Destination.
func (r *Repository) CreateTableSQL(spec gddl.TableSpec) (string, error) {
	return pgddl.BuildCreateTableSQL(spec)
}

// Exec executes a SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.db.Exec(ctx, sql)
	return err
}

// CopyFrom inserts rows into table atomically and returns the number of rows
// inserted.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if geom := geometryColumns(rows); len(geom) > 0 {
		return r.insertBatch(ctx, table, columns, rows, geom)
	}
	n, err := r.db.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, describe("copy", err)
	}
	return n, nil
}

func (r *Repository) insertBatch(ctx context.Context, table string, columns []string, rows [][]any, geom map[int]bool) (int64, error) {
	stmt := insertSQL(table, columns, geom)

	batch := &pgx.Batch{}
	for _, row := range rows {
		args, err := ewktArgs(row)
		if err != nil {
			return 0, fmt.Errorf("postgres: encode geometry: %w", err)
		}
		batch.Queue(stmt, args...)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	br := tx.SendBatch(ctx, batch)
	var inserted int64
	for i := range rows {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, describe(fmt.Sprintf("insert row %d", i), err)
		}
		inserted += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return 0, describe("close batch", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return inserted, nil
}

// geometryColumns returns the indexes of columns holding geometry values in
// any row.
func geometryColumns(rows [][]any) map[int]bool {
	var out map[int]bool
	for _, row := range rows {
		for i, v := range row {
			if _, ok := v.(schema.Geometry); ok {
				if out == nil {
					out = make(map[int]bool)
				}
				out[i] = true
			}
		}
	}
	return out
}

// ewktArgs replaces geometry values with their EWKT text.
func ewktArgs(row []any) ([]any, error) {
	args := make([]any, len(row))
	for i, v := range row {
		g, ok := v.(schema.Geometry)
		if !ok {
			args[i] = v
			continue
		}
		s, err := g.EWKT()
		if err != nil {
			return nil, err
		}
		args[i] = s
	}
	return args, nil
}

func insertSQL(table string, columns []string, geom map[int]bool) string {
	cols := make([]string, len(columns))
	vals := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = pgddl.QuoteIdent(c)
		if geom[i] {
			vals[i] = fmt.Sprintf("ST_GeomFromEWKT($%d)", i+1)
		} else {
			vals[i] = fmt.Sprintf("$%d", i+1)
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgddl.QuoteIdent(table), strings.Join(cols, ", "), strings.Join(vals, ", "))
}

// describe surfaces the server's detail message, which names the offending
// value, when there is one.
func describe(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("postgres: %s: %s (%s): %w", op, pgErr.Detail, pgErr.SQLState(), err)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
