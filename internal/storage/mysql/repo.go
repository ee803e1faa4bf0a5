// Package mysql implements a MySQL destination on database/sql via sqlx and
// go-sql-driver/mysql. Pages are written as multi-row INSERT statements in
// one transaction.
package mysql

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	gddl "socrata2sql/internal/ddl"
	myddl "socrata2sql/internal/storage/mysql/ddl"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// maxPlaceholders is the server's limit on parameters in one prepared
// statement.
const maxPlaceholders = 65535

// Config holds MySQL destination configuration.
type Config struct {
	DSN string // mysql:// URL or a native driver DSN
}

// Repository is a MySQL-backed destination.
type Repository struct {
	db *sqlx.DB
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn, err := DriverDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlx.Open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Repository{db: db}, func() { _ = db.Close() }, nil
}

// DriverDSN converts a mysql:// URL into the driver's DSN format. Native
// DSNs ("user:pass@tcp(host:3306)/db") are accepted as well. Time parsing is
// always enabled so DATETIME columns scan into time.Time.
func DriverDSN(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		cfg, err := mysql.ParseDSN(raw)
		if err != nil {
			return "", fmt.Errorf("mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("mysql url: %w", err)
	}
	cfg := mysql.NewConfig()
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if cfg.DBName == "" {
		return "", fmt.Errorf("mysql url %q names no database", u.Redacted())
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if q := u.Query(); len(q) > 0 {
		cfg.Params = make(map[string]string, len(q))
		for k := range q {
			cfg.Params[k] = q.Get(k)
		}
	}
	// Round-trip through the parser so driver-level options in the query
	// string are validated here rather than at first connect.
	if _, err := mysql.ParseDSN(cfg.FormatDSN()); err != nil {
		return "", fmt.Errorf("mysql url: %w", err)
	}
	return cfg.FormatDSN(), nil
}

// Kind implements ddl.Destination.
func (r *Repository) Kind() string { return "mysql" }

// TableExists implements ddl.Destination for the connection's database.
func (r *Repository) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`, table)
	if err != nil {
		return false, fmt.Errorf("mysql: table exists: %w", err)
	}
	return n > 0, nil
}

// EnsureSpatial implements ddl.Destination. Geometry is stored as WKT text.
func (r *Repository) EnsureSpatial(ctx context.Context) error {
	return &gddl.DestinationUnsupportedFeatureError{Destination: "mysql", Feature: "spatial columns"}
}

// CreateTableSQL implements ddl.Destination.
func (r *Repository) CreateTableSQL(spec gddl.TableSpec) (string, error) {
	return myddl.BuildCreateTableSQL(spec)
}

// Exec executes a SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// CopyFrom inserts rows into table in one transaction, chunked so that no
// statement exceeds the placeholder limit.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: no columns")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	var inserted int64
	for _, chunk := range chunkRows(rows, maxPlaceholders/len(columns)) {
		args := make([]any, 0, len(chunk)*len(columns))
		for i, row := range chunk {
			if len(row) != len(columns) {
				rollback()
				return 0, fmt.Errorf("mysql: row %d has %d values, want %d", i, len(row), len(columns))
			}
			args = append(args, row...)
		}
		res, err := tx.ExecContext(ctx, insertSQL(table, columns, len(chunk)), args...)
		if err != nil {
			rollback()
			return 0, fmt.Errorf("mysql: insert: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			rollback()
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func chunkRows(rows [][]any, size int) [][][]any {
	if size < 1 {
		size = 1
	}
	var out [][][]any
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	return append(out, rows)
}

// insertSQL renders a multi-row INSERT, e.g.
//
//	INSERT INTO `t` (`a`, `b`) VALUES (?, ?), (?, ?)
func insertSQL(table string, columns []string, nrows int) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = myddl.QuoteIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	tuples := make([]string, nrows)
	for i := range tuples {
		tuples[i] = tuple
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		myddl.QuoteIdent(table), strings.Join(cols, ", "), strings.Join(tuples, ", "))
}
