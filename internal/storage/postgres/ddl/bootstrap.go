package ddl

import (
	"context"
	"errors"
	"fmt"

	gddl "socrata2sql/internal/ddl"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
)

const (
	// ProbePostGIS fails with undefined_function when PostGIS is missing.
	ProbePostGIS  = "SELECT PostGIS_version()"
	CreatePostGIS = "CREATE EXTENSION IF NOT EXISTS postgis"

	undefinedFunction = "42883"
)

// Querier is the subset of pgxpool.Pool used by EnsurePostGIS.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsurePostGIS makes geometry columns available. If PostGIS is not
// installed it tries to create the extension; when that is not possible
// (missing package, insufficient privilege) it returns a
// *ddl.DestinationUnsupportedFeatureError so callers can fall back to text.
func EnsurePostGIS(ctx context.Context, q Querier) error {
	var version string
	err := q.QueryRow(ctx, ProbePostGIS).Scan(&version)
	if err == nil {
		log.WithField("postgis", version).Debug("PostGIS available")
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != undefinedFunction {
		return fmt.Errorf("probe PostGIS: %w", err)
	}

	log.Info("PostGIS not installed; creating extension")
	if _, err := q.Exec(ctx, CreatePostGIS); err != nil {
		return &gddl.DestinationUnsupportedFeatureError{Destination: "postgres", Feature: "PostGIS", Err: err}
	}
	return nil
}
