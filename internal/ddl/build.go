package ddl

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Destination is the schema-time side of a storage backend.
type Destination interface {
	// Kind names the backend, e.g. "postgres".
	Kind() string
	TableExists(ctx context.Context, table string) (bool, error)
	// EnsureSpatial makes spatial column types available, or returns a
	// *DestinationUnsupportedFeatureError when the destination cannot have
	// them.
	EnsureSpatial(ctx context.Context) error
	CreateTableSQL(spec TableSpec) (string, error)
	Exec(ctx context.Context, sql string) error
}

// BuildAndCreate creates spec's table on dest and returns the spec that was
// actually created. When the destination has no spatial support, geometry
// columns are created as text and the returned spec says so; rows must be
// coerced against the returned spec.
func BuildAndCreate(ctx context.Context, dest Destination, spec TableSpec) (TableSpec, error) {
	logger := log.WithFields(log.Fields{"table": spec.Table, "destination": dest.Kind()})

	exists, err := dest.TableExists(ctx, spec.Table)
	if err != nil {
		return spec, fmt.Errorf("check table %s: %w", spec.Table, err)
	}
	if exists {
		return spec, &TableAlreadyExistsError{Table: spec.Table}
	}

	if spec.HasGeometry {
		err := dest.EnsureSpatial(ctx)
		var unsupported *DestinationUnsupportedFeatureError
		switch {
		case errors.As(err, &unsupported):
			logger.WithError(err).Warn("geometry columns will be stored as WKT text")
			spec = spec.WithoutGeometry()
		case err != nil:
			return spec, fmt.Errorf("enable spatial types: %w", err)
		default:
			logger.Debug("spatial types available")
		}
	}

	stmt, err := dest.CreateTableSQL(spec)
	if err != nil {
		return spec, fmt.Errorf("render table %s: %w", spec.Table, err)
	}
	logger.WithField("sql", stmt).Debug("creating table")
	if err := dest.Exec(ctx, stmt); err != nil {
		// Lost a race with another creator.
		if exists, xerr := dest.TableExists(ctx, spec.Table); xerr == nil && exists {
			return spec, &TableAlreadyExistsError{Table: spec.Table}
		}
		return spec, fmt.Errorf("create table %s: %w", spec.Table, err)
	}
	logger.WithField("columns", len(spec.Columns)).Info("table created")
	return spec, nil
}
