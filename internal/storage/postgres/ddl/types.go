// Package ddl contains Postgres-specific type mapping, CREATE TABLE rendering
// and the PostGIS bootstrap.
package ddl

import (
	"fmt"
	"strings"

	gddl "socrata2sql/internal/ddl"
	"socrata2sql/internal/schema"
)

// Types maps column types onto Postgres types.
//
//	integer   -> BIGINT
//	float     -> DOUBLE PRECISION
//	boolean   -> BOOLEAN
//	timestamp -> TIMESTAMP, or TIMESTAMPTZ for offset-carrying timestamps
//	json      -> JSONB
//	geometry  -> geometry(<SUBTYPE>, <SRID>) (requires PostGIS)
//	text      -> TEXT
type Types struct{}

var _ gddl.TypeMapper = Types{}

// MapType implements ddl.TypeMapper.
func (Types) MapType(t schema.SQLType) string {
	switch t.Kind {
	case schema.KindInteger:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE PRECISION"
	case schema.KindBoolean:
		return "BOOLEAN"
	case schema.KindTimestamp:
		if t.TimeZone {
			return "TIMESTAMPTZ"
		}
		return "TIMESTAMP"
	case schema.KindJSON:
		return "JSONB"
	case schema.KindGeometry:
		srid := t.SRID
		if srid <= 0 {
			srid = schema.DefaultSRID
		}
		if t.Geometry == "" {
			return fmt.Sprintf("geometry(GEOMETRY, %d)", srid)
		}
		return fmt.Sprintf("geometry(%s, %d)", t.Geometry, srid)
	default:
		return "TEXT"
	}
}

// PrimaryKeyType implements ddl.TypeMapper.
func (Types) PrimaryKeyType() string { return "BIGINT GENERATED BY DEFAULT AS IDENTITY" }

// QuoteIdent quotes a single identifier segment for Postgres, e.g.:
//
//	QuoteIdent(`amount`)     => `"amount"`
//	QuoteIdent(`weird"name`) => `"weird""name"`
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// BuildCreateTableSQL renders the CREATE TABLE statement for spec.
func BuildCreateTableSQL(spec gddl.TableSpec) (string, error) {
	return gddl.BuildCreateTableSQL(gddl.TableDefFor(spec, Types{}), QuoteIdent)
}
