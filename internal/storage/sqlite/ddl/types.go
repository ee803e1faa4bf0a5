// Package ddl contains SQLite-specific type mapping and CREATE TABLE
// rendering.
package ddl

import (
	"strings"

	gddl "socrata2sql/internal/ddl"
	"socrata2sql/internal/schema"
)

// Types maps column types onto SQLite affinities.
//
//	integer           -> INTEGER
//	boolean           -> INTEGER (0/1)
//	float             -> REAL
//	timestamp         -> TIMESTAMP (the driver round-trips time.Time)
//	text, json        -> TEXT
//	geometry          -> TEXT (SQLite has no spatial types; WKT)
type Types struct{}

var _ gddl.TypeMapper = Types{}

// MapType implements ddl.TypeMapper.
func (Types) MapType(t schema.SQLType) string {
	switch t.Kind {
	case schema.KindInteger, schema.KindBoolean:
		return "INTEGER"
	case schema.KindFloat:
		return "REAL"
	case schema.KindTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// PrimaryKeyType implements ddl.TypeMapper. A single INTEGER primary key is
// an alias for the rowid and auto-increments.
func (Types) PrimaryKeyType() string { return "INTEGER" }

// QuoteIdent double-quotes an identifier, escaping embedded quotes.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// BuildCreateTableSQL renders the CREATE TABLE statement for spec.
func BuildCreateTableSQL(spec gddl.TableSpec) (string, error) {
	return gddl.BuildCreateTableSQL(gddl.TableDefFor(spec, Types{}), QuoteIdent)
}
