// Package ddl contains MySQL-specific type mapping and CREATE TABLE
// rendering. MySQL destinations are treated as non-spatial, so geometry
// columns reach this package already degraded to text.
package ddl

import (
	"strings"

	gddl "socrata2sql/internal/ddl"
	"socrata2sql/internal/schema"
)

// Types maps column types onto MySQL types.
type Types struct{}

var _ gddl.TypeMapper = Types{}

// MapType implements ddl.TypeMapper.
func (Types) MapType(t schema.SQLType) string {
	switch t.Kind {
	case schema.KindInteger:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE"
	case schema.KindBoolean:
		return "BOOLEAN"
	case schema.KindTimestamp:
		return "DATETIME(6)"
	case schema.KindJSON:
		return "JSON"
	default:
		return "LONGTEXT"
	}
}

// PrimaryKeyType implements ddl.TypeMapper.
func (Types) PrimaryKeyType() string { return "BIGINT AUTO_INCREMENT" }

// QuoteIdent quotes an identifier with backticks, doubling embedded ones.
func QuoteIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

// BuildCreateTableSQL renders the CREATE TABLE statement for spec.
func BuildCreateTableSQL(spec gddl.TableSpec) (string, error) {
	return gddl.BuildCreateTableSQL(gddl.TableDefFor(spec, Types{}), QuoteIdent)
}
