// Package ddl contains SQL Server type mapping and CREATE TABLE rendering.
//
// The builder uses bracket quoting ([schema].[table], [col]) and emits a
// plain CREATE TABLE with no IF OBJECT_ID guard, so creating an existing
// table fails and the caller can report it.
package ddl

import (
	"strings"

	gddl "socrata2sql/internal/ddl"
	"socrata2sql/internal/schema"
)

// Types maps column types onto SQL Server types. Spatial types are not used;
// geometry arrives here already degraded to WKT text.
type Types struct{}

var _ gddl.TypeMapper = Types{}

// MapType implements ddl.TypeMapper.
func (Types) MapType(t schema.SQLType) string {
	switch t.Kind {
	case schema.KindInteger:
		return "BIGINT"
	case schema.KindFloat:
		return "FLOAT"
	case schema.KindBoolean:
		return "BIT"
	case schema.KindTimestamp:
		if t.TimeZone {
			return "DATETIMEOFFSET"
		}
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

// PrimaryKeyType implements ddl.TypeMapper.
func (Types) PrimaryKeyType() string { return "BIGINT IDENTITY(1,1)" }

// QuoteIdent quotes a single identifier segment using bracket syntax,
// escaping any closing brackets.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func QuoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

// QuoteFQN quotes a possibly schema-qualified table name, e.g.:
//
//	"dbo.Users"   -> [dbo].[Users]
//	"Users"       -> [Users]
func QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, QuoteIdent(p))
		}
	}
	return strings.Join(out, ".")
}

// BuildCreateTableSQL renders the CREATE TABLE statement for spec.
func BuildCreateTableSQL(spec gddl.TableSpec) (string, error) {
	return gddl.BuildCreateTableSQL(gddl.TableDefFor(spec, Types{}), QuoteFQN)
}
