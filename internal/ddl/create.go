// Package ddl turns mapped remote columns into a destination table.
//
// It owns the TableSpec (the sanitized, deduplicated shape of the table), a
// small backend-agnostic model for rendering CREATE TABLE statements, and
// BuildAndCreate, which probes the destination for spatial support and
// degrades geometry columns to WKT text when the destination has none.
//
// Dialect packages (internal/storage/*/ddl) provide type mapping and
// identifier quoting; this package never assumes a specific SQL dialect.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Rules:
//
//   - t.FQN must be non-empty.
//
//   - Each column must have a non-empty Name and SQLType.
//
//   - A column is rendered as:
//
//     <Name> <SQLType> [NOT NULL]
//
//     where NOT NULL is added when Nullable == false or the column is part of
//     the primary key.
//
//   - Primary-key columns are collected into a trailing PRIMARY KEY clause.
//
// Identifiers are passed through quote; a nil quote emits them verbatim.
func BuildCreateTableSQL(t TableDef, quote Quoter) (string, error) {
	if quote == nil {
		quote = func(s string) string { return s }
	}
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, 1)

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, quote(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n)",
		quote(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}

// TableDefFor lays out spec for a dialect: the synthetic primary key first,
// then every mapped column in source order.
func TableDefFor(spec TableSpec, types TypeMapper) TableDef {
	cols := make([]ColumnDef, 0, len(spec.Columns)+1)
	cols = append(cols, ColumnDef{
		Name:       spec.PrimaryKey,
		SQLType:    types.PrimaryKeyType(),
		PrimaryKey: true,
	})
	for _, c := range spec.Columns {
		cols = append(cols, ColumnDef{
			Name:     c.Name,
			SQLType:  types.MapType(c.Type),
			Nullable: c.Nullable,
		})
	}
	return TableDef{FQN: spec.Table, Columns: cols}
}
