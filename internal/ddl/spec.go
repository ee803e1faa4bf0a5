package ddl

import (
	"fmt"
	"strings"

	"socrata2sql/internal/schema"
)

// PrimaryKeyName is the synthetic auto-incrementing key every table gets.
const PrimaryKeyName = "_pk_"

// TableSpec is the complete shape of a destination table. Column names are
// unique sanitized identifiers; PrimaryKey never collides with them.
type TableSpec struct {
	Table       string
	PrimaryKey  string
	Columns     []schema.MappedColumn
	HasGeometry bool
}

// NewTableSpec sanitizes the table name and deduplicates column identifiers
// (name, name_2, name_3, ...). Column order is kept.
func NewTableSpec(table string, cols []schema.MappedColumn) (TableSpec, error) {
	if strings.TrimSpace(table) == "" {
		return TableSpec{}, &SchemaMappingError{Reason: "empty table name"}
	}
	name := schema.SanitizeIdentifier(table)
	if len(cols) == 0 {
		return TableSpec{}, &SchemaMappingError{Table: name, Reason: "dataset has no columns"}
	}

	spec := TableSpec{
		Table:      name,
		PrimaryKey: PrimaryKeyName,
		Columns:    make([]schema.MappedColumn, 0, len(cols)),
	}
	used := map[string]bool{PrimaryKeyName: true}
	for _, c := range cols {
		if strings.TrimSpace(c.Field) == "" {
			return TableSpec{}, &SchemaMappingError{Table: name, Column: c.Name, Reason: "column has no source field"}
		}
		base := c.Name
		if base == "" {
			base = schema.SanitizeIdentifier(c.Field)
		}
		c.Name = uniqueName(base, used)
		used[c.Name] = true
		if c.Type.Kind == schema.KindGeometry {
			spec.HasGeometry = true
		}
		spec.Columns = append(spec.Columns, c)
	}
	return spec, nil
}

func uniqueName(base string, used map[string]bool) string {
	if !used[base] {
		return base
	}
	for i := 2; ; i++ {
		suffix := fmt.Sprintf("_%d", i)
		b := base
		if len(b)+len(suffix) > schema.MaxIdentifierLen {
			b = b[:schema.MaxIdentifierLen-len(suffix)]
		}
		if cand := b + suffix; !used[cand] {
			return cand
		}
	}
}

// ColumnNames returns the insert column list: every mapped column, without
// the synthetic key.
func (s TableSpec) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// WithoutGeometry returns a copy where geometry columns are stored as WKT
// text.
func (s TableSpec) WithoutGeometry() TableSpec {
	out := s
	out.HasGeometry = false
	out.Columns = make([]schema.MappedColumn, len(s.Columns))
	for i, c := range s.Columns {
		if c.Type.Kind == schema.KindGeometry {
			c = c.AsText()
		}
		out.Columns[i] = c
	}
	return out
}
