package ddl

import "socrata2sql/internal/schema"

// ColumnDef describes a single column in a table definition about to be
// rendered. SQLType is already dialect specific.
//
// Fields:
//   - Name: column identifier (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, geometry(POINT,4326))
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
}

// TableDef holds the table name and an ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Quoter quotes a single identifier for a dialect.
type Quoter func(ident string) string

// TypeMapper renders the dialect type for a column.
type TypeMapper interface {
	// MapType returns the column type for t.
	MapType(t schema.SQLType) string
	// PrimaryKeyType returns the type of the synthetic auto-incrementing key,
	// including any identity clause the dialect needs.
	PrimaryKeyType() string
}
