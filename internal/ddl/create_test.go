package ddl

import (
	"strconv"
	"strings"
	"testing"

	"socrata2sql/internal/schema"
)

func dquote(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

// TestBuildCreateTableSQL verifies rendering and input validation.
func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		quote       Quoter
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			def:         TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{FQN: "t"},
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: " ", SQLType: "INT"}}},
			errContains: "column with empty name",
		},
		{
			name:        "column with empty type returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			errContains: "missing SQLType",
		},
		{
			name:    "nullable column, no quoting",
			def:     TableDef{FQN: "t", Columns: []ColumnDef{{Name: "amount", SQLType: "REAL", Nullable: true}}},
			wantSQL: "CREATE TABLE t (\n  amount REAL\n)",
		},
		{
			name: "primary key is forced NOT NULL and quoted",
			def: TableDef{FQN: "calls", Columns: []ColumnDef{
				{Name: "_pk_", SQLType: "BIGINT", Nullable: true, PrimaryKey: true},
				{Name: "name", SQLType: "TEXT", Nullable: true},
			}},
			quote:   dquote,
			wantSQL: "CREATE TABLE \"calls\" (\n  \"_pk_\" BIGINT NOT NULL,\n  \"name\" TEXT,\n  PRIMARY KEY (\"_pk_\")\n)",
		},
		{
			name: "non-nullable column",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "loaded_at", SQLType: " TIMESTAMP "},
			}},
			wantSQL: "CREATE TABLE t (\n  loaded_at TIMESTAMP NOT NULL\n)",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := BuildCreateTableSQL(tt.def, tt.quote)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("BuildCreateTableSQL() error = %v, want substring %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildCreateTableSQL() unexpected error = %v", err)
			}
			if got != tt.wantSQL {
				t.Fatalf("BuildCreateTableSQL() =\n%s\nwant:\n%s", got, tt.wantSQL)
			}
		})
	}
}

type fakeTypes struct{}

func (fakeTypes) MapType(t schema.SQLType) string { return strings.ToUpper(t.String()) }
func (fakeTypes) PrimaryKeyType() string          { return "SERIAL" }

func TestTableDefFor(t *testing.T) {
	t.Parallel()

	spec, err := NewTableSpec("Calls", []schema.MappedColumn{
		schema.MapColumn(schema.RemoteColumn{Field: "amount", DataType: "number"}),
		schema.MapColumn(schema.RemoteColumn{Field: "location", DataType: "point"}),
	})
	if err != nil {
		t.Fatalf("NewTableSpec: %v", err)
	}
	def := TableDefFor(spec, fakeTypes{})
	if def.FQN != "calls" {
		t.Fatalf("FQN = %q, want calls", def.FQN)
	}
	want := []ColumnDef{
		{Name: "_pk_", SQLType: "SERIAL", PrimaryKey: true},
		{Name: "amount", SQLType: "FLOAT", Nullable: true},
		{Name: "location", SQLType: "GEOMETRY(POINT,4326)", Nullable: true},
	}
	if len(def.Columns) != len(want) {
		t.Fatalf("columns = %+v", def.Columns)
	}
	for i := range want {
		if def.Columns[i] != want[i] {
			t.Errorf("column %d = %+v, want %+v", i, def.Columns[i], want[i])
		}
	}
}

var benchmarkSink string

// BenchmarkBuildCreateTableSQL_WideDataset approximates a wide portal dataset.
func BenchmarkBuildCreateTableSQL_WideDataset(b *testing.B) {
	cols := make([]ColumnDef, 0, 128)
	for i := 0; i < 128; i++ {
		cols = append(cols, ColumnDef{Name: "col_" + strconv.Itoa(i), SQLType: "TEXT", Nullable: true})
	}
	def := TableDef{FQN: "wide", Columns: cols}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sql, err := BuildCreateTableSQL(def, dquote)
		if err != nil {
			b.Fatalf("BuildCreateTableSQL() error = %v", err)
		}
		benchmarkSink = sql
	}
}
