// Package schema turns loosely-typed Socrata column descriptors into concrete
// SQL column types and coerces raw API values into the Go values those
// columns expect.
package schema

import "fmt"

// DefaultSRID is the spatial reference assigned to geometry columns unless a
// caller overrides it. Socrata publishes coordinates as WGS 84.
const DefaultSRID = 4326

// Kind is the SQL-side category of a mapped column.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindTimestamp
	KindJSON
	KindGeometry
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindTimestamp:
		return "timestamp"
	case KindJSON:
		return "json"
	case KindGeometry:
		return "geometry"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// GeometryType is an OGC geometry subtype name.
type GeometryType string

const (
	GeometryPoint           GeometryType = "POINT"
	GeometryLineString      GeometryType = "LINESTRING"
	GeometryPolygon         GeometryType = "POLYGON"
	GeometryMultiPoint      GeometryType = "MULTIPOINT"
	GeometryMultiLineString GeometryType = "MULTILINESTRING"
	GeometryMultiPolygon    GeometryType = "MULTIPOLYGON"
)

// SQLType is a dialect-neutral column type. Geometry and SRID are set for
// geometry columns; Geometry stays set on a column that was degraded to text
// so its values are still serialized as WKT.
type SQLType struct {
	Kind     Kind
	Geometry GeometryType
	SRID     int
	// TimeZone is true for timestamps the portal publishes with an offset.
	TimeZone bool
}

func (t SQLType) String() string {
	switch {
	case t.Kind == KindGeometry:
		return fmt.Sprintf("geometry(%s,%d)", t.Geometry, t.SRID)
	case t.Kind == KindTimestamp && t.TimeZone:
		return "timestamptz"
	default:
		return t.Kind.String()
	}
}

// SerializedGeometry reports whether the column stores geometry as WKT text.
func (t SQLType) SerializedGeometry() bool {
	return t.Kind == KindText && t.Geometry != ""
}

// RemoteColumn describes one column as the portal reports it.
type RemoteColumn struct {
	// Field is the API field name; rows are keyed by it.
	Field string
	// Name is the human-readable display name.
	Name        string
	DataType    string
	Description string
}

// MappedColumn is the resolved destination column for a RemoteColumn.
type MappedColumn struct {
	Name       string
	Field      string
	RemoteType string
	Type       SQLType
	Nullable   bool
}

// AsText returns a copy of c stored as text. Geometry columns keep their
// subtype so values are serialized as WKT.
func (c MappedColumn) AsText() MappedColumn {
	c.Type = SQLType{Kind: KindText, Geometry: c.Type.Geometry, SRID: c.Type.SRID}
	return c
}
