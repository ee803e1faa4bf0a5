package schema

import "strings"

// remoteTypes is the closed mapping from Socrata dataTypeName to SQL kind.
// Tags missing from this table map to text.
var remoteTypes = map[string]SQLType{
	"number":  {Kind: KindFloat},
	"double":  {Kind: KindFloat},
	"money":   {Kind: KindFloat},
	"percent": {Kind: KindFloat},

	"integer":        {Kind: KindInteger},
	"row_identifier": {Kind: KindInteger},
	"stars":          {Kind: KindInteger},

	"checkbox": {Kind: KindBoolean},
	"boolean":  {Kind: KindBoolean},

	"calendar_date":      {Kind: KindTimestamp},
	"floating_timestamp": {Kind: KindTimestamp},
	"date":               {Kind: KindTimestamp},
	"fixed_timestamp":    {Kind: KindTimestamp, TimeZone: true},

	"text":           {Kind: KindText},
	"string":         {Kind: KindText},
	"url":            {Kind: KindText},
	"email":          {Kind: KindText},
	"phone":          {Kind: KindText},
	"html":           {Kind: KindText},
	"drop_down_list": {Kind: KindText},
	"flag":           {Kind: KindText},

	"point":           {Kind: KindGeometry, Geometry: GeometryPoint},
	"location":        {Kind: KindGeometry, Geometry: GeometryPoint},
	"multipoint":      {Kind: KindGeometry, Geometry: GeometryMultiPoint},
	"line":            {Kind: KindGeometry, Geometry: GeometryLineString},
	"linestring":      {Kind: KindGeometry, Geometry: GeometryLineString},
	"multiline":       {Kind: KindGeometry, Geometry: GeometryMultiLineString},
	"multilinestring": {Kind: KindGeometry, Geometry: GeometryMultiLineString},
	"polygon":         {Kind: KindGeometry, Geometry: GeometryPolygon},
	"multipolygon":    {Kind: KindGeometry, Geometry: GeometryMultiPolygon},

	"json":     {Kind: KindJSON},
	"object":   {Kind: KindJSON},
	"document": {Kind: KindJSON},
	"photo":    {Kind: KindJSON},
	"blob":     {Kind: KindJSON},
}

type mapConfig struct {
	srid int
}

// MapOption customizes MapColumn.
type MapOption func(*mapConfig)

// WithSRID sets the spatial reference for geometry columns. Non-positive
// values keep DefaultSRID.
func WithSRID(srid int) MapOption {
	return func(c *mapConfig) {
		if srid > 0 {
			c.srid = srid
		}
	}
}

// MapColumn resolves the destination column for a remote descriptor. It never
// fails: unknown type tags fall back to text.
func MapColumn(rc RemoteColumn, opts ...MapOption) MappedColumn {
	cfg := mapConfig{srid: DefaultSRID}
	for _, o := range opts {
		o(&cfg)
	}

	t, ok := remoteTypes[strings.ToLower(strings.TrimSpace(rc.DataType))]
	if !ok {
		t = SQLType{Kind: KindText}
	}
	if t.Kind == KindGeometry {
		t.SRID = cfg.srid
	}

	name := rc.Field
	if strings.TrimSpace(name) == "" {
		name = rc.Name
	}

	return MappedColumn{
		Name:       SanitizeIdentifier(name),
		Field:      rc.Field,
		RemoteType: rc.DataType,
		Type:       t,
		Nullable:   true,
	}
}

// KnownRemoteType reports whether tag has an explicit mapping.
func KnownRemoteType(tag string) bool {
	_, ok := remoteTypes[strings.ToLower(strings.TrimSpace(tag))]
	return ok
}
