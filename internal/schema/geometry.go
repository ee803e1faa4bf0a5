package schema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// Geometry is a coerced geometry value tagged with its spatial reference.
type Geometry struct {
	Geom geom.T
	SRID int
}

// WKT renders the geometry as well-known text.
func (g Geometry) WKT() (string, error) {
	return wkt.Marshal(g.Geom)
}

// EWKT renders the geometry as PostGIS extended WKT, e.g.
// "SRID=4326;POINT (-96.8 32.7)".
func (g Geometry) EWKT() (string, error) {
	s, err := g.WKT()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SRID=%d;%s", g.SRID, s), nil
}

// Value implements driver.Valuer using EWKT, which PostGIS accepts as text
// input for geometry columns.
func (g Geometry) Value() (driver.Value, error) {
	return g.EWKT()
}

// parseGeometry decodes the shapes Socrata emits for spatial columns:
//
//   - legacy location objects: {"latitude": "32.7", "longitude": "-96.8", ...}
//   - GeoJSON geometries: {"type": "Point", "coordinates": [-96.8, 32.7]}
//   - WKT strings: "POINT (-96.8 32.7)"
//
// A location carrying only a human_address has no coordinates; it yields
// (nil, nil).
func parseGeometry(raw any) (geom.T, error) {
	switch v := raw.(type) {
	case map[string]any:
		if _, ok := v["type"]; ok {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			var g geom.T
			if err := geojson.Unmarshal(b, &g); err != nil {
				return nil, fmt.Errorf("geojson: %w", err)
			}
			return g, nil
		}
		lat, latOK := v["latitude"]
		lon, lonOK := v["longitude"]
		if !latOK || !lonOK {
			if _, ok := v["human_address"]; ok {
				return nil, nil
			}
			return nil, fmt.Errorf("location object without coordinates")
		}
		y, err := toFloat(lat)
		if err != nil {
			return nil, fmt.Errorf("latitude: %w", err)
		}
		x, err := toFloat(lon)
		if err != nil {
			return nil, fmt.Errorf("longitude: %w", err)
		}
		p, err := geom.NewPoint(geom.XY).SetCoords(geom.Coord{x, y})
		if err != nil {
			return nil, err
		}
		return p, nil
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "{") {
			var m map[string]any
			if err := json.Unmarshal([]byte(s), &m); err != nil {
				return nil, fmt.Errorf("geometry json: %w", err)
			}
			return parseGeometry(m)
		}
		g, err := wkt.Unmarshal(s)
		if err != nil {
			return nil, fmt.Errorf("wkt: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unsupported geometry value of type %T", raw)
	}
}

// flattenXY drops Z and M ordinates. Destination columns are declared 2D,
// and PostGIS rejects a 3D value in a 2D column.
func flattenXY(g geom.T) (geom.T, error) {
	stride := g.Stride()
	if g.Layout() == geom.XY {
		return g, nil
	}
	flat := g.FlatCoords()
	xy := make([]float64, 0, len(flat)/stride*2)
	for i := 0; i+1 < len(flat); i += stride {
		xy = append(xy, flat[i], flat[i+1])
	}
	scale := func(ends []int) []int {
		out := make([]int, len(ends))
		for i, e := range ends {
			out[i] = e / stride * 2
		}
		return out
	}
	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(geom.XY, xy), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(geom.XY, xy), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(geom.XY, xy, scale(t.Ends())), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(geom.XY, xy), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(geom.XY, xy, scale(t.Ends())), nil
	case *geom.MultiPolygon:
		endss := make([][]int, len(t.Endss()))
		for i, ends := range t.Endss() {
			endss[i] = scale(ends)
		}
		return geom.NewMultiPolygonFlat(geom.XY, xy, endss), nil
	}
	return nil, fmt.Errorf("cannot flatten %T to 2D", g)
}

// fitGeometry checks g against the column subtype, promoting single
// geometries into their multi counterpart where the column asks for one.
func fitGeometry(g geom.T, want GeometryType) (geom.T, error) {
	switch want {
	case GeometryPoint:
		if p, ok := g.(*geom.Point); ok {
			return p, nil
		}
	case GeometryLineString:
		if l, ok := g.(*geom.LineString); ok {
			return l, nil
		}
	case GeometryPolygon:
		if p, ok := g.(*geom.Polygon); ok {
			return p, nil
		}
	case GeometryMultiPoint:
		switch t := g.(type) {
		case *geom.MultiPoint:
			return t, nil
		case *geom.Point:
			mp := geom.NewMultiPoint(t.Layout())
			if err := mp.Push(t); err != nil {
				return nil, err
			}
			return mp, nil
		}
	case GeometryMultiLineString:
		switch t := g.(type) {
		case *geom.MultiLineString:
			return t, nil
		case *geom.LineString:
			ml := geom.NewMultiLineString(t.Layout())
			if err := ml.Push(t); err != nil {
				return nil, err
			}
			return ml, nil
		}
	case GeometryMultiPolygon:
		switch t := g.(type) {
		case *geom.MultiPolygon:
			return t, nil
		case *geom.Polygon:
			mp := geom.NewMultiPolygon(t.Layout())
			if err := mp.Push(t); err != nil {
				return nil, err
			}
			return mp, nil
		}
	case "":
		return g, nil
	}
	return nil, fmt.Errorf("%T does not fit a %s column", g, want)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}
