package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/twpayne/go-geom"
)

// CoerceWarning records a value that could not be converted to its column
// type. The value is loaded as NULL instead.
type CoerceWarning struct {
	Column string
	Value  any
	Err    error
}

func (w *CoerceWarning) Error() string {
	return fmt.Sprintf("column %s: cannot coerce %s: %v", w.Column, preview(w.Value), w.Err)
}

func (w *CoerceWarning) Unwrap() error { return w.Err }

// timestampLayouts are tried in order. Socrata >= 2.1 emits milliseconds,
// older versions emit whole seconds.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Coerce converts a raw API value into the Go value expected by col. Empty or
// missing values become nil. Values that do not fit the column also become
// nil, and the returned warning explains why; callers load the row anyway.
func Coerce(col MappedColumn, raw any) (any, error) {
	if isEmpty(raw) {
		return nil, nil
	}

	v, err := coerce(col.Type, raw)
	if err != nil {
		return nil, &CoerceWarning{Column: col.Name, Value: raw, Err: err}
	}
	return v, nil
}

func coerce(t SQLType, raw any) (any, error) {
	switch t.Kind {
	case KindInteger:
		return toInt(raw)
	case KindFloat:
		return toNumber(raw)
	case KindBoolean:
		return toBool(raw)
	case KindTimestamp:
		return toTime(raw, t.TimeZone)
	case KindJSON:
		return toJSON(raw)
	case KindGeometry:
		g, err := toGeometry(raw, t)
		if err != nil || g == nil {
			return nil, err
		}
		return *g, nil
	default:
		if t.Geometry != "" {
			g, err := toGeometry(raw, t)
			if err != nil || g == nil {
				return nil, err
			}
			return g.WKT()
		}
		return toText(raw)
	}
}

func isEmpty(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}

func toInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		return floatToInt(f)
	case float64:
		return floatToInt(v)
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer")
		}
		return floatToInt(f)
	default:
		return 0, fmt.Errorf("unexpected %T", raw)
	}
}

// twoTo63 is the smallest float64 above MaxInt64; float64(MaxInt64) rounds
// up to it.
var twoTo63 = math.Ldexp(1, 63)

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a whole number", f)
	}
	if f >= twoTo63 || f < -twoTo63 {
		return 0, fmt.Errorf("%v overflows a 64-bit integer", f)
	}
	return int64(f), nil
}

func toNumber(raw any) (float64, error) {
	switch v := raw.(type) {
	case json.Number:
		return v.Float64()
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		s := strings.TrimSpace(v)
		s = strings.TrimPrefix(s, "$")
		s = strings.TrimSuffix(s, "%")
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number")
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unexpected %T", raw)
	}
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case json.Number:
		switch v.String() {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		}
	}
	return false, fmt.Errorf("not a boolean")
}

func toTime(raw any, withZone bool) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected %T", raw)
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if !withZone {
			// Floating timestamps carry no offset; keep the wall clock.
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp")
}

func toJSON(raw any) (string, error) {
	if s, ok := raw.(string); ok {
		if json.Valid([]byte(s)) {
			return s, nil
		}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func toText(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case map[string]any:
		// url columns arrive as {"url": "...", "description": "..."}.
		if u, ok := v["url"].(string); ok {
			return u, nil
		}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func toGeometry(raw any, t SQLType) (*Geometry, error) {
	g, err := parseGeometry(raw)
	if err != nil || g == nil {
		return nil, err
	}
	if _, ok := g.(*geom.GeometryCollection); ok {
		return nil, fmt.Errorf("geometry collections are not supported")
	}
	if len(g.FlatCoords()) == 0 {
		return nil, nil
	}
	if g, err = flattenXY(g); err != nil {
		return nil, err
	}
	g, err = fitGeometry(g, t.Geometry)
	if err != nil {
		return nil, err
	}
	srid := t.SRID
	if srid <= 0 {
		srid = DefaultSRID
	}
	return &Geometry{Geom: g, SRID: srid}, nil
}

func preview(v any) string {
	s := fmt.Sprintf("%v", v)
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return strconv.Quote(s)
}
