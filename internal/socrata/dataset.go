package socrata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"socrata2sql/internal/loader"
	"socrata2sql/internal/schema"

	soda "github.com/SebastiaanKlippert/go-soda"
	log "github.com/sirupsen/logrus"
)

// Dataset is the metadata needed to create a table for a dataset.
type Dataset struct {
	ID      string
	Name    string
	Columns []schema.RemoteColumn
}

// Row is one record keyed by API field name.
type Row = loader.Row

// viewColumn decodes a column descriptor. Statistics and formatting vary in
// shape between portals and are not used, so they are kept raw.
type viewColumn struct {
	soda.Column
	CachedContents json.RawMessage `json:"cachedContents"`
	Format         json.RawMessage `json:"format"`
}

type view struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Columns []viewColumn `json:"columns"`
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("socrata: dataset id must not be empty")
	}
	return nil
}

// Dataset fetches the display name and ordered column descriptors.
func (c *Client) Dataset(ctx context.Context, id string) (Dataset, error) {
	if err := checkID(id); err != nil {
		return Dataset{}, err
	}
	var v view
	if err := c.getJSON(ctx, "dataset metadata", c.endpoint("/api/views/"+url.PathEscape(id)+".json", nil), &v); err != nil {
		return Dataset{}, err
	}
	ds := Dataset{ID: id, Name: v.Name, Columns: make([]schema.RemoteColumn, 0, len(v.Columns))}
	for _, col := range v.Columns {
		ds.Columns = append(ds.Columns, schema.RemoteColumn{
			Field:       col.FieldName,
			Name:        col.Name,
			DataType:    col.DataTypeName,
			Description: col.Description,
		})
	}
	return ds, nil
}

// RowCount returns the number of rows in the dataset, or 0 when the portal
// does not report a usable count. Only request failures are errors.
func (c *Client) RowCount(ctx context.Context, id string) (int64, error) {
	if err := checkID(id); err != nil {
		return 0, err
	}
	q := url.Values{"$select": {"count(*) AS count"}}
	var rows []map[string]any
	if err := c.getJSON(ctx, "row count", c.endpoint(resourcePath(id), q), &rows); err != nil {
		return 0, err
	}
	n, err := parseCount(rows)
	if err != nil {
		log.WithFields(log.Fields{"dataset": id}).WithError(err).Warn("row count unavailable; progress total unknown")
		return 0, nil
	}
	return n, nil
}

func parseCount(rows []map[string]any) (int64, error) {
	if len(rows) == 0 {
		return 0, errors.New("empty count response")
	}
	raw, ok := rows[0]["count"]
	if !ok {
		return 0, errors.New(`count response has no "count" key`)
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	default:
		return 0, fmt.Errorf("count has unexpected type %T", raw)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("malformed count %q", s)
	}
	return n, nil
}

// Page fetches up to limit rows starting at offset, ordered by the
// portal's internal row id so consecutive pages neither overlap nor skip.
func (c *Client) Page(ctx context.Context, id string, offset, limit int) ([]Row, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	q := url.Values{
		"$limit":  {strconv.Itoa(limit)},
		"$offset": {strconv.Itoa(offset)},
		"$order":  {":id"},
	}
	var rows []Row
	if err := c.getJSON(ctx, fmt.Sprintf("rows at offset %d", offset), c.endpoint(resourcePath(id), q), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Pages adapts Page for one dataset to loader.PageSource.
func (c *Client) Pages(id string) loader.PageSource {
	return loader.PageFunc(func(ctx context.Context, offset, limit int) ([]loader.Row, error) {
		return c.Page(ctx, id, offset, limit)
	})
}

func resourcePath(id string) string {
	return "/resource/" + url.PathEscape(id) + ".json"
}
