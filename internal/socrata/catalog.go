package socrata

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// catalogPageSize is the number of catalog entries requested per call.
const catalogPageSize = 100

// DatasetSummary is one row of the dataset listing.
type DatasetSummary struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	ID       string `json:"id"`
	URL      string `json:"url"`
}

type catalogResponse struct {
	Results []struct {
		Resource struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"resource"`
		Classification struct {
			DomainCategory string `json:"domain_category"`
		} `json:"classification"`
		Permalink string `json:"permalink"`
	} `json:"results"`
	ResultSetSize int `json:"resultSetSize"`
}

// Datasets lists the portal's original datasets (not maps, charts or
// filtered views), sorted by name case-insensitively.
func (c *Client) Datasets(ctx context.Context) ([]DatasetSummary, error) {
	var out []DatasetSummary
	for offset := 0; ; offset += catalogPageSize {
		q := url.Values{
			"domains": {c.domain},
			"limit":   {strconv.Itoa(catalogPageSize)},
			"offset":  {strconv.Itoa(offset)},
		}
		var resp catalogResponse
		if err := c.getJSON(ctx, "catalog", c.endpoint("/api/catalog/v1", q), &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.Results {
			if r.Resource.Type != "dataset" {
				continue
			}
			out = append(out, DatasetSummary{
				Name:     r.Resource.Name,
				Category: r.Classification.DomainCategory,
				ID:       r.Resource.ID,
				URL:      r.Permalink,
			})
		}
		if len(resp.Results) < catalogPageSize || offset+len(resp.Results) >= resp.ResultSetSize {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}
