// Package socrata reads dataset metadata, row counts, row pages and the
// dataset catalog from a Socrata open-data portal (SODA 2 API).
package socrata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"socrata2sql/internal/datasource/httpds"
)

// Config configures a portal client.
type Config struct {
	// Site is the portal domain ("www.dallasopendata.com") or a full base
	// URL ("https://data.example.gov").
	Site string
	// AppToken is optional and raises the portal's rate limits.
	AppToken string
	// Timeout bounds each request; zero means no timeout.
	Timeout time.Duration
	// MaxRetries for transient failures (429, 5xx, transport errors).
	MaxRetries int
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client talks to one portal.
type Client struct {
	base   *url.URL
	domain string
	http   *httpds.Client
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	site := strings.TrimSpace(cfg.Site)
	if site == "" {
		return nil, errors.New("socrata: site must not be empty")
	}
	if !strings.Contains(site, "://") {
		site = "https://" + site
	}
	base, err := url.Parse(strings.TrimRight(site, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("socrata: invalid site %q", cfg.Site)
	}

	headers := http.Header{}
	if cfg.AppToken != "" {
		headers.Set("X-App-Token", cfg.AppToken)
	}
	return &Client{
		base:   base,
		domain: base.Hostname(),
		http: httpds.NewClient(httpds.Config{
			Timeout:     cfg.Timeout,
			MaxRetries:  cfg.MaxRetries,
			BaseHeaders: headers,
			Transport:   cfg.Transport,
		}),
	}, nil
}

// Domain returns the portal host name.
func (c *Client) Domain() string { return c.domain }

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// getJSON fetches and decodes u, wrapping every failure in a
// *RemoteFetchError.
func (c *Client) getJSON(ctx context.Context, op, u string, v any) error {
	if err := c.http.GetJSON(ctx, u, nil, v); err != nil {
		fe := &RemoteFetchError{Op: op, URL: u, Err: err}
		var se *httpds.StatusError
		if errors.As(err, &se) {
			fe.Status = se.Code
		}
		return fe
	}
	return nil
}
