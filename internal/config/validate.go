package config

import (
	"fmt"
	"strings"

	"socrata2sql/internal/storage"

	log "github.com/sirupsen/logrus"
)

// maxPageSize is the largest $limit the SODA API accepts.
const maxPageSize = 50000

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is the YAML key of the offending setting (e.g. "metrics.backend").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static checks and returns every issue found. It does
// not mutate the config or touch the network.
func (c Config) Validate() []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Site) == "" {
		add(SeverityError, "site", "site must not be empty")
	}
	if c.AppToken == "" {
		add(SeverityWarning, "app_token", "no app token; the portal may throttle requests")
	}
	if c.DatabaseURL != "" {
		if _, err := storage.ParseURL(c.DatabaseURL); err != nil {
			add(SeverityError, "database_url", "%v", err)
		}
	}
	switch {
	case c.PageSize <= 0:
		add(SeverityError, "page_size", "page_size must be positive, got %d", c.PageSize)
	case c.PageSize > maxPageSize:
		add(SeverityWarning, "page_size", "page_size %d exceeds the API limit of %d; the portal may cap pages", c.PageSize, maxPageSize)
	}
	if c.SRID <= 0 {
		add(SeverityError, "srid", "srid must be positive, got %d", c.SRID)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		add(SeverityError, "log_level", "%v", err)
	}
	if c.HTTP.Timeout < 0 {
		add(SeverityError, "http.timeout", "timeout must not be negative")
	}
	if c.HTTP.MaxRetries < 0 {
		add(SeverityError, "http.max_retries", "max_retries must not be negative")
	}
	issues = append(issues, validateMetrics(c.Metrics)...)
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", MetricsNone:
	case MetricsPrometheus:
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "prometheus backend requires pushgateway_url",
			})
		}
	case MetricsDatadog:
		if m.DogStatsDAddr == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.dogstatsd_addr",
				Message:  "datadog backend requires dogstatsd_addr",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q (want none, prometheus or datadog)", m.Backend),
		})
	}
	return issues
}
