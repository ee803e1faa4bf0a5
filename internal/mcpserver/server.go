// Package mcpserver exposes catalog listing, dataset description and
// dataset loading as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"socrata2sql/internal/importer"
	"socrata2sql/internal/socrata"
	"socrata2sql/internal/storage"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"
)

// Deps holds what the tools need from the host process.
type Deps struct {
	// Site is used when a call names no site.
	Site string
	// NewClient opens a portal client; defaults to socrata.NewClient with
	// only the site set.
	NewClient func(site string) (*socrata.Client, error)
	// DatabaseURL is the default load destination. Empty means a new
	// SQLite file named after the dataset.
	DatabaseURL string
	PageSize    int
	SRID        int
}

// Server is the MCP server.
type Server struct {
	mcp  *server.MCPServer
	deps Deps
}

// New creates a server with every tool registered.
func New(deps Deps, version string) *Server {
	if deps.NewClient == nil {
		deps.NewClient = func(site string) (*socrata.Client, error) {
			return socrata.NewClient(socrata.Config{Site: site})
		}
	}
	s := &Server{deps: deps}
	s.mcp = server.NewMCPServer(
		"socrata2sql",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)
	s.mcp.AddTools(s.tools()...)
	return s
}

// ServeStdio serves requests on stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) tools() []server.ServerTool {
	siteArg := mcp.WithString("site",
		mcp.Description("Portal domain, e.g. www.dallasopendata.com (defaults to the configured site)"),
	)
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("list_datasets",
				mcp.WithDescription("List the datasets published on a Socrata portal"),
				siteArg,
			),
			Handler: s.handleListDatasets,
		},
		{
			Tool: mcp.NewTool("describe_dataset",
				mcp.WithDescription("Show a dataset's columns and the SQL types they would be created with"),
				siteArg,
				mcp.WithString("dataset_id",
					mcp.Required(),
					mcp.Description("Four-by-four dataset identifier, e.g. 9fxf-t2tr"),
				),
			),
			Handler: s.handleDescribeDataset,
		},
		{
			Tool: mcp.NewTool("load_dataset",
				mcp.WithDescription("Create a table for a dataset and load every row into it"),
				siteArg,
				mcp.WithString("dataset_id",
					mcp.Required(),
					mcp.Description("Four-by-four dataset identifier"),
				),
				mcp.WithString("database_url",
					mcp.Description("Destination URL (postgresql://, mysql://, sqlserver://, sqlite:///); defaults to the configured destination"),
				),
				mcp.WithString("table",
					mcp.Description("Table name (defaults to the dataset name)"),
				),
			),
			Handler: s.handleLoadDataset,
		},
	}
}

func (s *Server) client(req mcp.CallToolRequest) (*socrata.Client, error) {
	site := strings.TrimSpace(req.GetString("site", s.deps.Site))
	if site == "" {
		return nil, errors.New("no site given and none configured")
	}
	return s.deps.NewClient(site)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) handleListDatasets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	list, err := client.Datasets(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("List failed: %v", err)), nil
	}
	return jsonResult(list)
}

type columnInfo struct {
	Name       string `json:"name"`
	Field      string `json:"field"`
	RemoteType string `json:"remote_type"`
	SQLType    string `json:"sql_type"`
}

type description struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Table   string       `json:"table"`
	Columns []columnInfo `json:"columns"`
	Skipped []string     `json:"skipped_columns,omitempty"`
}

func (s *Server) handleDescribeDataset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("dataset_id")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing dataset_id parameter: %v", err)), nil
	}
	client, err := s.client(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	plan, err := importer.Describe(ctx, client, importer.Request{DatasetID: id, SRID: s.deps.SRID})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Describe failed: %v", err)), nil
	}
	out := description{ID: plan.Dataset.ID, Name: plan.Dataset.Name, Table: plan.Spec.Table, Skipped: plan.Skipped}
	for _, c := range plan.Spec.Columns {
		out.Columns = append(out.Columns, columnInfo{Name: c.Name, Field: c.Field, RemoteType: c.RemoteType, SQLType: c.Type.String()})
	}
	return jsonResult(out)
}

type loadResult struct {
	RunID          string `json:"run_id"`
	Destination    string `json:"destination"`
	Table          string `json:"table"`
	RowsLoaded     int64  `json:"rows_loaded"`
	TotalRows      int64  `json:"total_rows,omitempty"`
	Pages          int    `json:"pages"`
	Warnings       int64  `json:"warnings"`
	GeometryAsText bool   `json:"geometry_as_text,omitempty"`
}

func (s *Server) handleLoadDataset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("dataset_id")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing dataset_id parameter: %v", err)), nil
	}
	client, err := s.client(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ireq := importer.Request{
		DatasetID: id,
		Table:     req.GetString("table", ""),
		PageSize:  s.deps.PageSize,
		SRID:      s.deps.SRID,
	}
	plan, err := importer.Describe(ctx, client, ireq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Describe failed: %v", err)), nil
	}

	dbURL := req.GetString("database_url", s.deps.DatabaseURL)
	if dbURL == "" {
		if dbURL, err = storage.DefaultSQLiteURL(plan.Dataset.Name); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	cfg, err := storage.ParseURL(dbURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dst, err := storage.New(ctx, cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Connect failed: %v", err)), nil
	}
	defer dst.Close()

	res, err := importer.RunPlan(ctx, ireq, plan, client, dst)
	if err != nil {
		log.WithError(err).WithField("dataset", id).Error("load_dataset failed")
		return mcp.NewToolResultError(fmt.Sprintf("Load failed: %v", err)), nil
	}
	return jsonResult(loadResult{
		RunID:          res.RunID,
		Destination:    cfg.Kind,
		Table:          res.Spec.Table,
		RowsLoaded:     res.Progress.RowsLoaded,
		TotalRows:      res.Progress.TotalRows,
		Pages:          res.Progress.Pages,
		Warnings:       res.Progress.Warnings,
		GeometryAsText: res.Degraded(),
	})
}
