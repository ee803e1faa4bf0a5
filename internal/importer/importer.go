// Package importer loads one Socrata dataset into one destination table:
// read metadata, map columns, create the table, then stream every row.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"socrata2sql/internal/ddl"
	"socrata2sql/internal/loader"
	"socrata2sql/internal/metrics"
	"socrata2sql/internal/schema"
	"socrata2sql/internal/socrata"
	"socrata2sql/internal/storage"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// computedPrefix marks portal-generated region columns, which are not part
// of the dataset's own data.
const computedPrefix = ":@computed"

// Request describes one import.
type Request struct {
	DatasetID string
	// RunID tags logs and metrics; a random UUID is used when empty.
	RunID string
	// Table overrides the table name; defaults to the sanitized dataset name.
	Table string
	// PageSize defaults to loader.DefaultPageSize.
	PageSize int
	// SRID for geometry columns; defaults to schema.DefaultSRID.
	SRID int
	// Progress, if set, is called after every inserted page.
	Progress func(loader.Progress)
}

// Plan is the schema-time outcome: what would be created for a dataset.
type Plan struct {
	Dataset socrata.Dataset
	Spec    ddl.TableSpec
	// Skipped lists the API field names of computed columns left out.
	Skipped []string
}

// Result summarizes a finished import.
type Result struct {
	RunID    string
	Plan     Plan
	Progress loader.Progress
	// Spec is the table as created; geometry columns may have been stored
	// as text.
	Spec ddl.TableSpec
}

// Degraded reports whether geometry columns were stored as WKT text.
func (r Result) Degraded() bool {
	return r.Plan.Spec.HasGeometry && !r.Spec.HasGeometry
}

// Describe fetches dataset metadata and maps it to a table spec without
// touching any destination.
func Describe(ctx context.Context, client *socrata.Client, req Request) (Plan, error) {
	if client == nil {
		return Plan{}, errors.New("importer: nil socrata client")
	}
	logger := log.WithField("dataset", req.DatasetID)

	t0 := time.Now()
	ds, err := client.Dataset(ctx, req.DatasetID)
	metrics.RecordStep(req.DatasetID, "metadata", err, time.Since(t0))
	if err != nil {
		return Plan{}, err
	}

	var opts []schema.MapOption
	if req.SRID > 0 {
		opts = append(opts, schema.WithSRID(req.SRID))
	}
	plan := Plan{Dataset: ds}
	cols := make([]schema.MappedColumn, 0, len(ds.Columns))
	for _, rc := range ds.Columns {
		if strings.HasPrefix(rc.Field, computedPrefix) {
			logger.WithField("column", rc.Field).Info("ignoring computed column")
			plan.Skipped = append(plan.Skipped, rc.Field)
			continue
		}
		if !schema.KnownRemoteType(rc.DataType) {
			logger.WithFields(log.Fields{"column": rc.Field, "type": rc.DataType}).Warn("unknown column type; storing as text")
		}
		cols = append(cols, schema.MapColumn(rc, opts...))
	}

	table := req.Table
	if strings.TrimSpace(table) == "" {
		table = ds.Name
	}
	plan.Spec, err = ddl.NewTableSpec(table, cols)
	if err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// Run imports req.DatasetID into dst. Every schema-time failure (metadata,
// mapping, table creation) returns before any row is fetched. Load failures
// are *loader.LoadError; pages before the failure stay committed.
func Run(ctx context.Context, req Request, client *socrata.Client, dst storage.Destination) (Result, error) {
	if dst == nil {
		return Result{}, errors.New("importer: nil destination")
	}
	plan, err := Describe(ctx, client, req)
	if err != nil {
		return Result{RunID: req.RunID, Plan: plan}, err
	}
	return RunPlan(ctx, req, plan, client, dst)
}

// RunPlan is Run with metadata already fetched by Describe, for callers
// that need the plan to choose a destination.
func RunPlan(ctx context.Context, req Request, plan Plan, client *socrata.Client, dst storage.Destination) (Result, error) {
	if dst == nil {
		return Result{}, errors.New("importer: nil destination")
	}
	if client == nil {
		return Result{}, errors.New("importer: nil socrata client")
	}
	res := Result{RunID: req.RunID, Plan: plan}
	if res.RunID == "" {
		res.RunID = uuid.NewString()
	}
	logger := log.WithFields(log.Fields{
		"run_id":      res.RunID,
		"dataset":     req.DatasetID,
		"destination": dst.Kind(),
		"table":       plan.Spec.Table,
	})

	total, err := client.RowCount(ctx, req.DatasetID)
	if err != nil {
		return res, err
	}

	t0 := time.Now()
	spec, err := ddl.BuildAndCreate(ctx, dst, plan.Spec)
	metrics.RecordStep(req.DatasetID, "create_table", err, time.Since(t0))
	if err != nil {
		return res, err
	}
	res.Spec = spec
	if res.Degraded() {
		logger.Warn("destination has no spatial support; geometry stored as WKT text")
	}

	logger.WithFields(log.Fields{"name": plan.Dataset.Name, "total_rows": total}).Info("loading dataset")
	res.Progress, err = loader.Load(ctx, client.Pages(req.DatasetID), spec, dst, total, loader.Options{
		PageSize: req.PageSize,
		Progress: req.Progress,
		Dataset:  req.DatasetID,
		Logger:   logger,
	})
	if err != nil {
		return res, fmt.Errorf("import %s: %w", req.DatasetID, err)
	}
	return res, nil
}
