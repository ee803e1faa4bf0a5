// Package loader streams a dataset into a destination table page by page.
//
// Each cycle fetches one page of raw rows, coerces every value against the
// table's mapped columns and hands the page to the destination's bulk insert
// primitive. Pages are strictly sequential: page N+1 is requested only after
// page N's insert has returned, so memory is bounded by one page.
//
// Logging: on every successful insert, a progress line is emitted with
// running totals and rows/sec since the previous page.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socrata2sql/internal/ddl"
	"socrata2sql/internal/metrics"
	"socrata2sql/internal/schema"

	log "github.com/sirupsen/logrus"
)

// DefaultPageSize is the number of rows requested per page.
const DefaultPageSize = 1000

// Row is one raw record keyed by API field name.
type Row = map[string]any

// PageSource returns up to limit rows starting at offset, in a stable order.
// A page shorter than limit marks the end of the dataset.
type PageSource interface {
	Page(ctx context.Context, offset, limit int) ([]Row, error)
}

// PageFunc adapts a function to PageSource.
type PageFunc func(ctx context.Context, offset, limit int) ([]Row, error)

// Page implements PageSource.
func (f PageFunc) Page(ctx context.Context, offset, limit int) ([]Row, error) {
	return f(ctx, offset, limit)
}

// Sink is a destination's bulk insert primitive. Implementations insert all
// rows (aligned to columns) atomically and return the number inserted.
type Sink interface {
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// Progress is a snapshot of a running load.
type Progress struct {
	RowsLoaded int64
	// TotalRows is the remote row count, 0 when unknown.
	TotalRows int64
	Pages     int
	// Warnings counts values loaded as NULL because they did not fit their
	// column type.
	Warnings int64
}

// Options tunes a load.
type Options struct {
	// PageSize defaults to DefaultPageSize.
	PageSize int
	// Progress, if set, is called after every inserted page.
	Progress func(Progress)
	// Dataset labels metrics and log lines.
	Dataset string
	// Logger defaults to the standard logrus logger.
	Logger *log.Entry
}

// LoadError reports a page that could not be fetched or inserted. Pages
// before Offset are committed; nothing is rolled back.
type LoadError struct {
	Offset     int
	RowsLoaded int64
	Err        error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load failed at offset %d after %d rows: %v", e.Offset, e.RowsLoaded, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load copies every row from src into spec.Table on dst. total is the
// expected row count and only feeds progress reporting; the load ends on the
// first short or empty page either way.
func Load(ctx context.Context, src PageSource, spec ddl.TableSpec, dst Sink, total int64, opts Options) (Progress, error) {
	if src == nil || dst == nil {
		return Progress{}, errors.New("loader: source and sink must not be nil")
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	logger = logger.WithField("table", spec.Table)

	var (
		prog        = Progress{TotalRows: total}
		columns     = spec.ColumnNames()
		batch       = make([][]any, 0, pageSize)
		start       = time.Now()
		lastFlushTS = start
		offset      int
	)

	for {
		if err := ctx.Err(); err != nil {
			return prog, &LoadError{Offset: offset, RowsLoaded: prog.RowsLoaded, Err: err}
		}

		t0 := time.Now()
		rows, err := src.Page(ctx, offset, pageSize)
		metrics.RecordStep(opts.Dataset, "fetch_page", err, time.Since(t0))
		if err != nil {
			logger.WithError(err).WithField("offset", offset).Error("fetch page failed")
			return prog, &LoadError{Offset: offset, RowsLoaded: prog.RowsLoaded, Err: err}
		}
		metrics.RecordRows(opts.Dataset, metrics.RowsFetched, int64(len(rows)))
		if len(rows) == 0 {
			break
		}

		batch = batch[:0]
		var warnings int64
		for i, r := range rows {
			vals := make([]any, len(spec.Columns))
			for j, col := range spec.Columns {
				v, warn := schema.Coerce(col, r[col.Field])
				if warn != nil {
					warnings++
					logger.WithFields(log.Fields{"offset": offset + i, "column": col.Name}).Warn(warn)
				}
				vals[j] = v
			}
			batch = append(batch, vals)
		}
		prog.Warnings += warnings
		metrics.RecordRows(opts.Dataset, metrics.RowsCoerceWarning, warnings)

		t0 = time.Now()
		n, err := dst.CopyFrom(ctx, spec.Table, columns, batch)
		metrics.RecordStep(opts.Dataset, "insert_page", err, time.Since(t0))
		if err != nil {
			logger.WithError(err).WithField("offset", offset).Error("insert page failed")
			return prog, &LoadError{Offset: offset, RowsLoaded: prog.RowsLoaded, Err: err}
		}
		prog.RowsLoaded += n
		prog.Pages++
		metrics.RecordRows(opts.Dataset, metrics.RowsLoaded, n)
		metrics.RecordPages(opts.Dataset, 1)

		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(n) / sinceLast.Seconds()
		}
		logger.WithFields(log.Fields{
			"page":        prog.Pages,
			"rps":         int64(rps),
			"inserted":    n,
			"rows_loaded": prog.RowsLoaded,
			"total_rows":  prog.TotalRows,
			"elapsed":     now.Sub(start).Truncate(time.Millisecond),
			"since_last":  sinceLast.Truncate(time.Millisecond),
			"warnings":    warnings,
		}).Info("page loaded")
		lastFlushTS = now

		if opts.Progress != nil {
			opts.Progress(prog)
		}

		if len(rows) < pageSize {
			break
		}
		offset += len(rows)
	}

	logger.WithFields(log.Fields{
		"rows_loaded": prog.RowsLoaded,
		"pages":       prog.Pages,
		"warnings":    prog.Warnings,
		"elapsed":     time.Since(start).Truncate(time.Millisecond),
	}).Info("load complete")
	return prog, nil
}
