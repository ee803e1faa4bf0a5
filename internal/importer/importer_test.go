package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"socrata2sql/internal/ddl"
	"socrata2sql/internal/loader"
	"socrata2sql/internal/socrata"
	"socrata2sql/internal/storage"
	_ "socrata2sql/internal/storage/sqlite"

	"github.com/jmoiron/sqlx"
)

const view = `{
  "id": "calls-0001",
  "name": "Active Calls: Police",
  "columns": [
    {"name": "Incident", "fieldName": "incident", "dataTypeName": "text"},
    {"name": "Amount", "fieldName": "amount", "dataTypeName": "number"},
    {"name": "Received", "fieldName": "received", "dataTypeName": "calendar_date"},
    {"name": "Location", "fieldName": "location", "dataTypeName": "point"},
    {"name": "Council Districts", "fieldName": ":@computed_region_abcd", "dataTypeName": "number"}
  ]
}`

type fakePortal struct {
	rows       int
	countBody  string
	pageHits   atomic.Int32
	pageOffset []int
}

func (p *fakePortal) serve(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/views/calls-0001.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, view)
	})
	mux.HandleFunc("/resource/calls-0001.json", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("$select") != "" {
			fmt.Fprint(w, p.countBody)
			return
		}
		p.pageHits.Add(1)
		offset, _ := strconv.Atoi(q.Get("$offset"))
		limit, _ := strconv.Atoi(q.Get("$limit"))
		p.pageOffset = append(p.pageOffset, offset)
		out := []map[string]any{}
		for i := offset; i < p.rows && i < offset+limit; i++ {
			row := map[string]any{
				"incident":               "I-" + strconv.Itoa(i),
				"amount":                 strconv.Itoa(i) + ".50",
				"received":               "2018-04-02T13:05:09.000",
				":@computed_region_abcd": "7",
			}
			if i%2 == 0 {
				row["location"] = map[string]any{"type": "Point", "coordinates": []any{-96.8, 32.8}}
			}
			if i == 3 {
				row["amount"] = "n/a"
			}
			out = append(out, row)
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setup(t *testing.T, p *fakePortal) (*socrata.Client, storage.Destination, string) {
	t.Helper()
	srv := p.serve(t)
	client, err := socrata.NewClient(socrata.Config{Site: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	path := filepath.Join(t.TempDir(), "calls.sqlite")
	dst, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: path})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(dst.Close)
	return client, dst, path
}

func query(t *testing.T, path, q string, dest any) {
	t.Helper()
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := db.Get(dest, q); err != nil {
		t.Fatalf("%s: %v", q, err)
	}
}

// TestRunLoadsAllPages covers the 2,500 row / page 1,000 scenario end to
// end: three pages, every row inserted, computed columns skipped and
// geometry stored as WKT text on SQLite.
func TestRunLoadsAllPages(t *testing.T) {
	p := &fakePortal{rows: 2500, countBody: `[{"count":"2500"}]`}
	client, dst, path := setup(t, p)

	var seen []loader.Progress
	res, err := Run(context.Background(), Request{
		DatasetID: "calls-0001",
		Progress:  func(pr loader.Progress) { seen = append(seen, pr) },
	}, client, dst)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID == "" {
		t.Fatalf("RunID is empty")
	}
	if res.Spec.Table != "active_calls_police" {
		t.Fatalf("table = %q", res.Spec.Table)
	}
	if !res.Degraded() {
		t.Fatalf("geometry was not degraded on sqlite")
	}
	if len(res.Plan.Skipped) != 1 || res.Plan.Skipped[0] != ":@computed_region_abcd" {
		t.Fatalf("Skipped = %v", res.Plan.Skipped)
	}
	if res.Progress.RowsLoaded != 2500 || res.Progress.TotalRows != 2500 || res.Progress.Pages != 3 {
		t.Fatalf("Progress = %+v", res.Progress)
	}
	if res.Progress.Warnings != 1 {
		t.Fatalf("Warnings = %d, want 1", res.Progress.Warnings)
	}
	if len(seen) != 3 || seen[0].RowsLoaded != 1000 || seen[2].RowsLoaded != 2500 {
		t.Fatalf("progress callbacks = %+v", seen)
	}
	if want := []int{0, 1000, 2000}; fmt.Sprint(p.pageOffset) != fmt.Sprint(want) {
		t.Fatalf("page offsets = %v, want %v", p.pageOffset, want)
	}

	var n int
	query(t, path, `SELECT COUNT(*) FROM "active_calls_police"`, &n)
	if n != 2500 {
		t.Fatalf("row count = %d, want 2500", n)
	}
	var wkt string
	query(t, path, `SELECT "location" FROM "active_calls_police" WHERE "incident" = 'I-0'`, &wkt)
	if wkt != "POINT (-96.8 32.8)" {
		t.Fatalf("location = %q", wkt)
	}
	var nulls int
	query(t, path, `SELECT COUNT(*) FROM "active_calls_police" WHERE "amount" IS NULL`, &nulls)
	if nulls != 1 {
		t.Fatalf("null amounts = %d, want 1", nulls)
	}
}

// TestRunUnknownCount covers a portal that reports no usable count: the load
// completes on the short page and the total stays unknown.
func TestRunUnknownCount(t *testing.T) {
	p := &fakePortal{rows: 1200, countBody: `[{}]`}
	client, dst, _ := setup(t, p)

	res, err := Run(context.Background(), Request{DatasetID: "calls-0001", Table: "calls"}, client, dst)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Progress.RowsLoaded != 1200 || res.Progress.TotalRows != 0 {
		t.Fatalf("Progress = %+v, want 1200 loaded of unknown", res.Progress)
	}
}

func TestRunZeroRows(t *testing.T) {
	p := &fakePortal{rows: 0, countBody: `[{"count":"0"}]`}
	client, dst, path := setup(t, p)

	res, err := Run(context.Background(), Request{DatasetID: "calls-0001", Table: "empty"}, client, dst)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Progress.RowsLoaded != 0 || p.pageHits.Load() != 1 {
		t.Fatalf("Progress = %+v after %d fetches", res.Progress, p.pageHits.Load())
	}
	var n int
	query(t, path, `SELECT COUNT(*) FROM "empty"`, &n)
	if n != 0 {
		t.Fatalf("rows = %d", n)
	}
}

// TestRunExistingTable verifies a second import into the same table fails
// before any rows are fetched.
func TestRunExistingTable(t *testing.T) {
	p := &fakePortal{rows: 10, countBody: `[{"count":"10"}]`}
	client, dst, _ := setup(t, p)

	req := Request{DatasetID: "calls-0001", Table: "calls"}
	if _, err := Run(context.Background(), req, client, dst); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	hits := p.pageHits.Load()

	_, err := Run(context.Background(), req, client, dst)
	var exists *ddl.TableAlreadyExistsError
	if !errors.As(err, &exists) || exists.Table != "calls" {
		t.Fatalf("second Run err = %v, want TableAlreadyExistsError", err)
	}
	if p.pageHits.Load() != hits {
		t.Fatalf("rows fetched after a schema-time failure")
	}
}

func TestRunUnknownDataset(t *testing.T) {
	p := &fakePortal{}
	client, dst, _ := setup(t, p)

	_, err := Run(context.Background(), Request{DatasetID: "nope-0000"}, client, dst)
	var fe *socrata.RemoteFetchError
	if !errors.As(err, &fe) || fe.Status != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 RemoteFetchError", err)
	}
	if ok, _ := dst.TableExists(context.Background(), "nope0000"); ok {
		t.Fatalf("table created for an unknown dataset")
	}
}

func TestDescribe(t *testing.T) {
	p := &fakePortal{}
	srv := p.serve(t)
	client, err := socrata.NewClient(socrata.Config{Site: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	plan, err := Describe(context.Background(), client, Request{DatasetID: "calls-0001", SRID: 2276})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !plan.Spec.HasGeometry || len(plan.Spec.Columns) != 4 {
		t.Fatalf("Spec = %+v", plan.Spec)
	}
	if got := plan.Spec.Columns[3].Type.SRID; got != 2276 {
		t.Fatalf("location SRID = %d, want 2276", got)
	}
}

// TestRunPlanReusesDescribe covers the CLI flow: describe once, then load
// with the same plan under a caller-chosen run id.
func TestRunPlanReusesDescribe(t *testing.T) {
	p := &fakePortal{rows: 5, countBody: `[{"count":"5"}]`}
	client, dst, path := setup(t, p)

	req := Request{DatasetID: "calls-0001", Table: "planned", RunID: "run-42"}
	plan, err := Describe(context.Background(), client, req)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	res, err := RunPlan(context.Background(), req, plan, client, dst)
	if err != nil {
		t.Fatalf("RunPlan: %v", err)
	}
	if res.RunID != "run-42" || res.Plan.Spec.Table != "planned" {
		t.Fatalf("Result = %+v", res)
	}
	var n int
	query(t, path, `SELECT COUNT(*) FROM "planned"`, &n)
	if n != 5 {
		t.Fatalf("rows = %d, want 5", n)
	}
}
