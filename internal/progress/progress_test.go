package progress

import (
	"bytes"
	"testing"
	"time"

	"socrata2sql/internal/loader"
)

func TestLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    loader.Progress
		want string
	}{
		{name: "known total", p: loader.Progress{RowsLoaded: 1000, TotalRows: 2500, Pages: 1}, want: "1,000 / 2,500 rows (40.0%), 1 page"},
		{name: "unknown total", p: loader.Progress{RowsLoaded: 1200, Pages: 2}, want: "1,200 rows, 2 pages"},
		{name: "warnings", p: loader.Progress{RowsLoaded: 2500, TotalRows: 2500, Pages: 3, Warnings: 1}, want: "2,500 / 2,500 rows (100.0%), 3 pages, 1 value loaded as NULL"},
		{name: "empty", p: loader.Progress{}, want: "0 rows, 0 pages"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Line(tt.p); got != tt.want {
				t.Fatalf("Line = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrinter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	pr := Printer(&buf)
	pr(loader.Progress{RowsLoaded: 10, TotalRows: 20, Pages: 1})
	pr(loader.Progress{RowsLoaded: 20, TotalRows: 20, Pages: 2})
	want := "10 / 20 rows (50.0%), 1 page\n20 / 20 rows (100.0%), 2 pages\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	got := Summary("active_calls", loader.Progress{RowsLoaded: 25000}, 2*time.Second)
	if want := "loaded 25,000 rows into active_calls in 2s (12,500 rows/s)"; got != want {
		t.Fatalf("Summary = %q, want %q", got, want)
	}
	if got := Summary("t", loader.Progress{}, 0); got != "loaded 0 rows into t in 0s" {
		t.Fatalf("Summary = %q", got)
	}
}
