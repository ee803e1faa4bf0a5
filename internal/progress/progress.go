// Package progress renders load progress for terminals.
package progress

import (
	"fmt"
	"io"
	"time"

	"socrata2sql/internal/loader"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
)

// Line formats a snapshot, e.g. "1,000 / 2,500 rows (40.0%), 1 page".
// An unknown total prints only the running count.
func Line(p loader.Progress) string {
	s := humanize.Comma(p.RowsLoaded)
	if p.TotalRows > 0 {
		pct := float64(p.RowsLoaded) / float64(p.TotalRows) * 100
		s += fmt.Sprintf(" / %s rows (%.1f%%)", humanize.Comma(p.TotalRows), pct)
	} else {
		s += " rows"
	}
	s += ", " + english.Plural(p.Pages, "page", "")
	if p.Warnings > 0 {
		s += ", " + humanize.Comma(p.Warnings) + " " + english.PluralWord(int(p.Warnings), "value", "") + " loaded as NULL"
	}
	return s
}

// Printer returns a loader progress callback writing one Line per page to w.
func Printer(w io.Writer) func(loader.Progress) {
	return func(p loader.Progress) {
		fmt.Fprintln(w, Line(p))
	}
}

// Summary describes a finished load.
func Summary(table string, p loader.Progress, elapsed time.Duration) string {
	s := fmt.Sprintf("loaded %s %s into %s in %s",
		humanize.Comma(p.RowsLoaded), english.PluralWord(int(p.RowsLoaded), "row", ""), table, elapsed.Round(time.Millisecond))
	if secs := elapsed.Seconds(); secs > 0 && p.RowsLoaded > 0 {
		s += fmt.Sprintf(" (%s rows/s)", humanize.Comma(int64(float64(p.RowsLoaded)/secs)))
	}
	return s
}
