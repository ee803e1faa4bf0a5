// Command socrata2sql copies a Socrata open-data dataset into a SQL table.
//
//	socrata2sql insert <site> <dataset_id> [-d url] [-a token] [-t table]
//	socrata2sql ls <site> [-a token]
//	socrata2sql -version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"socrata2sql/internal/config"
	"socrata2sql/internal/importer"
	"socrata2sql/internal/loader"
	"socrata2sql/internal/metrics"
	"socrata2sql/internal/metrics/datadog"
	"socrata2sql/internal/metrics/prompush"
	"socrata2sql/internal/progress"
	"socrata2sql/internal/socrata"
	"socrata2sql/internal/storage"

	// register every destination with the storage factory; the database
	// url picks one at runtime.
	_ "socrata2sql/internal/storage/all"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const usage = `usage:
  socrata2sql insert <site> <dataset_id> [flags]
  socrata2sql ls <site> [flags]
  socrata2sql -version
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	log.SetOutput(stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	switch args[0] {
	case "-version", "--version", "version":
		fmt.Fprintln(stdout, "socrata2sql", version)
		return 0
	case "insert":
		return runInsert(ctx, args[1:], stdout, stderr)
	case "ls":
		return runList(ctx, args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}
}

// options are the flags shared by every command. Zero values mean "not set"
// so the config file and environment keep their say.
type options struct {
	configPath     string
	appToken       string
	databaseURL    string
	table          string
	pageSize       int
	srid           int
	metricsBackend string
	verbose        bool
}

func newFlagSet(name string, stderr io.Writer, o *options, insert bool) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "YAML config file")
	fs.StringVar(&o.appToken, "a", "", "Socrata app token (overrides env SOCRATA_APP_TOKEN)")
	fs.BoolVar(&o.verbose, "v", false, "enable debug logs")
	if insert {
		fs.StringVar(&o.databaseURL, "d", "", "database url (default: a new SQLite file named after the dataset)")
		fs.StringVar(&o.table, "t", "", "destination table name (default: the dataset name)")
		fs.IntVar(&o.pageSize, "page-size", 0, "rows per page (default 1000)")
		fs.IntVar(&o.srid, "srid", 0, "SRID for geometry columns (default 4326)")
		fs.StringVar(&o.metricsBackend, "metrics-backend", "", "metrics backend: none, prometheus or datadog")
	}
	return fs
}

// parseArgs parses flags that may appear before, between or after the
// positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

// loadConfig layers defaults, the config file, the environment and flags,
// in increasing priority, then validates the result.
func loadConfig(o options, site string, stderr io.Writer) (config.Config, bool) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			fmt.Fprintln(stderr, err)
			return cfg, false
		}
	}
	if o.appToken != "" {
		cfg.AppToken = o.appToken
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.metricsBackend != "" {
		cfg.Metrics.Backend = o.metricsBackend
	}
	cfg.ApplyEnv(os.Getenv)
	cfg.Site = site
	if o.table != "" {
		cfg.Table = o.table
	}
	if o.pageSize != 0 {
		cfg.PageSize = o.pageSize
	}
	if o.srid != 0 {
		cfg.SRID = o.srid
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}

	issues := cfg.Validate()
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintln(stderr, "configuration is invalid")
		return cfg, false
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return cfg, true
}

func newClient(cfg config.Config) (*socrata.Client, error) {
	return socrata.NewClient(socrata.Config{
		Site:       cfg.Site,
		AppToken:   cfg.AppToken,
		Timeout:    cfg.HTTP.Timeout,
		MaxRetries: cfg.HTTP.MaxRetries,
	})
}

// setupMetrics installs the configured backend and returns its flush func.
// A backend that cannot start is logged and left disabled.
func setupMetrics(m config.Metrics, runID string) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch m.Backend {
	case config.MetricsPrometheus:
		b, err = prompush.NewBackend(prompush.Config{GatewayURL: m.PushgatewayURL, RunID: runID})
	case config.MetricsDatadog:
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       m.DogStatsDAddr,
			Namespace:  m.Namespace,
			GlobalTags: []string{"run_id:" + runID},
		})
	default:
		log.WithField("backend", m.Backend).Debug("metrics disabled")
		return func() {}
	}
	if err != nil {
		log.WithError(err).WithField("backend", m.Backend).Warn("metrics backend unavailable; metrics disabled")
		return func() {}
	}
	metrics.SetBackend(b)
	log.WithField("backend", m.Backend).Debug("metrics enabled")
	return func() {
		if err := metrics.Flush(); err != nil {
			log.WithError(err).Warn("metrics flush failed")
		}
	}
}

func runInsert(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var o options
	fs := newFlagSet("insert", stderr, &o, true)
	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	if len(pos) != 2 {
		fmt.Fprintf(stderr, "insert takes <site> <dataset_id>\n%s", usage)
		return 2
	}
	cfg, ok := loadConfig(o, pos[0], stderr)
	if !ok {
		return 1
	}

	req := importer.Request{
		DatasetID: pos[1],
		RunID:     uuid.NewString(),
		Table:     cfg.Table,
		PageSize:  cfg.PageSize,
		SRID:      cfg.SRID,
		Progress:  progress.Printer(stderr),
	}
	flush := setupMetrics(cfg.Metrics, req.RunID)
	defer flush()

	client, err := newClient(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	start := time.Now()
	plan, err := importer.Describe(ctx, client, req)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	dbURL := cfg.DatabaseURL
	if dbURL == "" {
		if dbURL, err = storage.DefaultSQLiteURL(plan.Dataset.Name); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	scfg, err := storage.ParseURL(dbURL)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	dst, err := storage.New(ctx, scfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer dst.Close()

	res, err := importer.RunPlan(ctx, req, plan, client, dst)
	if err != nil {
		var le *loader.LoadError
		if errors.As(err, &le) {
			fmt.Fprintf(stderr, "%v\n%d rows were committed before the failure; table %s is incomplete\n",
				err, le.RowsLoaded, res.Plan.Spec.Table)
		} else {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}
	if res.Degraded() {
		fmt.Fprintf(stderr, "note: %s has no spatial support; geometry columns hold WKT text\n", scfg.Kind)
	}
	fmt.Fprintln(stdout, progress.Summary(res.Spec.Table, res.Progress, time.Since(start)))
	return 0
}

func runList(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var o options
	fs := newFlagSet("ls", stderr, &o, false)
	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	if len(pos) != 1 {
		fmt.Fprintf(stderr, "ls takes <site>\n%s", usage)
		return 2
	}
	cfg, ok := loadConfig(o, pos[0], stderr)
	if !ok {
		return 1
	}
	client, err := newClient(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	list, err := client.Datasets(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCATEGORY\tID\tURL")
	for _, d := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", oneLine(d.Name), oneLine(d.Category), d.ID, d.URL)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
