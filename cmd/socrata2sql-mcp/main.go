// Command socrata2sql-mcp serves the socrata2sql tools over MCP on stdio.
package main

import (
	"flag"
	"os"

	"socrata2sql/internal/config"
	"socrata2sql/internal/mcpserver"
	"socrata2sql/internal/socrata"

	_ "socrata2sql/internal/storage/all"

	log "github.com/sirupsen/logrus"
)

var version = "dev"

func main() {
	cfgPath := flag.String("config", "", "YAML config file")
	site := flag.String("site", "", "default portal domain")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	// stdout carries the protocol; logs go to stderr.
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.WithError(err).Fatal("config error")
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if *site != "" {
		cfg.Site = *site
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	s := mcpserver.New(mcpserver.Deps{
		Site: cfg.Site,
		NewClient: func(site string) (*socrata.Client, error) {
			return socrata.NewClient(socrata.Config{
				Site:       site,
				AppToken:   cfg.AppToken,
				Timeout:    cfg.HTTP.Timeout,
				MaxRetries: cfg.HTTP.MaxRetries,
			})
		},
		DatabaseURL: cfg.DatabaseURL,
		PageSize:    cfg.PageSize,
		SRID:        cfg.SRID,
	}, version)

	log.WithField("site", cfg.Site).Info("serving MCP on stdio")
	if err := s.ServeStdio(); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
