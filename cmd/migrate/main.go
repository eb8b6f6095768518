// Package main applies the embedded schema migrations.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"retailledger/internal/config"
	"retailledger/internal/infrastructure/migration"
	"retailledger/pkg/logger"
)

func main() {
	var (
		dsn      string
		logLevel string
	)
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (default: database.dsn from config)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(logger.Config{Level: logLevel, Development: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalw("failed to load configuration", "error", err)
		}
		dsn = cfg.Database.DSN
	}
	if dsn == "" {
		log.Fatal("database DSN is not configured; set RETAIL_DATABASE_DSN or pass -dsn")
	}

	m, err := migration.New(dsn, log)
	if err != nil {
		log.Fatalw("failed to create migrator", "error", err)
	}
	defer func() { _ = m.Close() }()

	switch command {
	case "up":
		err = m.Up()

	case "down":
		err = m.Down()

	case "step":
		if len(args) < 2 {
			log.Fatal("step count required. Usage: migrate step <n>")
		}
		n, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			log.Fatalw("invalid step count", "value", args[1])
		}
		err = m.Steps(n)

	case "version":
		version, dirty, verr := m.Version()
		if verr != nil {
			log.Fatalw("failed to get version", "error", verr)
		}
		if version == 0 {
			log.Info("no migrations applied")
		} else {
			log.Infow("current migration version", "version", version, "dirty", dirty)
		}

	case "force":
		if len(args) < 2 {
			log.Fatal("version required. Usage: migrate force <version>")
		}
		version, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			log.Fatalw("invalid version number", "value", args[1])
		}
		log.Warn("forcing migration version")
		err = m.Force(version)

	default:
		log.Errorw("unknown command", "command", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalw("migration failed", "command", command, "error", err)
	}
}

func printUsage() {
	fmt.Println(`Retail ledger schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                Apply all pending migrations
  down              Roll back all migrations
  step <n>          Apply n migrations (positive=up, negative=down)
  version           Show current migration version
  force <version>   Force set migration version

Flags:
  -dsn string        PostgreSQL DSN (default: RETAIL_DATABASE_DSN)
  -log-level string  Log level (default: info)`)
}
