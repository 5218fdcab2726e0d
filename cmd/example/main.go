package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/caasmo/restinpieces"
	dbz "github.com/caasmo/restinpieces/db/zombiezen"
	"github.com/pelletier/go-toml/v2"

	acme "github.com/caasmo/acme-keeper"
	histz "github.com/caasmo/acme-keeper/history/zombiezen"
	"github.com/caasmo/acme-keeper/store/rip"
)

// Job type under which the renewal handler is registered with the scheduler.
const JobTypeCertRenewal = "certificate_renewal"

// Scope under which the renewal config TOML lives in the secure store.
const ConfigScope = "acme_config"

// Example of running the lifecycle inside a restinpieces application: the
// renewal config is loaded from the secure store and the runner is registered
// as a queue job handler instead of running one-shot.
func main() {
	dbPath := flag.String("db", "", "Path to the SQLite DB (framework, secret store, and issuance history)")
	ageKeyPath := flag.String("age-key", "", "Path to the age identity (private key) file (required)")
	cacheDir := flag.String("cache-dir", "", "Working directory for run-scoped ACME state (required)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -db <db-path> -age-key <id-path> -cache-dir <dir>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Start a restinpieces application server with scheduled certificate renewal.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *dbPath == "" || *ageKeyPath == "" || *cacheDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	dbPool, err := restinpieces.NewZombiezenPool(*dbPath)
	if err != nil {
		slog.Error("failed to create database pool", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbPool.Close(); err != nil {
			slog.Error("error closing database pool", "error", err)
		}
	}()

	dbImpl, err := dbz.New(dbPool)
	if err != nil {
		slog.Error("failed to create db instance", "error", err)
		os.Exit(1)
	}

	// router, cache, and logger fall back to restinpieces defaults
	app, srv, err := restinpieces.New(
		restinpieces.WithDbApp(dbImpl),
		restinpieces.WithAgeKeyPath(*ageKeyPath),
	)
	if err != nil {
		slog.Error("failed to initialize restinpieces application", "error", err)
		os.Exit(1)
	}
	logger := app.Logger()

	logger.Info("loading renewal configuration from secure store", "scope", ConfigScope)
	tomlData, _, err := app.ConfigStore().Get(ConfigScope, 0)
	if err != nil {
		logger.Error("failed to load renewal config", "scope", ConfigScope, "error", err)
		os.Exit(1)
	}
	if len(tomlData) == 0 {
		logger.Error("renewal config is empty", "scope", ConfigScope)
		os.Exit(1)
	}

	var renewalCfg acme.Config
	if err := toml.Unmarshal(tomlData, &renewalCfg); err != nil {
		logger.Error("failed to unmarshal renewal config", "scope", ConfigScope, "error", err)
		os.Exit(1)
	}
	renewalCfg.CacheDir = *cacheDir
	if err := renewalCfg.Validate(); err != nil {
		logger.Error("invalid renewal config", "scope", ConfigScope, "error", err)
		os.Exit(1)
	}

	cache, err := acme.NewCache(renewalCfg.CacheDir)
	if err != nil {
		logger.Error("failed to create state cache", "dir", renewalCfg.CacheDir, "error", err)
		os.Exit(1)
	}

	store := rip.New(app.ConfigStore(), dbImpl, logger)
	client := acme.NewLegoClient(&renewalCfg, cache, logger)
	runner := acme.NewRunner(&renewalCfg, store, cache, client, logger,
		acme.WithHistory(histz.NewWriter(dbPool)))

	handler := acme.NewRenewalHandler(runner, logger)
	if err := srv.AddJobHandler(JobTypeCertRenewal, handler); err != nil {
		logger.Error("failed to register renewal job handler", "job_type", JobTypeCertRenewal, "error", err)
		os.Exit(1)
	}
	logger.Info("registered renewal job handler", "job_type", JobTypeCertRenewal)

	srv.Run()

	slog.Info("server shut down gracefully")
}
