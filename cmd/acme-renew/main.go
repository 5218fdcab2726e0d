package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/caasmo/restinpieces"
	ripconfig "github.com/caasmo/restinpieces/config"
	dbz "github.com/caasmo/restinpieces/db/zombiezen"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"zombiezen.com/go/sqlite/sqlitex"

	acme "github.com/caasmo/acme-keeper"
	histz "github.com/caasmo/acme-keeper/history/zombiezen"
	"github.com/caasmo/acme-keeper/store/awssm"
	"github.com/caasmo/acme-keeper/store/rip"
)

// run timeout generous enough for ACME order + DNS propagation
const runTimeout = 15 * time.Minute

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	var configPath string
	var dbPath string
	var cacheDir string
	var force bool
	flag.StringVar(&configPath, "config", "acme.toml", "path to config TOML file")
	flag.StringVar(&dbPath, "dbfile", "", "path to SQLite database file (restinpieces store and issuance history)")
	flag.StringVar(&cacheDir, "cache-dir", "", "working directory for run-scoped ACME state (default: fresh temp dir)")
	flag.BoolVar(&force, "force", false, "force renewal even if the current certificate is not yet due")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run one stateless ACME issuance/renewal pass. All protocol state is\n")
		fmt.Fprintf(os.Stderr, "rehydrated from and reconciled back into the configured secret store.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	var overrides acme.EnvOverrides
	if err := env.Parse(&overrides); err != nil {
		logger.Error("failed to parse environment overrides", "error", err)
		os.Exit(1)
	}

	logger.Info("loading configuration", "path", configPath)
	tomlData, err := os.ReadFile(configPath)
	if err != nil {
		logger.Error("failed to read config file", "path", configPath, "error", err)
		os.Exit(1)
	}
	var cfg acme.Config
	if err := toml.Unmarshal(tomlData, &cfg); err != nil {
		logger.Error("failed to parse config file", "path", configPath, "error", err)
		os.Exit(1)
	}

	overrides.Apply(&cfg)
	if force {
		cfg.ForceRenewal = true
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"directory", cfg.CADirectoryURL,
		"email", cfg.Email,
		"domains", cfg.Domains,
		"dns_provider", cfg.DNSProvider,
		"force_renewal", cfg.ForceRenewal,
		"secret_store", cfg.SecretStore.Backend)

	os.Exit(run(&cfg, &overrides, dbPath, logger))
}

func run(cfg *acme.Config, overrides *acme.EnvOverrides, dbPath string, logger *slog.Logger) int {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	dir := cfg.CacheDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "acme-keeper-*")
		if err != nil {
			logger.Error("failed to create temp cache dir", "error", err)
			return 1
		}
		defer func() {
			if err := os.RemoveAll(tmp); err != nil {
				logger.Warn("failed to remove temp cache dir", "dir", tmp, "error", err)
			}
		}()
		dir = tmp
	}

	cache, err := acme.NewCache(dir)
	if err != nil {
		logger.Error("failed to create state cache", "dir", dir, "error", err)
		return 1
	}

	var pool *sqlitex.Pool
	if dbPath != "" {
		logger.Info("opening database pool", "path", dbPath)
		pool, err = restinpieces.NewZombiezenPool(dbPath)
		if err != nil {
			logger.Error("failed to open database pool", "path", dbPath, "error", err)
			return 1
		}
		defer func() {
			if err := pool.Close(); err != nil {
				logger.Error("failed to close database pool", "error", err)
			}
		}()
	}

	store, err := buildStore(ctx, cfg, overrides, pool, logger)
	if err != nil {
		logger.Error("failed to build secret store", "backend", cfg.SecretStore.Backend, "error", err)
		return 1
	}

	var opts []acme.RunnerOption
	if pool != nil {
		opts = append(opts, acme.WithHistory(histz.NewWriter(pool)))
	}

	client := acme.NewLegoClient(cfg, cache, logger)
	runner := acme.NewRunner(cfg, store, cache, client, logger, opts...)

	result, err := runner.Run(ctx)
	if err != nil {
		logger.Error("run failed, secret store left untouched", "error", err)
		return 1
	}

	logger.Info("run succeeded",
		"certificate", result.CertificateName,
		"account_id", result.AccountID,
		"reused", result.Reused,
		"account_written", result.AccountWritten,
		"order_written", result.OrderWritten)
	return 0
}

func buildStore(ctx context.Context, cfg *acme.Config, overrides *acme.EnvOverrides, pool *sqlitex.Pool, logger *slog.Logger) (acme.SecretStore, error) {
	switch cfg.SecretStore.Backend {
	case acme.BackendAWS:
		return awssm.New(ctx, awssm.Config{
			Region:          cfg.SecretStore.AWSRegion,
			AccessKeyID:     overrides.AWSAccessKeyID,
			SecretAccessKey: overrides.AWSSecretAccessKey,
		}, logger)
	case acme.BackendRestinpieces, "":
		if pool == nil {
			return nil, fmt.Errorf("restinpieces store requires -dbfile")
		}
		if overrides.AgeIdentityPath == "" {
			return nil, fmt.Errorf("restinpieces store requires AGE_IDENTITY_PATH")
		}
		dbImpl, err := dbz.New(pool)
		if err != nil {
			return nil, fmt.Errorf("failed to create db instance: %w", err)
		}
		secureStore, err := ripconfig.NewSecureStoreAge(dbImpl, overrides.AgeIdentityPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create secure store: %w", err)
		}
		return rip.New(secureStore, dbImpl, logger), nil
	default:
		return nil, fmt.Errorf("unknown secret store backend %q", cfg.SecretStore.Backend)
	}
}
