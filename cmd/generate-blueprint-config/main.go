package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"

	acme "github.com/caasmo/acme-keeper"
)

// blueprintConfig creates a Config populated with placeholder values.
func blueprintConfig() acme.Config {
	return acme.Config{
		Email:          "your-acme-account@example.com",
		Domains:        "example.com, www.example.com",
		CADirectoryURL: "https://acme-staging-v02.api.letsencrypt.org/directory",
		// CADirectoryURL: "https://acme-v02.api.letsencrypt.org/directory", // Production
		DNSProvider: acme.DNSProviderCloudflare,
		DNSProviders: map[string]acme.DNSProvider{
			acme.DNSProviderCloudflare: {
				APIToken: "", // Set via CLOUDFLARE_API_TOKEN instead
			},
		},
		RenewalDaysBeforeExpiry: 30,
		SecretStore: acme.SecretStoreConfig{
			Backend: acme.BackendRestinpieces,
		},
	}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	outputFile := flag.String("output", "acme.blueprint.toml", "Output file path for the blueprint TOML configuration")
	flag.StringVar(outputFile, "o", "acme.blueprint.toml", "Output file path (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generates a blueprint TOML configuration file with example values.\n")
		fmt.Fprintf(os.Stderr, "Replace the placeholders and inject secrets through the environment.\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg := blueprintConfig()

	// Placeholder values fail validation; that is expected for a blueprint.
	if err := cfg.Validate(); err != nil {
		logger.Warn("blueprint configuration has validation issues (expected for placeholders)", "error", err)
	}

	tomlBytes, err := toml.Marshal(cfg)
	if err != nil {
		logger.Error("failed to marshal blueprint config to TOML", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*outputFile, tomlBytes, 0644); err != nil {
		logger.Error("failed to write blueprint config file", "path", *outputFile, "error", err)
		os.Exit(1)
	}

	logger.Info("blueprint configuration generated", "path", *outputFile)
	logger.Warn("replace placeholder values; load API tokens and keys via environment, never the file")
}
