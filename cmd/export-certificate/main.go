package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caasmo/restinpieces"
	ripconfig "github.com/caasmo/restinpieces/config"
	dbz "github.com/caasmo/restinpieces/db/zombiezen"

	acme "github.com/caasmo/acme-keeper"
	"github.com/caasmo/acme-keeper/store/rip"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	dbPathFlag := flag.String("dbpath", "", "Path to the SQLite database file (required)")
	ageIdentityPathFlag := flag.String("age-key", "", "Path to the age identity file (private key 'AGE-SECRET-KEY-1...') (required)")
	directoryFlag := flag.String("directory", "", "ACME directory URL the certificate was issued against (required)")
	domainsFlag := flag.String("domains", "", "Domain list the certificate was requested with; first entry is the identity (required)")
	certOutFlag := flag.String("out-cert", "certificate.pem", "Output path for the PEM certificate chain")
	keyOutFlag := flag.String("out-key", "certificate.key", "Output path for the PEM private key")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -dbpath <db-file> -age-key <identity-file> -directory <url> -domains <list>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Exports the latest certificate chain and key from the secret store to PEM files.\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *dbPathFlag == "" || *ageIdentityPathFlag == "" || *directoryFlag == "" || *domainsFlag == "" {
		flag.Usage()
		os.Exit(1)
	}

	domains, err := acme.ParseDomains(*domainsFlag)
	if err != nil {
		logger.Error("invalid domain list", "domains", *domainsFlag, "error", err)
		os.Exit(1)
	}
	dirToken, err := acme.DirectoryToken(*directoryFlag)
	if err != nil {
		logger.Error("invalid directory URL", "directory", *directoryFlag, "error", err)
		os.Exit(1)
	}
	certToken := acme.CertNameToken(acme.CertificateName(domains))

	logger.Info("opening sqlite database pool", "path", *dbPathFlag)
	pool, err := restinpieces.NewZombiezenPool(*dbPathFlag)
	if err != nil {
		logger.Error("failed to create database pool", "db_path", *dbPathFlag, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Error("error closing database pool", "error", err)
		}
	}()

	dbImpl, err := dbz.New(pool)
	if err != nil {
		logger.Error("failed to instantiate zombiezen db from pool", "error", err)
		os.Exit(1)
	}

	secureStore, err := ripconfig.NewSecureStoreAge(dbImpl, *ageIdentityPathFlag)
	if err != nil {
		logger.Error("failed to instantiate secure store (age)", "age_key_path", *ageIdentityPathFlag, "error", err)
		os.Exit(1)
	}
	store := rip.New(secureStore, dbImpl, logger)

	name := acme.OrderSecretName(dirToken, certToken)
	logger.Info("loading order record", "secret", name)
	value, ok, err := store.Get(context.Background(), name)
	if err != nil {
		logger.Error("failed to load order record", "secret", name, "error", err)
		os.Exit(1)
	}
	if !ok {
		logger.Error("no order record in the secret store", "secret", name)
		os.Exit(1)
	}

	order, err := acme.ParseOrderRecord([]byte(value))
	if err != nil {
		logger.Error("order record is unreadable", "secret", name, "error", err)
		os.Exit(1)
	}
	if len(order.Resource.Certificate) == 0 || len(order.Resource.PrivateKey) == 0 {
		logger.Error("order record holds no certificate material", "secret", name)
		os.Exit(1)
	}

	if err := os.WriteFile(*certOutFlag, order.Resource.Certificate, 0644); err != nil {
		logger.Error("failed to write certificate chain", "path", *certOutFlag, "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*keyOutFlag, order.Resource.PrivateKey, 0600); err != nil {
		logger.Error("failed to write private key", "path", *keyOutFlag, "error", err)
		os.Exit(1)
	}

	logger.Info("exported certificate",
		"certificate", order.Name,
		"expires", order.NotAfter().UTC().Format(time.RFC3339),
		"cert_path", *certOutFlag,
		"key_path", *keyOutFlag)
}
