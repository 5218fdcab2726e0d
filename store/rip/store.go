// Package rip backs the secret store contract with a restinpieces
// SecureStore, keeping all ACME state in the age-encrypted sqlite config
// database alongside the application's other secrets.
package rip

import (
	"context"
	"fmt"
	"log/slog"
)

// SecureStore is the slice of restinpieces' config.SecureStore this adapter
// uses. Secret names map onto store scopes; every Save creates a new
// generation and Get with generation 0 returns the newest one.
type SecureStore interface {
	Get(scope string, generation int) ([]byte, string, error)
	Save(scope string, plaintextData []byte, format string, description string) error
}

// ConfigReader is the slice of restinpieces' db.DbConfig used to probe for a
// scope's existence. SecureStore.Get fails on a scope that has never been
// written (there is no ciphertext to decrypt), so absence has to be detected
// on the raw rows. Satisfied by the same db implementation that backs the
// SecureStore.
type ConfigReader interface {
	GetConfig(scope string, generation int) ([]byte, string, error)
}

// Store adapts a SecureStore to the acme.SecretStore contract.
type Store struct {
	sec    SecureStore
	raw    ConfigReader
	logger *slog.Logger
}

func New(sec SecureStore, raw ConfigReader, logger *slog.Logger) *Store {
	if sec == nil || raw == nil || logger == nil {
		panic("rip.New: received nil store, reader, or logger")
	}
	return &Store{sec: sec, raw: raw, logger: logger.With("secret_store", "restinpieces")}
}

// Get returns the latest version of the named secret. A scope with no rows
// has never been written; that is reported as absence, not an error.
func (s *Store) Get(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	content, _, err := s.raw.GetConfig(name, 0)
	if err != nil {
		return "", false, fmt.Errorf("rip: failed to check secret %q: %w", name, err)
	}
	if len(content) == 0 {
		return "", false, nil
	}
	data, _, err := s.sec.Get(name, 0)
	if err != nil {
		return "", false, fmt.Errorf("rip: failed to load secret %q: %w", name, err)
	}
	return string(data), true, nil
}

// Put saves a new version of the named secret.
func (s *Store) Put(ctx context.Context, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	description := fmt.Sprintf("ACME state record %s", name)
	if err := s.sec.Save(name, []byte(value), "json", description); err != nil {
		return fmt.Errorf("rip: failed to save secret %q: %w", name, err)
	}
	s.logger.Info("saved secret", "scope", name)
	return nil
}
