package acme

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/caasmo/acme-keeper/history"
)

// Result summarizes one completed run.
type Result struct {
	AccountID       string
	CertificateName string
	Domains         []string
	Reused          bool
	AccountWritten  bool
	OrderWritten    bool
	Order           *OrderRecord
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithHistory records every fresh issuance through w. Reused orders are not
// recorded. History runs after reconciliation and is advisory: a write failure
// is logged but does not fail the run, since the store already holds the
// reconciled state at that point.
func WithHistory(w history.Writer) RunnerOption {
	return func(r *Runner) {
		r.history = w
	}
}

// Runner drives one certificate lifecycle end-to-end: rehydrate state from
// the secret store, ensure the account exists with the requested contact,
// obtain the certificate, and reconcile changed state back into the store.
//
// A run is strictly sequential and owns its cache exclusively. Any failure
// before issuance completes aborts the run without touching the store, so a
// failed run leaves the store exactly as it found it.
type Runner struct {
	cfg        *Config
	client     Client
	rehydrator *Rehydrator
	reconciler *Reconciler
	history    history.Writer
	logger     *slog.Logger
}

// NewRunner wires a runner from its collaborators. The store and cache are
// shared with the rehydration and reconciliation stages it creates.
func NewRunner(cfg *Config, store SecretStore, cache *Cache, client Client, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if cfg == nil || store == nil || cache == nil || client == nil || logger == nil {
		panic("NewRunner: received nil config, store, cache, client, or logger")
	}
	r := &Runner{
		cfg:        cfg,
		client:     client,
		rehydrator: NewRehydrator(store, cache, logger),
		reconciler: NewReconciler(store, cache, logger),
		logger:     logger.With("component", "runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the full lifecycle for the configured certificate.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	domains, err := ParseDomains(r.cfg.Domains)
	if err != nil {
		return nil, err
	}
	dirToken, err := DirectoryToken(r.cfg.CADirectoryURL)
	if err != nil {
		return nil, err
	}
	certName := CertificateName(domains)
	certToken := CertNameToken(certName)

	r.logger.Info("starting run",
		"directory", r.cfg.CADirectoryURL,
		"certificate", certName,
		"domains", domains,
		"force_renewal", r.cfg.ForceRenewal)

	loaded := new(LoadedState)
	loaded.Account, loaded.AccountPresent, err = r.rehydrator.RehydrateAccount(ctx, dirToken)
	if err != nil {
		return nil, err
	}

	account, createdNew, err := r.ensureAccount(ctx)
	if err != nil {
		return nil, err
	}

	// A brand-new account can have no valid prior orders; skip the fetch so a
	// stale order from a superseded account is never even read.
	if !createdNew {
		loaded.Order, loaded.OrderPresent, err = r.rehydrator.RehydrateOrder(ctx, dirToken, certToken, account.ID)
		if err != nil {
			return nil, err
		}
	}

	obtained, err := r.client.Obtain(ctx, ObtainRequest{
		Domains:      domains,
		ForceRenewal: r.cfg.ForceRenewal,
	})
	if err != nil {
		return nil, err
	}

	recon, err := r.reconciler.Reconcile(ctx, dirToken, certToken, loaded)
	if err != nil {
		return nil, err
	}

	if r.history != nil && !obtained.Reused {
		if err := r.recordIssuance(ctx, certName, domains, obtained.Order); err != nil {
			r.logger.Error("failed to record issuance history", "certificate", certName, "error", err)
		}
	}

	result := &Result{
		AccountID:       account.ID,
		CertificateName: certName,
		Domains:         domains,
		Reused:          obtained.Reused,
		AccountWritten:  recon.AccountWritten,
		OrderWritten:    recon.OrderWritten,
		Order:           obtained.Order,
	}
	r.logger.Info("run complete",
		"account_id", result.AccountID,
		"certificate", result.CertificateName,
		"reused", result.Reused,
		"account_written", result.AccountWritten,
		"order_written", result.OrderWritten)
	return result, nil
}

// ensureAccount walks the account state machine: no account means create one
// (marking the run as new-account), a matching contact is a no-op, and a
// differing contact is updated in place under the same account identifier.
func (r *Runner) ensureAccount(ctx context.Context) (*AccountRecord, bool, error) {
	account, ok, err := r.client.Account()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		account, err = r.client.Register(ctx, r.cfg.Email)
		if err != nil {
			return nil, false, err
		}
		return account, true, nil
	}
	if account.Contact != r.cfg.Email {
		account, err = r.client.UpdateContact(ctx, r.cfg.Email)
		if err != nil {
			return nil, false, err
		}
	}
	return account, false, nil
}

func (r *Runner) recordIssuance(ctx context.Context, certName string, domains []string, order *OrderRecord) error {
	domainsJSON, err := json.Marshal(domains)
	if err != nil {
		return fmt.Errorf("runner: failed to encode domain list: %w", err)
	}
	rec := history.Record{
		Identifier:       certName,
		Domains:          string(domainsJSON),
		CertificateChain: string(order.Resource.Certificate),
		PrivateKey:       string(order.Resource.PrivateKey),
		IssuedAt:         order.IssuedAt,
		ExpiresAt:        order.NotAfter(),
	}
	if err := r.history.Add(ctx, rec); err != nil {
		return fmt.Errorf("runner: failed to record issuance: %w", err)
	}
	return nil
}
