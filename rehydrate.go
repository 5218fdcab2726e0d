package acme

import (
	"context"
	"fmt"
	"log/slog"
)

// LoadedState captures exactly what the secret store held when the run
// started. Reconciliation diffs the end-of-run cache against it so that only
// real changes are written back.
type LoadedState struct {
	Account        string
	AccountPresent bool
	Order          string
	OrderPresent   bool
}

// Rehydrator pulls account and order records out of the secret store into the
// run-scoped cache, validating applicability before trusting anything.
type Rehydrator struct {
	store  SecretStore
	cache  *Cache
	logger *slog.Logger
}

func NewRehydrator(store SecretStore, cache *Cache, logger *slog.Logger) *Rehydrator {
	if store == nil || cache == nil || logger == nil {
		panic("NewRehydrator: received nil store, cache, or logger")
	}
	return &Rehydrator{store: store, cache: cache, logger: logger.With("component", "rehydration")}
}

// RehydrateAccount fetches the account secret for the directory and, when
// present, materializes it into the cache. A document that does not parse is
// fatal: falling back to a new account here would mask drift and orphan the
// certificates bound to the old account.
func (r *Rehydrator) RehydrateAccount(ctx context.Context, dirToken string) (string, bool, error) {
	name := AccountSecretName(dirToken)
	value, ok, err := r.store.Get(ctx, name)
	if err != nil {
		return "", false, fmt.Errorf("rehydrate: failed to fetch account secret %q: %w", name, err)
	}
	if !ok {
		r.logger.Info("no account secret in store, a new account will be created", "secret", name)
		return "", false, nil
	}

	rec, err := ParseAccountRecord([]byte(value))
	if err != nil {
		return "", false, fmt.Errorf("rehydrate: account secret %q: %w", name, err)
	}

	if err := r.cache.WriteAccount([]byte(value)); err != nil {
		return "", false, err
	}
	r.logger.Info("rehydrated account", "secret", name, "account_id", rec.ID)
	return value, true, nil
}

// RehydrateOrder fetches the order secret for the certificate and materializes
// it into the cache only when its account binding matches the active account.
// A mismatched or unreadable order is discarded silently: that is the expected
// stale-order case and simply forces fresh order creation. The loaded store
// value is returned either way so reconciliation can diff against it.
//
// Callers must skip this entirely when the account was created during this
// run; a brand-new account can have no valid prior orders.
func (r *Rehydrator) RehydrateOrder(ctx context.Context, dirToken, certToken, activeAccountID string) (string, bool, error) {
	name := OrderSecretName(dirToken, certToken)
	value, ok, err := r.store.Get(ctx, name)
	if err != nil {
		return "", false, fmt.Errorf("rehydrate: failed to fetch order secret %q: %w", name, err)
	}
	if !ok {
		r.logger.Info("no order secret in store", "secret", name)
		return "", false, nil
	}

	rec, err := ParseOrderRecord([]byte(value))
	if err != nil {
		r.logger.Warn("discarding unreadable order secret, a fresh order will be created", "secret", name, "error", err)
		return value, true, nil
	}
	if rec.Account != activeAccountID {
		r.logger.Info("discarding order bound to a different account, a fresh order will be created",
			"secret", name, "order_account", rec.Account, "active_account", activeAccountID)
		return value, true, nil
	}

	if err := r.cache.WriteOrder(certToken, []byte(value)); err != nil {
		return "", false, err
	}
	r.logger.Info("rehydrated order", "secret", name, "certificate", rec.Name)
	return value, true, nil
}
