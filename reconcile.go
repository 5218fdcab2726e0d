package acme

import (
	"context"
	"fmt"
	"log/slog"
)

// ReconcileResult reports which secrets were actually written.
type ReconcileResult struct {
	AccountWritten bool
	OrderWritten   bool
}

// Reconciler propagates end-of-run cache state back into the secret store.
// It runs only after a successful issuance, and writes only on change: the
// comparison is byte-exact on the raw documents, no semantic diffing. Any
// client-internal state change triggers a write; identical content never does.
type Reconciler struct {
	store  SecretStore
	cache  *Cache
	logger *slog.Logger
}

func NewReconciler(store SecretStore, cache *Cache, logger *slog.Logger) *Reconciler {
	if store == nil || cache == nil || logger == nil {
		panic("NewReconciler: received nil store, cache, or logger")
	}
	return &Reconciler{store: store, cache: cache, logger: logger.With("component", "reconciliation")}
}

// Reconcile diffs the cached account and order records against the state
// loaded at run start and writes back whatever changed.
func (r *Reconciler) Reconcile(ctx context.Context, dirToken, certToken string, loaded *LoadedState) (*ReconcileResult, error) {
	result := new(ReconcileResult)

	accountRaw, ok, err := r.cache.ReadAccount()
	if err != nil {
		return nil, err
	}
	if ok && (!loaded.AccountPresent || string(accountRaw) != loaded.Account) {
		name := AccountSecretName(dirToken)
		if err := r.store.Put(ctx, name, string(accountRaw)); err != nil {
			return nil, fmt.Errorf("reconcile: failed to write account secret %q: %w", name, err)
		}
		result.AccountWritten = true
		r.logger.Info("wrote account secret", "secret", name)
	}

	orderRaw, ok, err := r.cache.ReadOrder(certToken)
	if err != nil {
		return nil, err
	}
	if ok && (!loaded.OrderPresent || string(orderRaw) != loaded.Order) {
		name := OrderSecretName(dirToken, certToken)
		if err := r.store.Put(ctx, name, string(orderRaw)); err != nil {
			return nil, fmt.Errorf("reconcile: failed to write order secret %q: %w", name, err)
		}
		result.OrderWritten = true
		r.logger.Info("wrote order secret", "secret", name)
	}

	if !result.AccountWritten && !result.OrderWritten {
		r.logger.Info("store already up to date, nothing written")
	}
	return result, nil
}
