package history

import (
	"context"
	"time"
)

// Record is one issuance history row. The private key travels with the chain
// because the history table doubles as the pickup point for certificate
// consumers; treat the storage accordingly.
type Record struct {
	ID               int64     // Primary key, populated on insert
	Identifier       string    // Canonical certificate name
	Domains          string    // JSON array of all covered domains
	CertificateChain string    // PEM encoded certificate chain
	PrivateKey       string    // PEM encoded private key
	IssuedAt         time.Time // UTC timestamp of issuance
	ExpiresAt        time.Time // UTC timestamp of expiry
}

// Writer appends issuance records. Implementations must not mutate prior rows;
// the history is append-only.
type Writer interface {
	Add(ctx context.Context, rec Record) error
}

// TimeFormat renders timestamps the way the history schema stores them.
func TimeFormat(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
