package zombiezen

import (
	"context"
	"fmt"

	"github.com/caasmo/acme-keeper/history"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Db implements history.Writer using zombiezen/sqlite.
type Db struct {
	pool *sqlitex.Pool
}

// NewWriter creates a Db over an externally managed pool.
func NewWriter(pool *sqlitex.Pool) *Db {
	if pool == nil {
		panic("zombiezen.NewWriter: received nil pool")
	}
	return &Db{pool: pool}
}

// Add appends an issuance record to the 'certificates' table. The id and
// created_at columns rely on database defaults.
func (d *Db) Add(ctx context.Context, rec history.Record) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("history: failed to get connection: %w", err)
	}
	defer d.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO certificates (
			identifier, domains, certificate_chain, private_key, issued_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?);`,
		&sqlitex.ExecOptions{
			Args: []interface{}{
				rec.Identifier,
				rec.Domains,
				rec.CertificateChain,
				rec.PrivateKey,
				history.TimeFormat(rec.IssuedAt),
				history.TimeFormat(rec.ExpiresAt),
			},
		})
	if err != nil {
		return fmt.Errorf("history: failed to insert record for identifier %q: %w", rec.Identifier, err)
	}
	return nil
}
