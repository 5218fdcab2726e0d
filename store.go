package acme

import "context"

// SecretStore is the durable owner of all ACME state between runs. It is a
// plain key/value blob store with versioned values; every Put creates a new
// version under the same name.
//
// Absence is a first-class result: Get returns ok=false with a nil error when
// the name has never been written. Any non-nil error is an infrastructure
// failure and fatal to the run.
type SecretStore interface {
	Get(ctx context.Context, name string) (value string, ok bool, err error)
	Put(ctx context.Context, name, value string) error
}
