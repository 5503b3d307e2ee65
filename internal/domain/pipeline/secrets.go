package pipeline

import "context"

// Keys under which the target-system credentials are stored.
const (
	SecretRoarUsername = "ROAR_USERNAME"
	SecretRoarSecret   = "ROAR_SECRET"
)

// SecretStore holds operator-entered credentials. The pipeline consumes the
// values as opaque strings; encryption at rest is an implementation detail of
// the store.
type SecretStore interface {
	// Get returns the stored value for key, or "" when unset.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Has reports whether a value is stored under key.
	Has(ctx context.Context, key string) (bool, error)
}
