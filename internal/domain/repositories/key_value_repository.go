package repositories

import (
	"context"
	"encoding/json"
)

// KeyValueRepository is the typed JSON journal used for low-contention
// coordination state: deferred records, the suspend flag, liquidity
// in-flight markers and per-address nonces.
type KeyValueRepository interface {
	Get(ctx context.Context, key string, out interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error

	// ListByPrefix returns raw values of all keys sharing a prefix, used
	// by the deferred scheduler to enumerate its records.
	ListByPrefix(ctx context.Context, prefix string) (map[string]json.RawMessage, error)
}
