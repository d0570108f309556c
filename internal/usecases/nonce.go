package usecases

import (
	"context"
	"time"

	"wallet-ledger.backend/internal/domain/repositories"
)

// nonceStaleAfter bounds how long a journalled nonce is trusted. The node
// only counts broadcast transactions, so back-to-back submissions from one
// address inside this window must continue from the journal; past it the
// journal entry is stale and the signer falls back to the node's view.
const nonceStaleAfter = 60 * time.Second

const noncePrefix = "nonce/"

type nonceEntry struct {
	Value     uint64 `json:"value"`
	UpdatedAt int64  `json:"updatedAt"`
}

// NonceJournal coordinates outbound transaction nonces per initiating
// address through the key-value journal.
type NonceJournal struct {
	kv repositories.KeyValueRepository
}

// NewNonceJournal creates a nonce journal over the key-value store
func NewNonceJournal(kv repositories.KeyValueRepository) *NonceJournal {
	return &NonceJournal{kv: kv}
}

// Reserve returns the nonce the next submission from address must use, or
// nil when the journal has no fresh entry and the signer should take the
// node's account nonce.
func (j *NonceJournal) Reserve(ctx context.Context, address string) (*uint64, error) {
	var entry nonceEntry
	found, err := j.kv.Get(ctx, noncePrefix+address, &entry)
	if err != nil {
		return nil, err
	}
	if !found || time.Since(time.Unix(entry.UpdatedAt, 0)) >= nonceStaleAfter {
		return nil, nil
	}
	next := entry.Value + 1
	return &next, nil
}

// Record journals the nonce a submission actually used
func (j *NonceJournal) Record(ctx context.Context, address string, nonce uint64) error {
	return j.kv.Set(ctx, noncePrefix+address, nonceEntry{
		Value:     nonce,
		UpdatedAt: time.Now().Unix(),
	})
}
