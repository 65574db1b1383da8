package service

import (
	"context"

	id "pixkey/pkg/domain"
)

// KeyStoreTx runs fn holding the exclusive per-key lock for keyID. Writes
// made through stores commit atomically when fn returns nil and are
// discarded otherwise. Callers for different keys never wait on each other.
type KeyStoreTx interface {
	RunInTx(ctx context.Context, keyID id.KeyID, fn func(ctx context.Context, stores Stores) error) error
}
