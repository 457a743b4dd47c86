// pkg/sessions/store.go
package sessions

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means no record exists for the ID. Callers treat this as
	// "no active session", not as a fault.
	ErrNotFound = errors.New("session not found")

	// ErrCorruptedPayload means the stored blob failed decryption or decoding.
	// Distinct from ErrNotFound: it signals corruption or a secret mismatch,
	// and the session must be re-established through OAuth.
	ErrCorruptedPayload = errors.New("corrupted session payload")

	// ErrStorageUnavailable wraps backend I/O failures.
	ErrStorageUnavailable = errors.New("session storage unavailable")
)

// Store persists encrypted session records keyed by session ID.
// Store is an upsert and idempotent; Delete of a missing ID is a no-op.
type Store interface {
	Store(ctx context.Context, s *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error

	// DeleteByShop removes every session a shop holds (uninstall cleanup).
	DeleteByShop(ctx context.Context, shop string) error

	// Shops lists the shops that currently hold at least one session.
	// Used to rehydrate the authorization cache on boot when enabled.
	Shops(ctx context.Context) ([]string, error)
}
