// internal/authflow/state.go
package authflow

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const stateTTL = 10 * time.Minute

// stateTable holds the one-shot CSRF nonces issued when a shop is sent into
// the handshake. Entries are consumed on callback and expire after stateTTL.
type stateTable struct {
	mu     sync.Mutex
	byID   map[string]stateEntry
	nowFn  func() time.Time
	nextID func() string
}

type stateEntry struct {
	shop    string
	expires time.Time
}

func newStateTable() *stateTable {
	return &stateTable{
		byID:   map[string]stateEntry{},
		nowFn:  time.Now,
		nextID: uuid.NewString,
	}
}

func (t *stateTable) issue(shop string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.nowFn()
	for id, e := range t.byID {
		if now.After(e.expires) {
			delete(t.byID, id)
		}
	}
	id := t.nextID()
	t.byID[id] = stateEntry{shop: shop, expires: now.Add(stateTTL)}
	return id
}

// consume removes and validates a nonce; it succeeds at most once per issue.
func (t *stateTable) consume(id, shop string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[id]
	if !ok {
		return false
	}
	delete(t.byID, id)
	return e.shop == shop && t.nowFn().Before(e.expires)
}
