// pkg/authcache/cache.go
package authcache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"shopbridge/pkg/sessions"
)

// Cache is the process-wide record of which shops currently hold valid,
// un-revoked access. Presence of an entry is the sole fast-path gate for
// every shop-facing request. Entries live until an uninstall webhook revokes
// them or the process restarts; there is no expiry timer.
//
// Reads vastly outnumber writes (every request checks, writes happen once per
// install/uninstall), so a single RWMutex over a map is enough.
type Cache struct {
	mu    sync.RWMutex
	shops map[string][]string // shop -> granted scopes
}

func New() *Cache {
	return &Cache{shops: map[string][]string{}}
}

// Grant records the shop as authorized with the given scopes, replacing any
// previous grant.
func (c *Cache) Grant(shop string, scopes []string) {
	cp := make([]string, len(scopes))
	copy(cp, scopes)
	c.mu.Lock()
	c.shops[shop] = cp
	c.mu.Unlock()
}

// Revoke removes the shop. Revoking an ungranted shop is a no-op.
func (c *Cache) Revoke(shop string) {
	c.mu.Lock()
	delete(c.shops, shop)
	c.mu.Unlock()
}

func (c *Cache) IsAuthorized(shop string) bool {
	c.mu.RLock()
	_, ok := c.shops[shop]
	c.mu.RUnlock()
	return ok
}

// Scopes returns the granted scopes for a shop, if any.
func (c *Cache) Scopes(shop string) ([]string, bool) {
	c.mu.RLock()
	sc, ok := c.shops[shop]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	out := make([]string, len(sc))
	copy(out, sc)
	return out, true
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shops)
}

// Rehydrate rebuilds the cache from persisted offline sessions. Optional:
// by default a restart de-authorizes every shop and forces re-auth, matching
// the process-lifetime contract. Shops whose stored session is missing or
// corrupted are skipped and will re-auth on their next request.
func (c *Cache) Rehydrate(ctx context.Context, store sessions.Store, log *zap.SugaredLogger) error {
	shops, err := store.Shops(ctx)
	if err != nil {
		return err
	}
	restored := 0
	for _, shop := range shops {
		s, err := store.Load(ctx, sessions.OfflineSessionID(shop))
		if err != nil {
			log.Warnw("rehydrate skip", "shop", shop, "err", err)
			continue
		}
		c.Grant(shop, s.Scope)
		restored++
	}
	log.Infow("authorization cache rehydrated", "shops", restored)
	return nil
}
