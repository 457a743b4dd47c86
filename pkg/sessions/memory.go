// pkg/sessions/memory.go
package sessions

import (
	"context"
	"sync"
)

// memStore keeps encrypted blobs in a mutex-guarded map. Dev bring-up and
// tests only; it still routes everything through the codec so the encrypted
// path is exercised.
type memStore struct {
	mu    sync.RWMutex
	codec *Codec
	blobs map[string][]byte // id -> encrypted blob
	shops map[string]string // id -> shop
}

func NewMemoryStore(codec *Codec) Store {
	return &memStore{
		codec: codec,
		blobs: map[string][]byte{},
		shops: map[string]string{},
	}
}

func (m *memStore) Store(ctx context.Context, s *Session) error {
	plain, err := s.encode()
	if err != nil {
		return err
	}
	blob, err := m.codec.Encrypt(plain)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.blobs[s.ID] = blob
	m.shops[s.ID] = s.Shop
	m.mu.Unlock()
	return nil
}

func (m *memStore) Load(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	blob, ok := m.blobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	plain, err := m.codec.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	return decodeSession(plain)
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.blobs, id)
	delete(m.shops, id)
	m.mu.Unlock()
	return nil
}

func (m *memStore) DeleteByShop(ctx context.Context, shop string) error {
	m.mu.Lock()
	for id, s := range m.shops {
		if s == shop {
			delete(m.blobs, id)
			delete(m.shops, id)
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *memStore) Shops(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]struct{}{}
	var out []string
	for _, s := range m.shops {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out, nil
}
