// internal/settings/store.go
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shopbridge/pkg/sessions"
)

// Settings is one shop's persisted configuration. Created lazily on first
// access; never deleted by this subsystem.
type Settings struct {
	Shop      string
	ProductID *int64
}

type Store interface {
	// Get returns the shop's settings, creating an empty row on first access.
	Get(ctx context.Context, shop string) (Settings, error)
	SetProduct(ctx context.Context, shop string, productID int64) error
}

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
}

func NewPostgresStore(dbPool *pgxpool.Pool) Store {
	return &pgStore{dbPool: dbPool}
}

// EnsureSchema creates the settings table if missing. Idempotent.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenant_settings (
  shop text PRIMARY KEY,
  product_id bigint,
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

func (p *pgStore) Get(ctx context.Context, shop string) (Settings, error) {
	var s Settings
	err := p.dbPool.QueryRow(ctx, `SELECT shop, product_id FROM tenant_settings WHERE shop=$1`, shop).Scan(&s.Shop, &s.ProductID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, fmt.Errorf("%w: %v", sessions.ErrStorageUnavailable, err)
	}
	if _, err := p.dbPool.Exec(ctx, `
        INSERT INTO tenant_settings(shop) VALUES ($1) ON CONFLICT (shop) DO NOTHING
    `, shop); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", sessions.ErrStorageUnavailable, err)
	}
	return Settings{Shop: shop}, nil
}

func (p *pgStore) SetProduct(ctx context.Context, shop string, productID int64) error {
	_, err := p.dbPool.Exec(ctx, `
        INSERT INTO tenant_settings(shop, product_id, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (shop) DO UPDATE SET product_id=EXCLUDED.product_id, updated_at=NOW()
    `, shop, productID)
	if err != nil {
		return fmt.Errorf("%w: %v", sessions.ErrStorageUnavailable, err)
	}
	return nil
}

// memStore is the in-memory Store used for dev bring-up and tests.
type memStore struct {
	mu   sync.Mutex
	rows map[string]Settings
}

func NewMemoryStore() Store {
	return &memStore{rows: map[string]Settings{}}
}

func (m *memStore) Get(ctx context.Context, shop string) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.rows[shop]; ok {
		return s, nil
	}
	s := Settings{Shop: shop}
	m.rows[shop] = s
	return s, nil
}

func (m *memStore) SetProduct(ctx context.Context, shop string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := productID
	m.rows[shop] = Settings{Shop: shop, ProductID: &id}
	return nil
}
