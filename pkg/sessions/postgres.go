// pkg/sessions/postgres.go
package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	codec  *Codec
	log    *zap.SugaredLogger
}

func NewPostgresStore(dbPool *pgxpool.Pool, codec *Codec, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, codec: codec, log: log}
}

// EnsureSchema creates the session table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS shop_sessions (
  id text PRIMARY KEY,
  shop text NOT NULL,
  content bytea NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS shop_sessions_shop_idx ON shop_sessions(shop);
`)
	return err
}

func (p *pgStore) Store(ctx context.Context, s *Session) error {
	plain, err := s.encode()
	if err != nil {
		return err
	}
	blob, err := p.codec.Encrypt(plain)
	if err != nil {
		return err
	}
	_, err = p.dbPool.Exec(ctx, `
        INSERT INTO shop_sessions(id, shop, content, updated_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (id) DO UPDATE SET shop=EXCLUDED.shop, content=EXCLUDED.content, updated_at=NOW()
    `, s.ID, s.Shop, blob)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (p *pgStore) Load(ctx context.Context, id string) (*Session, error) {
	var blob []byte
	err := p.dbPool.QueryRow(ctx, `SELECT content FROM shop_sessions WHERE id=$1`, id).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	plain, err := p.codec.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	return decodeSession(plain)
}

func (p *pgStore) Delete(ctx context.Context, id string) error {
	if _, err := p.dbPool.Exec(ctx, `DELETE FROM shop_sessions WHERE id=$1`, id); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (p *pgStore) DeleteByShop(ctx context.Context, shop string) error {
	if _, err := p.dbPool.Exec(ctx, `DELETE FROM shop_sessions WHERE shop=$1`, shop); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (p *pgStore) Shops(ctx context.Context) ([]string, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT DISTINCT shop FROM shop_sessions`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()
	var shops []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		shops = append(shops, s)
	}
	return shops, rows.Err()
}
