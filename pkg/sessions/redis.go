// pkg/sessions/redis.go
package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	sessionKeyPrefix = "session:"
	shopIndexPrefix  = "shop_sessions:"
	shopsKey         = "shops"
)

// redisStore implements Store on Redis. Each session lives under its own key;
// a per-shop set plus a global shop set provide the tenant-level index.
type redisStore struct {
	cli   *redis.Client
	codec *Codec
	log   *zap.SugaredLogger
}

func NewRedisStore(cli *redis.Client, codec *Codec, log *zap.SugaredLogger) Store {
	return &redisStore{cli: cli, codec: codec, log: log}
}

func (r *redisStore) Store(ctx context.Context, s *Session) error {
	plain, err := s.encode()
	if err != nil {
		return err
	}
	blob, err := r.codec.Encrypt(plain)
	if err != nil {
		return err
	}
	pipe := r.cli.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+s.ID, blob, 0)
	pipe.SAdd(ctx, shopIndexPrefix+s.Shop, s.ID)
	pipe.SAdd(ctx, shopsKey, s.Shop)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (r *redisStore) Load(ctx context.Context, id string) (*Session, error) {
	blob, err := r.cli.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	plain, err := r.codec.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	return decodeSession(plain)
}

func (r *redisStore) Delete(ctx context.Context, id string) error {
	// Look the session up first so the shop index stays consistent; a missing
	// record is not an error.
	s, err := r.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorruptedPayload) {
			return r.cli.Del(ctx, sessionKeyPrefix+id).Err()
		}
		return err
	}
	pipe := r.cli.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+id)
	pipe.SRem(ctx, shopIndexPrefix+s.Shop, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (r *redisStore) DeleteByShop(ctx context.Context, shop string) error {
	ids, err := r.cli.SMembers(ctx, shopIndexPrefix+shop).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	pipe := r.cli.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, sessionKeyPrefix+id)
	}
	pipe.Del(ctx, shopIndexPrefix+shop)
	pipe.SRem(ctx, shopsKey, shop)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (r *redisStore) Shops(ctx context.Context) ([]string, error) {
	shops, err := r.cli.SMembers(ctx, shopsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return shops, nil
}
