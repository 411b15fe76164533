package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore хранит ключ в redis под фиксированным именем, без TTL.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore использует готового клиента. namespace — необязательный префикс ключа.
func NewRedisStore(client redis.UniversalClient, namespace string) *RedisStore {
	key := Key
	if namespace != "" {
		key = namespace + ":" + Key
	}
	return &RedisStore{client: client, key: key}
}

func (r *RedisStore) Save(ctx context.Context, secret string) error {
	if err := r.client.Set(ctx, r.key, secret, 0).Err(); err != nil {
		return fmt.Errorf("credential: redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("credential: redis get: %w", err)
	}
	return v, true, nil
}
