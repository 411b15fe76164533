package credential

import (
	"SpeechStudio/internal/config"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// FromConfig выбирает бэкенд по конфигурации. closeFn освобождает соединения бэкенда.
func FromConfig(cfg config.CredentialConfig) (store Store, closeFn func() error, err error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "file":
		return NewFileStore(cfg.Path), noop, nil
	case "memory":
		return NewMemoryStore(), noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisStore(client, "speech-studio"), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("credential: unknown backend %q", cfg.Backend)
	}
}
