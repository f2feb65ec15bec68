package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisTokenKey = "omega:session:token"
	redisUserKey  = "omega:session:user"

	redisTimeout = 5 * time.Second
)

// RedisBackend keeps the session in redis for deployments where the
// gateway has no persistent state directory.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Load() (string, []byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	token, err := b.client.Get(ctx, redisTokenKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil, nil
		}
		return "", nil, err
	}

	userRaw, err := b.client.Get(ctx, redisUserKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil, nil
		}
		return "", nil, err
	}

	return token, userRaw, nil
}

func (b *RedisBackend) Save(token string, userRaw []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, redisTokenKey, token, 0)
	pipe.Set(ctx, redisUserKey, userRaw, 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (b *RedisBackend) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	return b.client.Del(ctx, redisTokenKey, redisUserKey).Err()
}
