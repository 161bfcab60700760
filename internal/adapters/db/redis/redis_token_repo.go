package redis

import (
	"context"
	"github.com/redis/go-redis/v9"
	"time"
)

const accessPrefix = "a:"

// RedisTokenRepo хранит денайлист access-токенов, отозванных logout-ом.
// Запись живёт до переданного момента until.
type RedisTokenRepo struct {
	client *redis.Client
}

func NewRedisTokenRepo(client *redis.Client) *RedisTokenRepo {
	return &RedisTokenRepo{
		client: client,
	}
}

func (r *RedisTokenRepo) RevokeAccess(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		// токен уже не пройдёт проверку, отзывать нечего
		return nil
	}
	return r.client.Set(ctx, accessPrefix+jti, 1, ttl).Err()
}

func (r *RedisTokenRepo) IsAccessRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, accessPrefix+jti).Result()
	if err != nil {
		// считаем отозванным, плюс ошибка вверх
		return true, err
	}
	return n > 0, nil
}
