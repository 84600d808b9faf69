package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prudhvinik1/sheetsync/internal/models"
	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "sheets:token:"

// tokenExpirySkew keeps Redis from handing out a token in its last minute.
const tokenExpirySkew = time.Minute

// RedisTokenCache shares access tokens between server instances and CLI runs.
type RedisTokenCache struct {
	client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{client: client}
}

// Get returns nil, nil when no token is cached.
func (r *RedisTokenCache) Get(ctx context.Context, key string) (*models.AccessToken, error) {
	data, err := r.client.Get(ctx, tokenKeyPrefix+key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var token models.AccessToken
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

// Set stores the token until shortly before it expires. Tokens that are
// already inside the skew window are not stored.
func (r *RedisTokenCache) Set(ctx context.Context, key string, token *models.AccessToken) error {
	ttl := time.Until(token.ExpiresAt) - tokenExpirySkew
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := r.client.Set(ctx, tokenKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token: %w", err)
	}
	return nil
}

func (r *RedisTokenCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, tokenKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
