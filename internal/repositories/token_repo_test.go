package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sheetsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTokenCache_SetGet(t *testing.T) {
	client := getTestRedisClient(t)
	cache := NewRedisTokenCache(client)
	ctx := context.Background()
	key := "test-" + uuid.NewString()
	defer client.Del(ctx, tokenKeyPrefix+key)

	// Miss
	tok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, tok)

	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, cache.Set(ctx, key, &models.AccessToken{Token: "abc", ExpiresAt: expiresAt}))

	tok, err = cache.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "abc", tok.Token)
	assert.True(t, expiresAt.Equal(tok.ExpiresAt))

	ttl, err := client.TTL(ctx, tokenKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 59*time.Minute)
}

func TestRedisTokenCache_SkipsNearlyExpired(t *testing.T) {
	client := getTestRedisClient(t)
	cache := NewRedisTokenCache(client)
	ctx := context.Background()
	key := "test-" + uuid.NewString()

	require.NoError(t, cache.Set(ctx, key, &models.AccessToken{Token: "old", ExpiresAt: time.Now().Add(30 * time.Second)}))

	tok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestRedisKeyLocker_Exclusive(t *testing.T) {
	client := getTestRedisClient(t)
	locker := NewRedisKeyLocker(client, 10*time.Second)
	ctx := context.Background()
	key := "car_data:" + uuid.NewString()

	unlock, err := locker.Lock(ctx, key)
	require.NoError(t, err)

	// A second holder can't get in while the first holds the key
	shortCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(shortCtx, key)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	unlock()

	unlock2, err := locker.Lock(ctx, key)
	require.NoError(t, err)
	unlock2()
}

func TestRedisTokenCache_Delete(t *testing.T) {
	client := getTestRedisClient(t)
	cache := NewRedisTokenCache(client)
	ctx := context.Background()
	key := "test-" + uuid.NewString()

	require.NoError(t, cache.Set(ctx, key, &models.AccessToken{Token: "abc", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, cache.Delete(ctx, key))

	tok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, tok)
}
