package rediscache

// Package rediscache provides Redis-backed caches for the auth portal.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gmrl/auth-portal/internal/domain/model"
)

// DirectoryCache caches the tenant directory listing between admin syncs, so
// repeated sync requests don't hammer the Graph API.
type DirectoryCache struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewDirectoryCache creates a cache with the given entry lifetime.
func NewDirectoryCache(client redis.UniversalClient, ttl time.Duration) *DirectoryCache {
	return &DirectoryCache{
		client: client,
		key:    "directory:users",
		ttl:    ttl,
	}
}

// Get returns the cached listing and whether one was present. A corrupt cache
// entry is treated as a miss and dropped.
func (c *DirectoryCache) Get(ctx context.Context) ([]model.DirectoryUser, bool, error) {
	data, err := c.client.Get(ctx, c.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var users []model.DirectoryUser
	if unmarshalErr := json.Unmarshal([]byte(data), &users); unmarshalErr != nil {
		_ = c.client.Del(ctx, c.key).Err()
		return nil, false, nil
	}
	return users, true, nil
}

// Set stores the listing with the configured TTL.
func (c *DirectoryCache) Set(ctx context.Context, users []model.DirectoryUser) error {
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("marshal directory listing: %w", err)
	}
	return c.client.Set(ctx, c.key, data, c.ttl).Err()
}

// Invalidate drops the cached listing.
func (c *DirectoryCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
