package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vibast-solutions/ms-go-3ds-gateway/app/entity"
)

const settingsCacheKeyPrefix = "gateway:settings:"

// SettingsCache is an optional read-through cache in front of the settings
// table. A miss is reported as (nil, nil); resolver treats cache failures as
// misses. A nil *SettingsCache is a valid no-op cache, so callers can wire
// it unconditionally whether or not Redis is configured.
type SettingsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSettingsCache(client *redis.Client, ttl time.Duration) *SettingsCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SettingsCache{client: client, ttl: ttl}
}

func (c *SettingsCache) Get(ctx context.Context, merchantID string) (*entity.GatewaySettings, error) {
	if c == nil {
		return nil, nil
	}
	data, err := c.client.Get(ctx, settingsCacheKeyPrefix+merchantID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var settings entity.GatewaySettings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (c *SettingsCache) Set(ctx context.Context, merchantID string, settings *entity.GatewaySettings) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, settingsCacheKeyPrefix+merchantID, data, c.ttl).Err()
}

func (c *SettingsCache) Invalidate(ctx context.Context, merchantID string) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, settingsCacheKeyPrefix+merchantID).Err()
}
