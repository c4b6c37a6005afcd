package clinic

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedStore fronts a Store with an in-process read-through cache for
// config and chat lookups. Writes through it invalidate the cached entries.
type CachedStore struct {
	*Store
	cache *cache.Cache
}

// NewCachedStore wraps store. A non-positive ttl defaults to one minute.
func NewCachedStore(store *Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedStore{Store: store, cache: cache.New(ttl, 2*ttl)}
}

func (c *CachedStore) Get(ctx context.Context, clinicID string) (*Config, error) {
	if v, ok := c.cache.Get("cfg:" + clinicID); ok {
		cfg := *v.(*Config)
		return &cfg, nil
	}
	cfg, err := c.Store.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	stored := *cfg
	c.cache.SetDefault("cfg:"+clinicID, &stored)
	return cfg, nil
}

func (c *CachedStore) Set(ctx context.Context, cfg *Config) error {
	if err := c.Store.Set(ctx, cfg); err != nil {
		return err
	}
	c.cache.Delete("cfg:" + cfg.ClinicID)
	return nil
}

// ClinicForChat caches positive lookups only so a fresh binding is seen on
// the next message.
func (c *CachedStore) ClinicForChat(ctx context.Context, chatID string) (string, bool, error) {
	if v, ok := c.cache.Get("chat:" + chatID); ok {
		return v.(string), true, nil
	}
	clinicID, ok, err := c.Store.ClinicForChat(ctx, chatID)
	if err != nil || !ok {
		return clinicID, ok, err
	}
	c.cache.SetDefault("chat:"+chatID, clinicID)
	return clinicID, true, nil
}

func (c *CachedStore) BindChat(ctx context.Context, clinicID, chatID string) error {
	previous, _, _ := c.Store.ClinicForChat(ctx, chatID)
	if err := c.Store.BindChat(ctx, clinicID, chatID); err != nil {
		return err
	}
	c.forget(chatID, clinicID, previous)
	return nil
}

func (c *CachedStore) UnbindChat(ctx context.Context, chatID string) error {
	previous, _, _ := c.Store.ClinicForChat(ctx, chatID)
	if err := c.Store.UnbindChat(ctx, chatID); err != nil {
		return err
	}
	c.forget(chatID, previous)
	return nil
}

func (c *CachedStore) forget(chatID string, clinicIDs ...string) {
	c.cache.Delete("chat:" + chatID)
	for _, id := range clinicIDs {
		if id != "" {
			c.cache.Delete("cfg:" + id)
		}
	}
}
