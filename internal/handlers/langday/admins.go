package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const adminCacheSize = 64

type adminLister interface {
	Administrators(ctx context.Context, chatID int64) ([]int64, error)
}

// adminCache keeps chat administrator sets for a fixed TTL.
type adminCache struct {
	lister adminLister
	cache  *expirable.LRU[int64, map[int64]struct{}]
	mu     sync.Mutex
}

func newAdminCache(lister adminLister, ttl time.Duration) *adminCache {
	return &adminCache{
		lister: lister,
		cache:  expirable.NewLRU[int64, map[int64]struct{}](adminCacheSize, nil, ttl),
	}
}

func (c *adminCache) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	admins, ok := c.cache.Get(chatID)
	if !ok {
		c.mu.Lock()
		defer c.mu.Unlock()
		if admins, ok = c.cache.Get(chatID); !ok {
			ids, err := c.lister.Administrators(ctx, chatID)
			if err != nil {
				return false, err
			}
			admins = make(map[int64]struct{}, len(ids))
			for _, id := range ids {
				admins[id] = struct{}{}
			}
			c.cache.Add(chatID, admins)
		}
	}
	_, isAdmin := admins[userID]
	return isAdmin, nil
}

func (c *adminCache) Invalidate(chatID int64) {
	c.cache.Remove(chatID)
}
