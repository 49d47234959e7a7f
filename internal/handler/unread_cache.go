package handler

import (
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// UnreadCache memoizes per-user unread message counts for a short TTL.
// Handlers invalidate a user's entry on any mutation that can change it.
type UnreadCache struct {
	c *gocache.Cache
}

func NewUnreadCache(ttl time.Duration) *UnreadCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &UnreadCache{c: gocache.New(ttl, 2*ttl)}
}

func (u *UnreadCache) Get(userID uuid.UUID) (int64, bool) {
	v, ok := u.c.Get(userID.String())
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

func (u *UnreadCache) Set(userID uuid.UUID, count int64) {
	u.c.SetDefault(userID.String(), count)
}

func (u *UnreadCache) Invalidate(userIDs ...uuid.UUID) {
	for _, id := range userIDs {
		u.c.Delete(id.String())
	}
}

// Flush drops every entry, used when a cascade touches unknown users.
func (u *UnreadCache) Flush() {
	u.c.Flush()
}
