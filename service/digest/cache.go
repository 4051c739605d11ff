package digest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is a single recommended item of a digest.
type Entry struct {
	ItemID string
	Name   string
	Score  float64
	Reason string
}

// Digest is the latest batch of recommendations computed for an actor.
type Digest struct {
	ActorID string

	// Kind tells whether the entries are ranked recommendations or a
	// fallback.
	Kind    string
	Entries []Entry

	SessionID   uuid.UUID
	GeneratedAt time.Time
}

// Cache keeps the latest digest of every actor in memory.
type Cache struct {
	mu      sync.RWMutex
	digests map[string]Digest
}

func NewCache() *Cache {
	return &Cache{digests: make(map[string]Digest)}
}

// Publish stores d, replacing any older digest of the same actor.
func (c *Cache) Publish(_ context.Context, d Digest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.digests[d.ActorID]; ok && cur.GeneratedAt.After(d.GeneratedAt) {
		return nil
	}
	d.Entries = append([]Entry(nil), d.Entries...)
	c.digests[d.ActorID] = d
	return nil
}

// Get returns the latest digest of actor.
func (c *Cache) Get(actor string) (Digest, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.digests[actor]
	if ok {
		d.Entries = append([]Entry(nil), d.Entries...)
	}
	return d, ok
}

// Actors lists the actors with a digest, sorted.
func (c *Cache) Actors() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.digests))
	for actor := range c.digests {
		out = append(out, actor)
	}
	sort.Strings(out)
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.digests)
}
