package bookmark

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/surveillance-api/pkg/metrics"
)

// Sessions hands out one Store per session id. Idle sessions expire after
// ttl, taking their in-memory view with them; durable data is unaffected.
type Sessions struct {
	cache   *cache.Cache
	newFn   func() *Store
	metrics *metrics.Metrics
}

func NewSessions(ttl, cleanupInterval time.Duration, newStore func() *Store, m *metrics.Metrics) *Sessions {
	if m == nil {
		m = metrics.New("bookmarks", nil)
	}

	s := &Sessions{
		cache:   cache.New(ttl, cleanupInterval),
		newFn:   newStore,
		metrics: m,
	}
	s.cache.OnEvicted(func(string, interface{}) {
		s.metrics.ActiveSessions.Set(float64(s.cache.ItemCount()))
	})
	return s
}

// Get returns the session's store, creating it on first use. Every call
// pushes the session's expiry back.
func (s *Sessions) Get(sessionID string) *Store {
	if v, found := s.cache.Get(sessionID); found {
		store := v.(*Store)
		s.cache.Set(sessionID, store, cache.DefaultExpiration)
		return store
	}

	store := s.newFn()
	if err := s.cache.Add(sessionID, store, cache.DefaultExpiration); err != nil {
		// Lost the race with a concurrent first request of the same session.
		if v, found := s.cache.Get(sessionID); found {
			return v.(*Store)
		}
		s.cache.Set(sessionID, store, cache.DefaultExpiration)
	}
	s.metrics.ActiveSessions.Set(float64(s.cache.ItemCount()))
	return store
}

// Drop forgets a session's view.
func (s *Sessions) Drop(sessionID string) {
	s.cache.Delete(sessionID)
}

func (s *Sessions) Count() int {
	return s.cache.ItemCount()
}
