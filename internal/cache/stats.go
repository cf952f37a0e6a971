package cache

import (
	"sync/atomic"
	"time"
)

// stats атомарные счётчики, общие для всех реализаций CacheRepo
type stats struct {
	requests      int64
	hits          int64
	misses        int64
	coldLoads     int64
	invalidations int64
}

func (s *stats) hit() {
	atomic.AddInt64(&s.requests, 1)
	atomic.AddInt64(&s.hits, 1)
}

func (s *stats) miss() {
	atomic.AddInt64(&s.requests, 1)
	atomic.AddInt64(&s.misses, 1)
}

func (s *stats) coldLoad()    { atomic.AddInt64(&s.coldLoads, 1) }
func (s *stats) invalidated() { atomic.AddInt64(&s.invalidations, 1) }

func (s *stats) snapshot(keys int64) *CacheMetrics {
	m := &CacheMetrics{
		TotalRequests: atomic.LoadInt64(&s.requests),
		CacheHits:     atomic.LoadInt64(&s.hits),
		CacheMisses:   atomic.LoadInt64(&s.misses),
		ColdLoads:     atomic.LoadInt64(&s.coldLoads),
		Invalidations: atomic.LoadInt64(&s.invalidations),
		TotalKeys:     keys,
		LastUpdate:    time.Now(),
	}
	if m.TotalRequests > 0 {
		m.HitRatio = float64(m.CacheHits) / float64(m.TotalRequests)
	}
	return m
}
