package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Class selects which tier a request is billed against.
type Class int

const (
	// ClassGeneral covers ordinary API traffic.
	ClassGeneral Class = iota
	// ClassAuth covers login, registration, and refresh routes.
	ClassAuth
)

/// Tier is one token-bucket configuration: sustained rate plus burst.
type Tier struct {
	Rate  rate.Limit
	Burst int
}

// Config holds both tiers and the eviction policy for idle buckets.
type Config struct {
	General Tier
	Auth    Tier
	// IdleTimeout is the time-to-idle after which an address's bucket is
	// dropped. Zero selects a default of ten minutes.
	IdleTimeout time.Duration
	// SweepInterval is how often the eviction pass runs. Zero selects one
	// minute.
	SweepInterval time.Duration
}

const shardCount = 64

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*entry
}

type tierBuckets struct {
	tier   Tier
	shards [shardCount]shard
}

// Limiter is a dual-tier per-address throttle. It is safe for concurrent
// use; distinct addresses land on distinct shards and never serialize.
type Limiter struct {
	general *tierBuckets
	auth    *tierBuckets

	idleTimeout time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// New builds a Limiter and starts the background eviction sweep.
// Call [Limiter.Close] to stop the sweep.
func New(cfg Config) *Limiter {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	l := &Limiter{
		general:     newTierBuckets(cfg.General),
		auth:        newTierBuckets(cfg.Auth),
		idleTimeout: cfg.IdleTimeout,
		stop:        make(chan struct{}),
	}

	go l.sweepLoop(cfg.SweepInterval)
	return l
}

func newTierBuckets(tier Tier) *tierBuckets {
	tb := &tierBuckets{tier: tier}
	for i := range tb.shards {
		tb.shards[i].buckets = make(map[string]*entry)
	}
	return tb
}

// Allow consumes one token from the address's bucket in the given class.
// It reports false when the bucket is exhausted.
func (l *Limiter) Allow(class Class, addr string) bool {
	return l.allowAt(class, addr, time.Now())
}

// Close stops the eviction sweep. Buckets remain usable afterwards.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) allowAt(class Class, addr string, now time.Time) bool {
	tb := l.general
	if class == ClassAuth {
		tb = l.auth
	}

	s := &tb.shards[shardFor(addr)]
	s.mu.Lock()
	e, ok := s.buckets[addr]
	if !ok {
		e = &entry{lim: rate.NewLimiter(tb.tier.Rate, tb.tier.Burst)}
		s.buckets[addr] = e
	}
	e.lastSeen = now
	s.mu.Unlock()

	// The limiter itself is concurrency-safe; consuming outside the shard
	// lock keeps unrelated addresses from waiting on each other.
	return e.lim.AllowN(now, 1)
}

func (l *Limiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.evictIdle(now)
		}
	}
}

func (l *Limiter) evictIdle(now time.Time) {
	cutoff := now.Add(-l.idleTimeout)
	for _, tb := range []*tierBuckets{l.general, l.auth} {
		for i := range tb.shards {
			s := &tb.shards[i]
			s.mu.Lock()
			for addr, e := range s.buckets {
				if e.lastSeen.Before(cutoff) {
					delete(s.buckets, addr)
				}
			}
			s.mu.Unlock()
		}
	}
}

func shardFor(addr string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(addr))
	return h.Sum32() % shardCount
}
