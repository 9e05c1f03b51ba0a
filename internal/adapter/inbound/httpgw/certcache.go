package httpgw

import (
	"container/list"
	"crypto/tls"
	"log/slog"
	"sync"
	"time"
)

// defaultMaxCertCacheEntries bounds unattended growth of the leaf-cert
// cache: a proxy user who visits thousands of distinct HTTPS hosts over a
// long-running session must not accumulate an unbounded in-memory
// certificate set.
const defaultMaxCertCacheEntries = 2048

// cacheEntry holds a cached TLS certificate and its expiration time.
type cacheEntry struct {
	domain    string
	cert      *tls.Certificate
	expiresAt time.Time
}

// CertCache is a thread-safe per-domain TLS certificate cache with LRU
// eviction above a configured entry ceiling. On cache miss it delegates to
// a CAManager to generate a new leaf cert. Entries also expire after the
// configured TTL, at which point the next access triggers regeneration.
//
// GetCert takes the write lock on every call, because even a cache hit
// moves the entry to the front of the LRU list; the read lock is used only
// by Size.
type CertCache struct {
	mu      sync.RWMutex
	index   map[string]*list.Element // domain -> element in lru
	lru     *list.List               // front = most recently used
	ca      *CAManager
	ttl     time.Duration
	maxSize int
	logger  *slog.Logger
}

// NewCertCache creates a new CertCache backed by the given CAManager. The
// ttl controls how long cached certificates remain valid before
// regeneration on the next access. An optional maxEntries caps the number
// of distinct domains cached at once (default defaultMaxCertCacheEntries);
// the least-recently-used domain is evicted once the ceiling is exceeded.
func NewCertCache(ca *CAManager, ttl time.Duration, logger *slog.Logger, maxEntries ...int) *CertCache {
	max := defaultMaxCertCacheEntries
	if len(maxEntries) > 0 && maxEntries[0] > 0 {
		max = maxEntries[0]
	}
	return &CertCache{
		index:   make(map[string]*list.Element),
		lru:     list.New(),
		ca:      ca,
		ttl:     ttl,
		maxSize: max,
		logger:  logger,
	}
}

// GetCert returns a TLS certificate for the given domain.
// If the domain is cached and not expired, the cached cert is returned
// (fast path). Otherwise a new cert is generated via the CAManager and
// cached. Every access moves the entry to the front of the LRU list, so
// the cache always takes a write lock rather than the classic
// RLock-then-upgrade pattern.
func (cc *CertCache) GetCert(domain string) (*tls.Certificate, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if elem, ok := cc.index[domain]; ok {
		entry := elem.Value.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			cc.lru.MoveToFront(elem)
			cc.logger.Debug("cert cache hit", "domain", domain)
			return entry.cert, nil
		}
		cc.lru.Remove(elem)
		delete(cc.index, domain)
	}

	// Generate new cert
	cc.logger.Debug("cert cache miss, generating", "domain", domain)
	cert, err := cc.ca.GenerateCert(domain)
	if err != nil {
		return nil, err
	}

	entry := &cacheEntry{
		domain:    domain,
		cert:      cert,
		expiresAt: time.Now().Add(cc.ttl),
	}
	cc.index[domain] = cc.lru.PushFront(entry)

	cc.evictLocked()

	return cert, nil
}

// evictLocked removes least-recently-used entries until the cache is at or
// under maxSize. Caller must hold cc.mu for writing.
func (cc *CertCache) evictLocked() {
	for len(cc.index) > cc.maxSize {
		oldest := cc.lru.Back()
		if oldest == nil {
			return
		}
		entry := oldest.Value.(*cacheEntry)
		cc.lru.Remove(oldest)
		delete(cc.index, entry.domain)
		cc.logger.Debug("cert cache evicted LRU entry", "domain", entry.domain)
	}
}

// Size returns the current number of cached certificates.
func (cc *CertCache) Size() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.index)
}

// Clear removes all cached certificates. Useful for CA rotation.
func (cc *CertCache) Clear() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.index = make(map[string]*list.Element)
	cc.lru = list.New()
}
