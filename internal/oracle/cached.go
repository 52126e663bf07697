package oracle

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"price-predicates/internal/metrics"
)

// CachedClient memoises quotes for a short TTL and collapses concurrent
// fetches of the same feed into one upstream call. Failures are not cached.
type CachedClient struct {
	next    PriceClient
	cache   *expirable.LRU[string, Quote]
	group   singleflight.Group
	timeout time.Duration
}

// NewCached wraps next with a TTL cache of the given size. The shared
// upstream fetch is detached from any single caller and bounded by timeout.
func NewCached(next PriceClient, size int, ttl, timeout time.Duration) *CachedClient {
	if size <= 0 {
		size = 1024
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &CachedClient{
		next:    next,
		cache:   expirable.NewLRU[string, Quote](size, nil, ttl),
		timeout: timeout,
	}
}

// FetchPrice implements PriceClient.
func (c *CachedClient) FetchPrice(ctx context.Context, address string, chainID int64) (Quote, error) {
	key := feedKey(chainID, address)
	if quote, ok := c.cache.Get(key); ok {
		metrics.OracleCacheHits.Inc()
		return quote, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		quote, err := c.next.FetchPrice(fetchCtx, address, chainID)
		if err != nil {
			return Quote{}, err
		}
		c.cache.Add(key, quote)
		return quote, nil
	})
	select {
	case <-ctx.Done():
		return Quote{}, unavailable("fetch %s on chain %d: %v", address, chainID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Quote{}, res.Err
		}
		return res.Val.(Quote), nil
	}
}

// Invalidate drops any cached quote for the feed.
func (c *CachedClient) Invalidate(chainID int64, address string) {
	c.cache.Remove(feedKey(chainID, address))
}

var _ PriceClient = (*CachedClient)(nil)

// InstrumentedClient records fetch latency and failures per provider.
type InstrumentedClient struct {
	next     PriceClient
	provider string
}

// Instrument wraps next with Prometheus instrumentation.
func Instrument(next PriceClient, provider string) *InstrumentedClient {
	return &InstrumentedClient{next: next, provider: provider}
}

// FetchPrice implements PriceClient.
func (i *InstrumentedClient) FetchPrice(ctx context.Context, address string, chainID int64) (Quote, error) {
	started := time.Now()
	quote, err := i.next.FetchPrice(ctx, address, chainID)
	metrics.OracleFetchDuration.WithLabelValues(i.provider).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.OracleFetchErrors.WithLabelValues(i.provider).Inc()
	}
	return quote, err
}

var _ PriceClient = (*InstrumentedClient)(nil)
