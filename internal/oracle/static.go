package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// StaticClient serves prices from an in-memory table. Unknown feeds get the
// fallback price, or ErrUnavailable when no fallback is set.
type StaticClient struct {
	mu       sync.RWMutex
	prices   map[string]decimal.Decimal
	fallback decimal.Decimal
	now      func() time.Time
}

// NewStatic constructs a StaticClient.
func NewStatic(fallback decimal.Decimal) *StaticClient {
	return &StaticClient{
		prices:   make(map[string]decimal.Decimal),
		fallback: fallback,
		now:      time.Now,
	}
}

// SetPrice updates the price served for a feed.
func (s *StaticClient) SetPrice(chainID int64, address string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[feedKey(chainID, address)] = price
}

// FetchPrice implements PriceClient.
func (s *StaticClient) FetchPrice(ctx context.Context, address string, chainID int64) (Quote, error) {
	if err := ctx.Err(); err != nil {
		return Quote{}, unavailable("static feed: %v", err)
	}

	s.mu.RLock()
	price, ok := s.prices[feedKey(chainID, address)]
	s.mu.RUnlock()

	if !ok {
		if s.fallback.IsZero() {
			return Quote{}, unavailable("no static price for %s on chain %d", address, chainID)
		}
		price = s.fallback
	}

	return Quote{Price: price, Timestamp: s.now().UnixMilli(), Decimals: DefaultDecimals}, nil
}

var _ PriceClient = (*StaticClient)(nil)
