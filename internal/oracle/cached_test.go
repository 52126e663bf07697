package oracle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type countingClient struct {
	calls atomic.Int32
	fail  atomic.Bool
	delay time.Duration
}

func (c *countingClient) FetchPrice(ctx context.Context, address string, chainID int64) (Quote, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.fail.Load() {
		return Quote{}, unavailable("upstream down")
	}
	return Quote{Price: decimal.NewFromInt(42), Decimals: DefaultDecimals}, nil
}

func TestCachedServesFromCache(t *testing.T) {
	upstream := &countingClient{}
	c := NewCached(upstream, 16, time.Minute, time.Second)

	for i := 0; i < 3; i++ {
		if _, err := c.FetchPrice(context.Background(), "0xAA", 1); err != nil {
			t.Fatalf("fetch %d failed: %v", i, err)
		}
	}
	if upstream.calls.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", upstream.calls.Load())
	}

	c.Invalidate(1, "0xaa")
	if _, err := c.FetchPrice(context.Background(), "0xaa", 1); err != nil {
		t.Fatalf("fetch after invalidate failed: %v", err)
	}
	if upstream.calls.Load() != 2 {
		t.Fatalf("invalidate should force a refetch, got %d calls", upstream.calls.Load())
	}
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	upstream := &countingClient{}
	upstream.fail.Store(true)
	c := NewCached(upstream, 16, time.Minute, time.Second)

	if _, err := c.FetchPrice(context.Background(), "0xAA", 1); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	upstream.fail.Store(false)
	if _, err := c.FetchPrice(context.Background(), "0xAA", 1); err != nil {
		t.Fatalf("recovered upstream should succeed: %v", err)
	}
	if upstream.calls.Load() != 2 {
		t.Fatalf("expected two upstream calls, got %d", upstream.calls.Load())
	}
}

func TestCachedCollapsesConcurrentFetches(t *testing.T) {
	upstream := &countingClient{delay: 50 * time.Millisecond}
	c := NewCached(upstream, 16, time.Minute, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.FetchPrice(context.Background(), "0xAA", 1); err != nil {
				t.Errorf("concurrent fetch failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if upstream.calls.Load() > 2 {
		t.Fatalf("concurrent fetches should collapse, got %d upstream calls", upstream.calls.Load())
	}
}

func TestInstrumentPassesThrough(t *testing.T) {
	upstream := &countingClient{}
	c := Instrument(upstream, "test")
	quote, err := c.FetchPrice(context.Background(), "0xAA", 1)
	if err != nil {
		t.Fatalf("instrumented fetch failed: %v", err)
	}
	if !quote.Price.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("unexpected price %s", quote.Price)
	}
}

type contextAwareClient struct {
	calls atomic.Int32
	delay time.Duration
}

func (c *contextAwareClient) FetchPrice(ctx context.Context, address string, chainID int64) (Quote, error) {
	c.calls.Add(1)
	select {
	case <-ctx.Done():
		return Quote{}, unavailable("upstream: %v", ctx.Err())
	case <-time.After(c.delay):
		return Quote{Price: decimal.NewFromInt(7), Decimals: DefaultDecimals}, nil
	}
}

func TestCachedLeaderCancellationDoesNotFailWaiters(t *testing.T) {
	upstream := &contextAwareClient{delay: 150 * time.Millisecond}
	c := NewCached(upstream, 16, time.Minute, time.Second)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.FetchPrice(leaderCtx, "0xBB", 1)
		leaderErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	waiterDone := make(chan error, 1)
	go func() {
		quote, err := c.FetchPrice(context.Background(), "0xBB", 1)
		if err == nil && !quote.Price.Equal(decimal.NewFromInt(7)) {
			err = errors.New("unexpected price " + quote.Price.String())
		}
		waiterDone <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-leaderErr; !errors.Is(err, ErrUnavailable) {
		t.Fatalf("cancelled caller should see ErrUnavailable, got %v", err)
	}
	if err := <-waiterDone; err != nil {
		t.Fatalf("waiter should not inherit the leader's cancellation: %v", err)
	}
	if upstream.calls.Load() != 1 {
		t.Fatalf("expected one shared upstream call, got %d", upstream.calls.Load())
	}
}
