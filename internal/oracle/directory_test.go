package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testDirectory(prices PriceClient) *Directory {
	return NewDirectory([]Chain{
		{ID: 137, Name: "polygon", Feeds: []Feed{{Pair: "MATIC/USD", Address: "0xm"}}},
		{ID: 1, Name: "ethereum", Feeds: []Feed{
			{Pair: "ETH/USD", Address: "0xe"},
			{Pair: "BTC/USD", Address: "0xb"},
		}},
	}, prices, zerolog.Nop())
}

func TestDirectoryLookup(t *testing.T) {
	d := testDirectory(NewStatic(decimal.NewFromInt(1)))

	if !d.Supports(1) || d.Supports(56) {
		t.Fatal("supports should reflect configured chains")
	}
	chains := d.Chains()
	if len(chains) != 2 || chains[0].ID != 1 {
		t.Fatalf("chains should be ordered by id: %+v", chains)
	}
	pairs := d.Pairs(1)
	if len(pairs) != 2 || pairs[0] != "BTC/USD" {
		t.Fatalf("pairs should be sorted: %v", pairs)
	}
	if len(d.Pairs(56)) != 0 {
		t.Fatal("unknown chain should have no pairs")
	}
}

func TestDirectoryAvailable(t *testing.T) {
	prices := NewStatic(decimal.Zero)
	prices.SetPrice(1, "0xe", decimal.NewFromInt(2500))
	prices.SetPrice(1, "0xb", decimal.NewFromInt(45000))
	d := testDirectory(prices)

	quotes, err := d.Available(context.Background(), 1)
	if err != nil {
		t.Fatalf("available should succeed: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected two quotes, got %d", len(quotes))
	}
	if quotes[0].Description != "BTC/USD" || !quotes[0].Price.Equal(decimal.NewFromInt(45000)) {
		t.Fatalf("unexpected first quote %+v", quotes[0])
	}
	for _, q := range quotes {
		if q.Decimals != DefaultDecimals {
			t.Fatalf("decimals should be %d, got %d", DefaultDecimals, q.Decimals)
		}
	}

	empty, err := d.Available(context.Background(), 56)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("unknown chain should yield an empty list, got %v %v", empty, err)
	}
}

func TestDirectoryAvailableFailsOnFeedError(t *testing.T) {
	prices := NewStatic(decimal.Zero)
	prices.SetPrice(1, "0xe", decimal.NewFromInt(2500))
	d := testDirectory(prices)

	if _, err := d.Available(context.Background(), 1); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("missing feed price should fail the listing, got %v", err)
	}
}
