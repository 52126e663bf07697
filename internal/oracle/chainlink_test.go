package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestChainlinkMissingConfig(t *testing.T) {
	c := NewChainlink(ChainlinkOptions{}, zerolog.Nop())
	defer c.Close()

	if _, err := c.FetchPrice(context.Background(), "not-an-address", 1); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("invalid address should be unavailable, got %v", err)
	}

	_, err := c.FetchPrice(context.Background(), "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419", 1)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("chain without rpc url should be unavailable, got %v", err)
	}
}

func TestChainlinkUnreachableRPC(t *testing.T) {
	c := NewChainlink(ChainlinkOptions{
		RPCURLs: map[int64]string{1: "http://127.0.0.1:1"},
		Timeout: 500 * time.Millisecond,
	}, zerolog.Nop())
	defer c.Close()

	_, err := c.FetchPrice(context.Background(), "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419", 1)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("unreachable rpc should be unavailable, got %v", err)
	}
}
