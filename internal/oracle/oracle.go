package oracle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable covers non-responses, timeouts and unknown feeds.
var ErrUnavailable = errors.New("oracle unavailable")

// DefaultDecimals is the precision reported for USD feeds.
const DefaultDecimals int32 = 8

// DefaultRequestTimeout bounds a single upstream fetch.
const DefaultRequestTimeout = 10 * time.Second

// Quote is one oracle observation. Timestamp is epoch milliseconds.
type Quote struct {
	Price     decimal.Decimal
	Timestamp int64
	Decimals  int32
}

// PriceClient fetches the current price of a feed.
type PriceClient interface {
	FetchPrice(ctx context.Context, address string, chainID int64) (Quote, error)
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

func feedKey(chainID int64, address string) string {
	return strconv.FormatInt(chainID, 10) + ":" + strings.ToLower(strings.TrimSpace(address))
}
