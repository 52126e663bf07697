package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// HTTPOptions parameterise the price gateway client.
type HTTPOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// HTTPClient queries a REST price gateway at {base}/prices/{chainId}/{address}.
type HTTPClient struct {
	opts    HTTPOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHTTP constructs a gateway client.
func NewHTTP(opts HTTPOptions, logger zerolog.Logger) *HTTPClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &HTTPClient{
		opts:    opts,
		logger:  logger.With().Str("component", "http_oracle").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// FetchPrice implements PriceClient.
func (h *HTTPClient) FetchPrice(ctx context.Context, address string, chainID int64) (Quote, error) {
	if h.baseURL == "" {
		return Quote{}, unavailable("price gateway base url not configured")
	}
	if strings.TrimSpace(address) == "" {
		return Quote{}, unavailable("feed address required")
	}

	endpoint := fmt.Sprintf("%s/prices/%d/%s", h.baseURL, chainID, url.PathEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, unavailable("create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "predicated/1.0")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Quote{}, unavailable("send request: %v", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, unavailable("read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, parseHTTPError(resp.StatusCode, payload))
	}

	var res priceResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return Quote{}, unavailable("decode response: %v", err)
	}

	quote := Quote{Price: res.Price, Timestamp: res.Timestamp, Decimals: res.Decimals}
	if quote.Timestamp == 0 {
		quote.Timestamp = time.Now().UnixMilli()
	}
	if quote.Decimals == 0 {
		quote.Decimals = DefaultDecimals
	}
	return quote, nil
}

type priceResponse struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
	Decimals  int32           `json:"decimals"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("price gateway error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("price gateway error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("price gateway error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("price gateway error (%d)", status)
}

var _ PriceClient = (*HTTPClient)(nil)
