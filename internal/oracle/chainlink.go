package oracle

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	aggregatorV3ABIJSON = `[
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}
]`
)

var (
	aggregatorV3ABI abi.ABI
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorV3ABIJSON))
	if err != nil {
		panic("failed to parse AggregatorV3 ABI: " + err.Error())
	}
	aggregatorV3ABI = parsed
}

// ChainlinkOptions parameterise the on-chain feed client.
type ChainlinkOptions struct {
	RPCURLs map[int64]string
	Timeout time.Duration
}

// ChainlinkClient reads AggregatorV3 feeds over JSON-RPC.
type ChainlinkClient struct {
	opts      ChainlinkOptions
	logger    zerolog.Logger
	clients   map[int64]*ethclient.Client
	decimals  map[string]uint8
	clientMux sync.Mutex
}

// NewChainlink builds a Chainlink feed client.
func NewChainlink(opts ChainlinkOptions, logger zerolog.Logger) *ChainlinkClient {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}
	return &ChainlinkClient{
		opts:     opts,
		logger:   logger.With().Str("component", "chainlink_oracle").Logger(),
		clients:  make(map[int64]*ethclient.Client),
		decimals: make(map[string]uint8),
	}
}

// FetchPrice calls latestRoundData on the aggregator at address.
func (c *ChainlinkClient) FetchPrice(ctx context.Context, address string, chainID int64) (Quote, error) {
	if !common.IsHexAddress(address) {
		return Quote{}, unavailable("invalid feed address %q", address)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	client, err := c.getClient(ctx, chainID)
	if err != nil {
		return Quote{}, err
	}

	feed := common.HexToAddress(address)
	decimals, err := c.feedDecimals(ctx, client, chainID, feed)
	if err != nil {
		return Quote{}, unavailable("decimals %s: %v", address, err)
	}

	payload, err := aggregatorV3ABI.Pack("latestRoundData")
	if err != nil {
		return Quote{}, unavailable("pack latestRoundData: %v", err)
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: payload}, nil)
	if err != nil {
		return Quote{}, unavailable("latestRoundData %s: %v", address, err)
	}

	outputs, err := aggregatorV3ABI.Unpack("latestRoundData", res)
	if err != nil {
		return Quote{}, unavailable("unpack latestRoundData: %v", err)
	}
	if len(outputs) != 5 {
		return Quote{}, unavailable("unexpected latestRoundData response")
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return Quote{}, unavailable("failed to decode latestRoundData answer")
	}
	updatedAt, ok := outputs[3].(*big.Int)
	if !ok {
		return Quote{}, unavailable("failed to decode latestRoundData updatedAt")
	}

	return Quote{
		Price:     decimal.NewFromBigInt(answer, -int32(decimals)),
		Timestamp: updatedAt.Int64() * 1000,
		Decimals:  int32(decimals),
	}, nil
}

func (c *ChainlinkClient) feedDecimals(ctx context.Context, client *ethclient.Client, chainID int64, feed common.Address) (uint8, error) {
	key := feedKey(chainID, feed.Hex())

	c.clientMux.Lock()
	cached, ok := c.decimals[key]
	c.clientMux.Unlock()
	if ok {
		return cached, nil
	}

	payload, err := aggregatorV3ABI.Pack("decimals")
	if err != nil {
		return 0, err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: payload}, nil)
	if err != nil {
		return 0, err
	}
	outputs, err := aggregatorV3ABI.Unpack("decimals", res)
	if err != nil {
		return 0, err
	}
	if len(outputs) != 1 {
		return 0, errors.New("unexpected decimals response")
	}
	decimals, ok := outputs[0].(uint8)
	if !ok {
		return 0, errors.New("failed to decode decimals output")
	}

	c.clientMux.Lock()
	c.decimals[key] = decimals
	c.clientMux.Unlock()
	return decimals, nil
}

func (c *ChainlinkClient) getClient(ctx context.Context, chainID int64) (*ethclient.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if client, ok := c.clients[chainID]; ok {
		return client, nil
	}

	rpcURL := c.opts.RPCURLs[chainID]
	if rpcURL == "" {
		return nil, unavailable("no rpc url configured for chain %d", chainID)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, unavailable("dial chain %d: %v", chainID, err)
	}
	c.logger.Debug().Int64("chain_id", chainID).Msg("connected to rpc endpoint")
	c.clients[chainID] = client
	return client, nil
}

// Close releases all RPC connections.
func (c *ChainlinkClient) Close() {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()
	for id, client := range c.clients {
		client.Close()
		delete(c.clients, id)
	}
}

var _ PriceClient = (*ChainlinkClient)(nil)
