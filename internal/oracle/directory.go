package oracle

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Feed maps a pair label to its oracle address.
type Feed struct {
	Pair    string
	Address string
	// Price seeds the static provider; ignored by live providers.
	Price decimal.Decimal
}

// Chain is one network's oracle table.
type Chain struct {
	ID     int64
	Name   string
	RPCURL string
	Feeds  []Feed
}

// OracleQuote describes an available feed with its current price.
type OracleQuote struct {
	Address     string          `json:"address"`
	Price       decimal.Decimal `json:"price"`
	Timestamp   int64           `json:"timestamp"`
	Decimals    int32           `json:"decimals"`
	Description string          `json:"description"`
}

// Directory resolves the known feeds per chain.
type Directory struct {
	chains map[int64]Chain
	prices PriceClient
	logger zerolog.Logger
}

// NewDirectory indexes chains by id; feeds are kept sorted by pair label.
func NewDirectory(chains []Chain, prices PriceClient, logger zerolog.Logger) *Directory {
	indexed := make(map[int64]Chain, len(chains))
	for _, chain := range chains {
		feeds := append([]Feed(nil), chain.Feeds...)
		sort.Slice(feeds, func(i, j int) bool { return feeds[i].Pair < feeds[j].Pair })
		chain.Feeds = feeds
		indexed[chain.ID] = chain
	}
	return &Directory{
		chains: indexed,
		prices: prices,
		logger: logger.With().Str("component", "oracle_directory").Logger(),
	}
}

// Supports reports whether chainID has an oracle table.
func (d *Directory) Supports(chainID int64) bool {
	_, ok := d.chains[chainID]
	return ok
}

// Chains lists the configured chains ordered by id.
func (d *Directory) Chains() []Chain {
	out := make([]Chain, 0, len(d.chains))
	for _, chain := range d.chains {
		out = append(out, chain)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pairs lists the pair labels configured for chainID.
func (d *Directory) Pairs(chainID int64) []string {
	chain, ok := d.chains[chainID]
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(chain.Feeds))
	for _, feed := range chain.Feeds {
		out = append(out, feed.Pair)
	}
	return out
}

// Available fetches the current price of every feed on chainID.
// Unknown chains yield an empty list.
func (d *Directory) Available(ctx context.Context, chainID int64) ([]OracleQuote, error) {
	chain, ok := d.chains[chainID]
	if !ok {
		return []OracleQuote{}, nil
	}

	quotes := make([]OracleQuote, len(chain.Feeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, feed := range chain.Feeds {
		g.Go(func() error {
			quote, err := d.prices.FetchPrice(gctx, feed.Address, chainID)
			if err != nil {
				return fmt.Errorf("%s: %w", feed.Pair, err)
			}
			quotes[i] = OracleQuote{
				Address:     feed.Address,
				Price:       quote.Price,
				Timestamp:   quote.Timestamp,
				Decimals:    DefaultDecimals,
				Description: feed.Pair,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.logger.Warn().Err(err).Int64("chain_id", chainID).Msg("oracle listing failed")
		return nil, err
	}
	return quotes, nil
}
