package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

// Oracles prints the configured feeds of a chain with their current prices.
// A zero chainID lists the configured chains instead.
func (a *App) Oracles(ctx context.Context, chainID int64) error {
	eng, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	defer writer.Flush()

	if chainID == 0 {
		fmt.Fprintln(writer, "Chain\tName\tFeeds")
		for _, chain := range eng.directory.Chains() {
			fmt.Fprintf(writer, "%d\t%s\t%d\n", chain.ID, chain.Name, len(chain.Feeds))
		}
		return nil
	}

	quotes, err := eng.directory.Available(ctx, chainID)
	if err != nil {
		return err
	}
	if len(quotes) == 0 {
		fmt.Fprintf(writer, "no oracles configured for chain %d\n", chainID)
		return nil
	}

	fmt.Fprintln(writer, "Pair\tAddress\tPrice\tDecimals\tUpdated (UTC)")
	for _, q := range quotes {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\n",
			q.Description,
			q.Address,
			q.Price.String(),
			q.Decimals,
			time.UnixMilli(q.Timestamp).UTC().Format(time.RFC3339),
		)
	}
	return nil
}
