package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

// History prints one page of an owner's predicates, newest first.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	eng, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	limit := opts.Limit
	if limit <= 0 {
		limit = a.Config.Predicates.DefaultPageSize
	}

	entries, err := eng.history.Query(ctx, opts.Owner, limit, opts.Page)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.Out, "no predicates found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Created (UTC)\tID\tChain\tOracle\tTolerance%\tStatus")
	for _, entry := range entries {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%s\t%s\t%s\n",
			time.UnixMilli(entry.CreatedAt).UTC().Format(time.RFC3339),
			entry.ID,
			entry.ChainID,
			entry.OracleAddress,
			entry.Tolerance.StringFixed(3),
			entry.Status,
		)
	}
	return writer.Flush()
}
