package predicate

import (
	"context"
	"sort"
	"strings"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// History answers paginated per-owner lookups. It never mutates the store.
type History struct {
	store   Store
	maxSize int
}

// NewHistory builds a History over store; maxPageSize<=0 uses MaxPageSize.
func NewHistory(store Store, maxPageSize int) *History {
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}
	return &History{store: store, maxSize: maxPageSize}
}

// Query returns owner's predicates newest first. Page is 1-indexed; limit and
// page below 1 are clamped to 1 and limit is capped at the page size ceiling.
func (h *History) Query(ctx context.Context, owner string, limit, page int) (entries []HistoryEntry, err error) {
	defer observe("history", &err)

	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, newError(KindValidation, "ownerAddress is required")
	}
	if limit < 1 {
		limit = 1
	}
	if limit > h.maxSize {
		limit = h.maxSize
	}
	if page < 1 {
		page = 1
	}

	records, err := h.ownedBy(ctx, owner)
	if err != nil {
		return nil, wrapError(KindInternal, err, "list predicates for %s", owner)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt == records[j].CreatedAt {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt > records[j].CreatedAt
	})

	entries = make([]HistoryEntry, 0, limit)
	if len(records) == 0 || page-1 > (len(records)-1)/limit {
		return entries, nil
	}
	skip := (page - 1) * limit
	end := skip + limit
	if end > len(records) {
		end = len(records)
	}
	for _, rec := range records[skip:end] {
		entries = append(entries, HistoryEntry{
			ID:            rec.ID,
			ChainID:       rec.ChainID,
			OracleAddress: rec.OracleAddress,
			Tolerance:     rec.Tolerance,
			Status:        rec.Status,
			CreatedAt:     rec.CreatedAt,
			OwnerAddress:  rec.OwnerAddress,
		})
	}
	return entries, nil
}

func (h *History) ownedBy(ctx context.Context, owner string) ([]Record, error) {
	if lister, ok := h.store.(OwnerLister); ok {
		return lister.ListByOwner(ctx, owner)
	}
	all, err := h.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0)
	for _, rec := range all {
		if strings.EqualFold(rec.OwnerAddress, owner) {
			out = append(out, rec)
		}
	}
	return out, nil
}
