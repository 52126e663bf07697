package predicate

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a predicate.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInvalid   Status = "INVALID"
	StatusExpired   Status = "EXPIRED"
	StatusExecuted  Status = "EXECUTED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusExpired, StatusExecuted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Record is one registered price condition. Timestamps are epoch milliseconds.
type Record struct {
	ID             string          `json:"predicateId"`
	ChainID        int64           `json:"chainId"`
	OracleAddress  string          `json:"oracleAddress"`
	Tolerance      decimal.Decimal `json:"tolerance"`
	OwnerAddress   string          `json:"ownerAddress"`
	TokenAddress   string          `json:"tokenAddress,omitempty"`
	PriceThreshold decimal.Decimal `json:"priceThreshold"`
	CurrentPrice   decimal.Decimal `json:"currentPrice"`
	IsValid        bool            `json:"isValid"`
	Status         Status          `json:"status"`
	CreatedAt      int64           `json:"createdAt"`
	ExpiresAt      *int64          `json:"expiresAt,omitempty"`
	ExecutionRef   string          `json:"executionRef,omitempty"`
}

func (r Record) clone() Record {
	if r.ExpiresAt != nil {
		expires := *r.ExpiresAt
		r.ExpiresAt = &expires
	}
	return r
}

// CreateRequest carries the parameters of a new predicate. Deadline is unix seconds.
type CreateRequest struct {
	ChainID        int64               `json:"chainId"`
	OracleAddress  string              `json:"oracleAddress"`
	Tolerance      decimal.NullDecimal `json:"tolerance"`
	OwnerAddress   string              `json:"ownerAddress"`
	TokenAddress   string              `json:"tokenAddress,omitempty"`
	PriceThreshold decimal.NullDecimal `json:"priceThreshold"`
	Deadline       *int64              `json:"deadline,omitempty"`
}

// Validation is the result of re-evaluating a predicate against the oracle.
type Validation struct {
	PredicateID    string          `json:"predicateId"`
	CurrentPrice   decimal.Decimal `json:"currentPrice"`
	ThresholdPrice decimal.Decimal `json:"thresholdPrice"`
	Tolerance      decimal.Decimal `json:"tolerance"`
	IsValid        bool            `json:"isValid"`
	Deviation      decimal.Decimal `json:"deviation"`
	Status         Status          `json:"status"`
	Timestamp      int64           `json:"timestamp"`
}

// HistoryEntry is the public projection of a record returned by history queries.
type HistoryEntry struct {
	ID            string          `json:"predicateId"`
	ChainID       int64           `json:"chainId"`
	OracleAddress string          `json:"oracleAddress"`
	Tolerance     decimal.Decimal `json:"tolerance"`
	Status        Status          `json:"status"`
	CreatedAt     int64           `json:"createdAt"`
	OwnerAddress  string          `json:"ownerAddress"`
}

// Observation is one persisted validation outcome.
type Observation struct {
	PredicateID  string
	Price        decimal.Decimal
	Threshold    decimal.Decimal
	DeviationPct decimal.Decimal
	IsValid      bool
	ObservedAt   time.Time
}

// SweepResult summarises a batch revalidation.
type SweepResult struct {
	Validated int
	Flipped   int
	Expired   int
	Failed    int
}
