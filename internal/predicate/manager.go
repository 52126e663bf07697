package predicate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-predicates/internal/metrics"
	"price-predicates/internal/oracle"
)

// Tolerance bounds in percent.
var (
	MinTolerance = decimal.RequireFromString("0.1")
	MaxTolerance = decimal.NewFromInt(10)
)

const defaultFetchTimeout = 10 * time.Second

// ChainSupport reports whether a chain has a known oracle table.
type ChainSupport interface {
	Supports(chainID int64) bool
}

// TransitionHook is invoked after a validation flips a record from ACTIVE to INVALID.
type TransitionHook func(ctx context.Context, rec Record, v Validation)

// Option customises a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithToleranceBounds overrides the accepted tolerance range.
func WithToleranceBounds(min, max decimal.Decimal) Option {
	return func(m *Manager) {
		m.minTolerance = min
		m.maxTolerance = max
	}
}

// WithFetchTimeout bounds every oracle call made by the manager.
func WithFetchTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.fetchTimeout = d
		}
	}
}

// WithRecorder appends every successful validation to rec.
func WithRecorder(rec ObservationRecorder) Option {
	return func(m *Manager) { m.recorder = rec }
}

// WithTransitionHook registers a hook for ACTIVE to INVALID flips.
func WithTransitionHook(hook TransitionHook) Option {
	return func(m *Manager) { m.hooks = append(m.hooks, hook) }
}

// Manager owns every mutation of the predicate store.
type Manager struct {
	store        Store
	prices       oracle.PriceClient
	chains       ChainSupport
	recorder     ObservationRecorder
	hooks        []TransitionHook
	locks        *recordLocks
	now          func() time.Time
	minTolerance decimal.Decimal
	maxTolerance decimal.Decimal
	fetchTimeout time.Duration
	logger       zerolog.Logger
}

// NewManager wires the lifecycle manager.
func NewManager(store Store, prices oracle.PriceClient, chains ChainSupport, logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		prices:       prices,
		chains:       chains,
		locks:        newRecordLocks(),
		now:          time.Now,
		minTolerance: MinTolerance,
		maxTolerance: MaxTolerance,
		fetchTimeout: defaultFetchTimeout,
		logger:       logger.With().Str("component", "predicate_manager").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create validates req, observes the oracle price and stores an ACTIVE record.
// All violated constraints are reported together.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (rec Record, err error) {
	defer observe("create", &err)

	now := m.now()
	if msgs := m.checkCreate(req, now); len(msgs) > 0 {
		return Record{}, &Error{Kind: KindValidation, Messages: msgs}
	}
	if req.PriceThreshold.Valid && !req.PriceThreshold.Decimal.IsPositive() {
		return Record{}, newError(KindInvalidThreshold, "priceThreshold must be greater than zero")
	}

	address := strings.TrimSpace(req.OracleAddress)
	quote, err := m.fetch(ctx, address, req.ChainID)
	if err != nil {
		return Record{}, err
	}

	threshold := quote.Price
	if req.PriceThreshold.Valid {
		threshold = req.PriceThreshold.Decimal
	}
	if !threshold.IsPositive() {
		return Record{}, newError(KindInvalidThreshold, "oracle price %s cannot serve as threshold", threshold.String())
	}

	rec = Record{
		ID:             NewID(),
		ChainID:        req.ChainID,
		OracleAddress:  address,
		Tolerance:      req.Tolerance.Decimal,
		OwnerAddress:   strings.TrimSpace(req.OwnerAddress),
		TokenAddress:   strings.TrimSpace(req.TokenAddress),
		PriceThreshold: threshold,
		CurrentPrice:   quote.Price,
		IsValid:        true,
		Status:         StatusActive,
		CreatedAt:      now.UnixMilli(),
	}
	if req.Deadline != nil {
		expires := *req.Deadline * 1000
		rec.ExpiresAt = &expires
	}

	if err := m.store.Put(ctx, rec); err != nil {
		return Record{}, wrapError(KindInternal, err, "store predicate")
	}

	m.logger.Info().Str("predicate_id", rec.ID).
		Int64("chain_id", rec.ChainID).
		Str("oracle", rec.OracleAddress).
		Str("threshold", rec.PriceThreshold.String()).
		Str("tolerance", rec.Tolerance.String()).
		Msg("predicate created")
	return rec, nil
}

// maxDeadline keeps deadline*1000 within int64 milliseconds.
const maxDeadline = math.MaxInt64 / 1000

func (m *Manager) checkCreate(req CreateRequest, now time.Time) []string {
	var msgs []string
	if req.ChainID == 0 {
		msgs = append(msgs, "chainId is required")
	} else if m.chains == nil || !m.chains.Supports(req.ChainID) {
		msgs = append(msgs, fmt.Sprintf("chainId %d is not supported", req.ChainID))
	}
	if strings.TrimSpace(req.OracleAddress) == "" {
		msgs = append(msgs, "oracleAddress is required")
	}
	if !req.Tolerance.Valid {
		msgs = append(msgs, "tolerance is required")
	} else if req.Tolerance.Decimal.LessThan(m.minTolerance) || req.Tolerance.Decimal.GreaterThan(m.maxTolerance) {
		msgs = append(msgs, fmt.Sprintf("tolerance must be between %s and %s percent", m.minTolerance, m.maxTolerance))
	}
	if strings.TrimSpace(req.OwnerAddress) == "" {
		msgs = append(msgs, "ownerAddress is required")
	}
	if req.Deadline != nil {
		switch {
		case *req.Deadline <= now.Unix():
			msgs = append(msgs, "deadline must be in the future")
		case *req.Deadline > maxDeadline:
			msgs = append(msgs, fmt.Sprintf("deadline must not exceed %d", maxDeadline))
		}
	}
	return msgs
}

// Validate re-evaluates the stored threshold against a fresh oracle price and
// writes back currentPrice, isValid and status. On oracle failure the record
// is left untouched.
func (m *Manager) Validate(ctx context.Context, id string) (v Validation, err error) {
	defer observe("validate", &err)

	var (
		rec     Record
		flipped bool
	)
	func() {
		unlock := m.locks.lock(id)
		defer unlock()
		rec, v, flipped, err = m.validateLocked(ctx, id)
	}()
	if err != nil {
		return Validation{}, err
	}

	if flipped {
		for _, hook := range m.hooks {
			hook(ctx, rec, v)
		}
	}
	return v, nil
}

func (m *Manager) validateLocked(ctx context.Context, id string) (Record, Validation, bool, error) {
	rec, err := m.load(ctx, id)
	if err != nil {
		return Record{}, Validation{}, false, err
	}
	if rec.Status.Terminal() {
		return Record{}, Validation{}, false, newError(KindInvalidState, "predicate %s is %s", id, rec.Status)
	}

	now := m.now()
	if IsExpired(rec, now) {
		if err := m.transition(ctx, &rec, StatusExpired); err != nil {
			return Record{}, Validation{}, false, err
		}
		return Record{}, Validation{}, false, newError(KindInvalidState, "predicate %s expired", id)
	}

	quote, err := m.fetch(ctx, rec.OracleAddress, rec.ChainID)
	if err != nil {
		return Record{}, Validation{}, false, err
	}

	verdict, err := Evaluate(quote.Price, rec.PriceThreshold, rec.Tolerance)
	if err != nil {
		return Record{}, Validation{}, false, err
	}

	prev := rec.Status
	next := StatusInvalid
	if verdict.IsValid {
		next = StatusActive
	}
	rec.CurrentPrice = quote.Price
	rec.IsValid = verdict.IsValid
	rec.Status = next
	if err := m.store.Put(ctx, rec); err != nil {
		return Record{}, Validation{}, false, wrapError(KindInternal, err, "store predicate")
	}
	if prev != next {
		metrics.PredicateTransitions.WithLabelValues(string(prev), string(next)).Inc()
	}

	v := Validation{
		PredicateID:    rec.ID,
		CurrentPrice:   quote.Price,
		ThresholdPrice: rec.PriceThreshold,
		Tolerance:      rec.Tolerance,
		IsValid:        verdict.IsValid,
		Deviation:      verdict.DeviationPct,
		Status:         next,
		Timestamp:      now.UnixMilli(),
	}

	if m.recorder != nil {
		obs := Observation{
			PredicateID:  rec.ID,
			Price:        quote.Price,
			Threshold:    rec.PriceThreshold,
			DeviationPct: verdict.DeviationPct,
			IsValid:      verdict.IsValid,
			ObservedAt:   now.UTC(),
		}
		if err := m.recorder.RecordObservation(ctx, obs); err != nil {
			m.logger.Error().Err(err).Str("predicate_id", rec.ID).Msg("failed to record observation")
		}
	}

	m.logger.Debug().Str("predicate_id", rec.ID).
		Str("price", quote.Price.String()).
		Str("deviation_pct", verdict.DeviationPct.String()).
		Bool("valid", verdict.IsValid).
		Msg("predicate validated")

	return rec, v, prev == StatusActive && next == StatusInvalid, nil
}

// Cancel moves an ACTIVE predicate owned by requester to CANCELLED.
func (m *Manager) Cancel(ctx context.Context, id, requester string) (rec Record, err error) {
	defer observe("cancel", &err)

	unlock := m.locks.lock(id)
	defer unlock()

	rec, err = m.load(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !sameAddress(rec.OwnerAddress, requester) {
		return Record{}, newError(KindUnauthorized, "only the owner may cancel predicate %s", id)
	}
	if _, err := m.expireIfDue(ctx, &rec); err != nil {
		return Record{}, err
	}
	if rec.Status != StatusActive {
		return Record{}, newError(KindInvalidState, "predicate %s is %s; only ACTIVE predicates can be cancelled", id, rec.Status)
	}

	if err := m.transition(ctx, &rec, StatusCancelled); err != nil {
		return Record{}, err
	}
	m.logger.Info().Str("predicate_id", id).Msg("predicate cancelled")
	return rec, nil
}

// MarkExecuted records the external execution signal for an ACTIVE predicate.
func (m *Manager) MarkExecuted(ctx context.Context, id, executionRef string) (rec Record, err error) {
	defer observe("execute", &err)

	if strings.TrimSpace(executionRef) == "" {
		return Record{}, newError(KindValidation, "executionRef is required")
	}

	unlock := m.locks.lock(id)
	defer unlock()

	rec, err = m.load(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if _, err := m.expireIfDue(ctx, &rec); err != nil {
		return Record{}, err
	}
	if rec.Status != StatusActive {
		return Record{}, newError(KindInvalidState, "predicate %s is %s; only ACTIVE predicates can be executed", id, rec.Status)
	}

	rec.ExecutionRef = strings.TrimSpace(executionRef)
	if err := m.transition(ctx, &rec, StatusExecuted); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Status returns the record. If its deadline has passed the record is moved to
// EXPIRED and persisted first, so this read may write.
func (m *Manager) Status(ctx context.Context, id string) (rec Record, err error) {
	defer observe("status", &err)

	unlock := m.locks.lock(id)
	defer unlock()

	rec, err = m.load(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if _, err := m.expireIfDue(ctx, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ReconcileExpiry moves a single overdue record to EXPIRED. It reports whether
// a transition happened.
func (m *Manager) ReconcileExpiry(ctx context.Context, id string) (bool, error) {
	unlock := m.locks.lock(id)
	defer unlock()

	rec, err := m.load(ctx, id)
	if err != nil {
		return false, err
	}
	return m.expireIfDue(ctx, &rec)
}

// ReconcileExpired expires every overdue non-terminal record.
func (m *Manager) ReconcileExpired(ctx context.Context) (int, error) {
	records, err := m.store.List(ctx)
	if err != nil {
		return 0, wrapError(KindInternal, err, "list predicates")
	}

	now := m.now()
	expired := 0
	for _, rec := range records {
		if rec.Status.Terminal() || !IsExpired(rec, now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		changed, err := m.ReconcileExpiry(ctx, rec.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return expired, err
		}
		if changed {
			expired++
		}
	}
	return expired, nil
}

// ValidateActive revalidates every non-terminal record. Oracle failures are
// counted and skipped.
func (m *Manager) ValidateActive(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	records, err := m.store.List(ctx)
	if err != nil {
		return res, wrapError(KindInternal, err, "list predicates")
	}

	for _, rec := range records {
		if rec.Status.Terminal() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		v, err := m.Validate(ctx, rec.ID)
		switch {
		case err == nil:
			res.Validated++
			if v.Status != rec.Status {
				res.Flipped++
			}
		case errors.Is(err, ErrInvalidState):
			res.Expired++
		case errors.Is(err, ErrNotFound):
		case errors.Is(err, ErrOracleUnavailable), errors.Is(err, ErrInvalidThreshold):
			res.Failed++
			m.logger.Warn().Err(err).Str("predicate_id", rec.ID).Msg("revalidation skipped")
		default:
			return res, err
		}
	}
	return res, nil
}

// IsExpired reports whether rec carries a deadline at or before now.
func IsExpired(rec Record, now time.Time) bool {
	return rec.ExpiresAt != nil && *rec.ExpiresAt <= now.UnixMilli()
}

func (m *Manager) expireIfDue(ctx context.Context, rec *Record) (bool, error) {
	if rec.Status.Terminal() || !IsExpired(*rec, m.now()) {
		return false, nil
	}
	if err := m.transition(ctx, rec, StatusExpired); err != nil {
		return false, err
	}
	m.logger.Info().Str("predicate_id", rec.ID).Msg("predicate expired")
	return true, nil
}

func (m *Manager) transition(ctx context.Context, rec *Record, to Status) error {
	from := rec.Status
	updated := *rec
	updated.Status = to
	if err := m.store.Put(ctx, updated); err != nil {
		return wrapError(KindInternal, err, "store predicate")
	}
	*rec = updated
	metrics.PredicateTransitions.WithLabelValues(string(from), string(to)).Inc()
	return nil
}

func (m *Manager) load(ctx context.Context, id string) (Record, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoRecord) {
			return Record{}, newError(KindNotFound, "predicate %s not found", id)
		}
		return Record{}, wrapError(KindInternal, err, "load predicate %s", id)
	}
	return rec, nil
}

func (m *Manager) fetch(ctx context.Context, address string, chainID int64) (oracle.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	defer cancel()

	quote, err := m.prices.FetchPrice(ctx, address, chainID)
	if err != nil {
		return oracle.Quote{}, wrapError(KindOracleUnavailable, err, "fetch price for %s on chain %d", address, chainID)
	}
	return quote, nil
}

func sameAddress(a, b string) bool {
	b = strings.TrimSpace(b)
	return b != "" && strings.EqualFold(strings.TrimSpace(a), b)
}

func observe(operation string, err *error) {
	result := "ok"
	if *err != nil {
		result = string(KindOf(*err))
	}
	metrics.PredicateOperations.WithLabelValues(operation, result).Inc()
}
