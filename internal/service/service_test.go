package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"price-predicates/internal/alerting"
	"price-predicates/internal/oracle"
	"price-predicates/internal/predicate"
)

const (
	testChain  = int64(1)
	testOracle = "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"
	testOwner  = "0x1111111111111111111111111111111111111111"
)

type fakeReconciler struct {
	expired    int
	result     predicate.SweepResult
	err        error
	validated  int
	reconciled int
}

func (f *fakeReconciler) ReconcileExpired(ctx context.Context) (int, error) {
	f.reconciled++
	return f.expired, f.err
}

func (f *fakeReconciler) ValidateActive(ctx context.Context) (predicate.SweepResult, error) {
	f.validated++
	return f.result, nil
}

type lockingStore struct {
	*predicate.MemoryStore
	acquired bool
	unlocked int
	keys     []int64
}

func (l *lockingStore) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	l.keys = append(l.keys, key)
	if !l.acquired {
		return nil, false, nil
	}
	return func() { l.unlocked++ }, true, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note)
	return nil
}

func TestSweepExpiresOnly(t *testing.T) {
	rec := &fakeReconciler{expired: 2}
	svc := New(Options{}, nil, rec, predicate.NewMemoryStore(), zerolog.Nop())

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	report, err := svc.Sweep(context.Background(), at)
	require.NoError(t, err)
	require.Equal(t, 2, report.Expired)
	require.Equal(t, 0, rec.validated)

	last, ok := svc.LastReport()
	require.True(t, ok)
	require.Equal(t, at, last.At)
}

func TestSweepRevalidates(t *testing.T) {
	rec := &fakeReconciler{result: predicate.SweepResult{Validated: 3, Flipped: 1}}
	svc := New(Options{Revalidate: true}, nil, rec, predicate.NewMemoryStore(), zerolog.Nop())

	report, err := svc.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, rec.validated)
	require.Equal(t, 3, report.Revalidated.Validated)
	require.Equal(t, 1, report.Revalidated.Flipped)
}

func TestSweepPropagatesErrors(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("store down")}
	svc := New(Options{Revalidate: true}, nil, rec, predicate.NewMemoryStore(), zerolog.Nop())

	err := svc.Tick(context.Background(), time.Now())
	require.Error(t, err)
	require.Equal(t, 0, rec.validated)
	_, ok := svc.LastReport()
	require.False(t, ok)
}

func TestSweepSkipsWhenLockHeldElsewhere(t *testing.T) {
	store := &lockingStore{MemoryStore: predicate.NewMemoryStore()}
	rec := &fakeReconciler{}
	svc := New(Options{LockKey: 42}, nil, rec, store, zerolog.Nop())

	report, err := svc.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	require.True(t, report.Skipped)
	require.Equal(t, 0, rec.reconciled)
	require.Equal(t, []int64{42}, store.keys)
}

func TestSweepReleasesLock(t *testing.T) {
	store := &lockingStore{MemoryStore: predicate.NewMemoryStore(), acquired: true}
	rec := &fakeReconciler{}
	svc := New(Options{LockKey: 42}, nil, rec, store, zerolog.Nop())

	_, err := svc.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, rec.reconciled)
	require.Equal(t, 1, store.unlocked)
}

func TestRunWithoutScheduler(t *testing.T) {
	svc := New(Options{}, nil, &fakeReconciler{}, predicate.NewMemoryStore(), zerolog.Nop())
	require.Error(t, svc.Run(context.Background()))
}

func TestSweepRevalidationNotifiesOnInvalidation(t *testing.T) {
	prices := oracle.NewStatic(decimal.Zero)
	prices.SetPrice(testChain, testOracle, decimal.NewFromInt(2500))
	directory := oracle.NewDirectory([]oracle.Chain{{
		ID:    testChain,
		Name:  "ethereum",
		Feeds: []oracle.Feed{{Pair: "ETH/USD", Address: testOracle}},
	}}, prices, zerolog.Nop())

	notifier := &recordingNotifier{}
	store := predicate.NewMemoryStore()
	manager := predicate.NewManager(store, prices, directory, zerolog.Nop(),
		predicate.WithTransitionHook(NewInvalidationHook(notifier, []string{"telegram"}, zerolog.Nop())))

	ctx := context.Background()
	rec, err := manager.Create(ctx, predicate.CreateRequest{
		ChainID:       testChain,
		OracleAddress: testOracle,
		Tolerance:     decimal.NewNullDecimal(decimal.NewFromInt(1)),
		OwnerAddress:  testOwner,
	})
	require.NoError(t, err)

	prices.SetPrice(testChain, testOracle, decimal.NewFromInt(2600))

	svc := New(Options{Revalidate: true}, nil, manager, store, zerolog.Nop())
	report, err := svc.Sweep(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, report.Revalidated.Validated)
	require.Equal(t, 1, report.Revalidated.Flipped)

	require.Len(t, notifier.notes, 1)
	note := notifier.notes[0]
	require.Equal(t, rec.ID, note.PredicateID)
	require.Equal(t, "INVALID", note.Status)
	require.True(t, note.DeviationPct.Equal(decimal.NewFromInt(4)))
	require.Equal(t, []string{"telegram"}, note.Channels)

	// A second sweep re-evaluates but does not notify again.
	_, err = svc.Sweep(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, notifier.notes, 1)
}
