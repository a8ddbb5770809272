package lending

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SivaGaneshv1729/library-management-api/pkg/circuitbreaker"
	"github.com/SivaGaneshv1729/library-management-api/pkg/ledger"
	"github.com/SivaGaneshv1729/library-management-api/pkg/retry"
)

// flakyStore fails the first len(errs) units of work, then delegates.
type flakyStore struct {
	mu    sync.Mutex
	errs  []error
	calls int
	inner Store
}

func (s *flakyStore) Atomic(ctx context.Context, fn func(tx ledger.Tx) error) error {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if call <= len(s.errs) {
		return s.errs[call-1]
	}
	if s.inner == nil {
		return errors.New("no store configured")
	}
	return s.inner.Atomic(ctx, fn)
}

func (s *flakyStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type blockingStore struct{}

func (blockingStore) Atomic(ctx context.Context, _ func(tx ledger.Tx) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestTransientFailureIsRetried(t *testing.T) {
	db := setupTestDB(t)
	store := &flakyStore{
		errs:  []error{ledger.ErrConcurrencyConflict},
		inner: ledger.NewGormStore(db),
	}
	engine := NewEngine(store, WithRetry(retry.WithMaxAttempts(3), retry.WithBaseDelay(0)))

	member := createMember(t, db)
	book := createBook(t, db, 1)

	_, err := engine.BorrowBook(context.Background(), member.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Calls())
	assertCapacity(t, db, book.ID)
}

func TestBusinessRejectionIsNotRetried(t *testing.T) {
	db := setupTestDB(t)
	store := &flakyStore{inner: ledger.NewGormStore(db)}
	engine := NewEngine(store, WithRetry(retry.WithMaxAttempts(3), retry.WithBaseDelay(0)))

	_, err := engine.BorrowBook(context.Background(), createMember(t, db).ID, createBook(t, db, 1).ID)
	require.NoError(t, err)

	_, err = engine.PayFine(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrFineNotFound)
	assert.Equal(t, 2, store.Calls())
}

func TestTransientFailureWithoutRetry(t *testing.T) {
	store := &flakyStore{errs: []error{ledger.ErrConcurrencyConflict}}
	engine := NewEngine(store)

	_, err := engine.PayFine(context.Background(), "any")
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, ledger.ErrConcurrencyConflict)
	assert.Equal(t, 1, store.Calls())
}

func TestUnknownFailureIsInternal(t *testing.T) {
	boom := errors.New("disk on fire")
	engine := NewEngine(&flakyStore{errs: []error{boom}})

	_, err := engine.ReturnBook(context.Background(), "any")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.ErrorIs(t, err, boom)
}

func TestTimeoutIsTransient(t *testing.T) {
	engine := NewEngine(blockingStore{}, WithTxTimeout(10*time.Millisecond))

	_, err := engine.PayFine(context.Background(), "any")
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCircuitBreakerFailsFast(t *testing.T) {
	failures := []error{ledger.ErrConcurrencyConflict, ledger.ErrConcurrencyConflict, ledger.ErrConcurrencyConflict}
	store := &flakyStore{errs: failures}
	cb := circuitbreaker.NewCircuitBreaker(1, time.Hour)
	engine := NewEngine(store, WithCircuitBreaker(cb))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := engine.PayFine(ctx, "any")
		assert.True(t, IsTransient(err))
	}
	assert.Equal(t, circuitbreaker.StateOpen, cb.GetState())

	_, err := engine.PayFine(ctx, "any")
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, store.Calls())
}

func TestRejectionsDoNotTripCircuitBreaker(t *testing.T) {
	db := setupTestDB(t)
	cb := circuitbreaker.NewCircuitBreaker(1, time.Hour)
	engine := NewEngine(ledger.NewGormStore(db), WithCircuitBreaker(cb))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := engine.PayFine(ctx, "missing")
		assert.ErrorIs(t, err, ErrFineNotFound)
	}
	assert.Equal(t, circuitbreaker.StateClosed, cb.GetState())
}

func TestRetryStopsWhenBreakerOpens(t *testing.T) {
	failures := make([]error, 10)
	for i := range failures {
		failures[i] = ledger.ErrConcurrencyConflict
	}
	store := &flakyStore{errs: failures}
	cb := circuitbreaker.NewCircuitBreaker(1, time.Hour)
	engine := NewEngine(store,
		WithCircuitBreaker(cb),
		WithRetry(retry.WithMaxAttempts(5), retry.WithBaseDelay(0)),
	)

	_, err := engine.PayFine(context.Background(), "any")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, store.Calls())
}

func TestCancelledCallsDoNotTripCircuitBreaker(t *testing.T) {
	db := setupTestDB(t)
	cb := circuitbreaker.NewCircuitBreaker(1, time.Hour)
	engine := NewEngine(ledger.NewGormStore(db), WithCircuitBreaker(cb))
	member := createMember(t, db)
	book := createBook(t, db, 1)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 3; i++ {
		_, err := engine.BorrowBook(cancelled, member.ID, book.ID)
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, circuitbreaker.StateClosed, cb.GetState())

	_, err := engine.BorrowBook(context.Background(), member.ID, book.ID)
	require.NoError(t, err)
	assertCapacity(t, db, book.ID)
}
