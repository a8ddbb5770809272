package lending

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SivaGaneshv1729/library-management-api/pkg/circuitbreaker"
	"github.com/SivaGaneshv1729/library-management-api/pkg/ledger"
	"github.com/SivaGaneshv1729/library-management-api/pkg/models"
	"github.com/SivaGaneshv1729/library-management-api/pkg/retry"
)

const (
	defaultTxTimeout = 5 * time.Second

	opBorrow     = "borrow_book"
	opReturn     = "return_book"
	opPayFine    = "pay_fine"
	opSyncMember = "sync_member"
	opSweep      = "overdue_sweep"
	opReport     = "overdue_report"
	opBorrowed   = "borrowed_books"

	logMsgRejected       = "lending operation rejected"
	logMsgFailed         = "lending operation failed"
	logMsgRetrying       = "retrying lending operation"
	logMsgBorrowed       = "book borrowed"
	logMsgReturned       = "book returned"
	logMsgFinePaid       = "fine paid"
	logMsgSuspended      = "member suspended"
	logMsgSweepCompleted = "overdue sweep completed"
	logMsgSweepMember    = "overdue sweep failed for member"

	logAttrOp           = "op"
	logAttrKind         = "kind"
	logAttrError        = "error"
	logAttrAttempt      = "attempt"
	logAttrDelayMS      = "delay_ms"
	logAttrMemberID     = "member_id"
	logAttrBookID       = "book_id"
	logAttrTrxID        = "transaction_id"
	logAttrFineID       = "fine_id"
	logAttrAmount       = "amount"
	logAttrOverdueIDs   = "overdue_transaction_ids"
	logAttrMembers      = "members"
	logAttrFailures     = "failures"
	logAttrReclassified = "reclassified"
)

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Store is the transactional persistence the engine runs on.
type Store interface {
	Atomic(ctx context.Context, fn func(tx ledger.Tx) error) error
}

// Engine executes lending operations, each as one atomic unit of work against
// the Store. It keeps no entity state between calls and is safe for concurrent use.
type Engine struct {
	store        Store
	policy       Policy
	now          func() time.Time
	txTimeout    time.Duration
	retryOptions []retry.Option
	breaker      *circuitbreaker.CircuitBreaker
	logger       Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithPolicy(policy Policy) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithTxTimeout bounds every atomic operation. Work that does not finish in
// time is rolled back and reported as KindTransient.
func WithTxTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.txTimeout = timeout
	}
}

// WithRetry retries operations that fail with KindTransient. Business rules
// are re-evaluated from fresh reads on every attempt.
func WithRetry(opts ...retry.Option) Option {
	return func(e *Engine) {
		e.retryOptions = opts
	}
}

// WithCircuitBreaker makes the engine fail fast while the ledger keeps failing.
// Calls abandoned by their caller do not count against the ledger.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(e *Engine) {
		e.breaker = cb.CountOnly(countsAsLedgerFailure)
	}
}

func countsAsLedgerFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	kind := KindOf(err)
	return kind == KindTransient || kind == KindInternal
}

func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		policy:    DefaultPolicy(),
		now:       time.Now,
		txTimeout: defaultTxTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// ReturnSummary is the outcome of a successful ReturnBook.
type ReturnSummary struct {
	Message       string          `json:"message"`
	FineApplied   decimal.Decimal `json:"fineApplied"`
	TransactionID string          `json:"transactionId"`
	FineID        string          `json:"fineId,omitempty"`
}

// BorrowBook lends one copy of a book to a member.
func (e *Engine) BorrowBook(ctx context.Context, memberID, bookID string) (*models.Transaction, error) {
	var created *models.Transaction

	err := e.atomic(ctx, opBorrow, func(tx ledger.Tx, now time.Time) error {
		created = nil

		member, err := tx.GetMember(memberID)
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		var activeLoans, unpaidFines int64
		if member != nil {
			if activeLoans, err = tx.CountOpenLoans(member.ID); err != nil {
				return err
			}
			if unpaidFines, err = tx.CountUnpaidFines(member.ID); err != nil {
				return err
			}
		}

		var book *models.Book
		if member != nil {
			book, err = tx.GetBook(bookID)
			if err != nil && !errors.Is(err, ledger.ErrNotFound) {
				return err
			}
		}

		if err := CheckBorrowEligibility(member, activeLoans, unpaidFines, book, e.policy); err != nil {
			return err
		}

		trx := &models.Transaction{
			MemberID:   member.ID,
			BookID:     book.ID,
			BorrowedAt: now,
			DueDate:    now.Add(e.policy.LoanPeriod),
			Status:     models.TransactionActive,
		}
		if err := tx.CreateTransaction(trx); err != nil {
			return err
		}

		if err := tx.AdjustAvailableCopies(book, -1); err != nil {
			return err
		}

		trx.Book = book
		created = trx
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logInfo(logMsgBorrowed, logAttrTrxID, created.ID, logAttrMemberID, memberID, logAttrBookID, bookID)
	return created, nil
}

// ReturnBook closes a loan, charges a fine when it is late, puts the copy back
// and re-evaluates the member's suspension.
func (e *Engine) ReturnBook(ctx context.Context, transactionID string) (*ReturnSummary, error) {
	var summary *ReturnSummary
	var suspendedIDs []string

	err := e.atomic(ctx, opReturn, func(tx ledger.Tx, now time.Time) error {
		summary, suspendedIDs = nil, nil

		peek, err := tx.LookupTransaction(transactionID)
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrInvalidOrCompletedTransaction
		}
		if err != nil {
			return err
		}

		// member before loan, same lock order as the suspension sync
		if _, err := tx.GetMember(peek.MemberID); err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		trx, err := tx.GetTransaction(transactionID)
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrInvalidOrCompletedTransaction
		}
		if err != nil {
			return err
		}
		if !trx.IsOpen() {
			return ErrInvalidOrCompletedTransaction
		}

		book, err := tx.GetBook(trx.BookID)
		if err != nil {
			return err
		}

		amount := e.policy.Fine(trx.DueDate, now)

		if err := tx.CloseTransaction(trx, now); err != nil {
			return err
		}

		var fineID string
		if amount.IsPositive() {
			fine := &models.Fine{
				MemberID:      trx.MemberID,
				TransactionID: trx.ID,
				Amount:        amount,
			}
			if err := tx.CreateFine(fine); err != nil {
				return err
			}
			fineID = fine.ID
		}

		if err := tx.AdjustAvailableCopies(book, 1); err != nil {
			return err
		}

		suspendedIDs, err = SyncMemberSuspension(tx, trx.MemberID, now, e.policy.SuspensionThreshold)
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		summary = &ReturnSummary{
			Message:       "Book returned successfully",
			FineApplied:   amount,
			TransactionID: trx.ID,
			FineID:        fineID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logInfo(logMsgReturned, logAttrTrxID, summary.TransactionID, logAttrAmount, summary.FineApplied.StringFixed(2))
	if len(suspendedIDs) > 0 {
		e.logInfo(logMsgSuspended, logAttrTrxID, transactionID, logAttrOverdueIDs, suspendedIDs)
	}
	return summary, nil
}

// PayFine marks an outstanding fine as paid.
func (e *Engine) PayFine(ctx context.Context, fineID string) (*models.Fine, error) {
	var paid *models.Fine

	err := e.atomic(ctx, opPayFine, func(tx ledger.Tx, now time.Time) error {
		paid = nil

		fine, err := tx.GetFine(fineID)
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrFineNotFound
		}
		if err != nil {
			return err
		}

		if fine.IsPaid() {
			return ErrFineAlreadyPaid
		}

		if err := tx.MarkFinePaid(fine, now); err != nil {
			return err
		}

		paid = fine
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logInfo(logMsgFinePaid, logAttrFineID, paid.ID, logAttrAmount, paid.Amount.StringFixed(2))
	return paid, nil
}

// SyncMember runs the suspension sync for one member in its own transaction
// and returns the ids of the loans it reclassified as overdue.
func (e *Engine) SyncMember(ctx context.Context, memberID string) ([]string, error) {
	var reclassified []string

	err := e.atomic(ctx, opSyncMember, func(tx ledger.Tx, now time.Time) error {
		ids, err := SyncMemberSuspension(tx, memberID, now, e.policy.SuspensionThreshold)
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrMemberNotFound
		}
		reclassified = ids
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(reclassified) > 0 {
		e.logInfo(logMsgSuspended, logAttrMemberID, memberID, logAttrOverdueIDs, reclassified)
	}
	return reclassified, nil
}

// MemberFailure records a member the sweep could not synchronize.
type MemberFailure struct {
	MemberID string
	Err      error
}

// SweepResult summarizes one pass over every member with past-due loans.
type SweepResult struct {
	Members      []string
	Suspended    []string
	Reclassified []string
	Failures     []MemberFailure
}

// Err joins the per-member failures, nil when every member was synchronized.
func (r SweepResult) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}

// Sweep brings the overdue state of every member holding an active past-due
// loan up to date. Each member is synchronized in its own transaction; a
// failure for one member does not stop the others and is reported in the result.
func (e *Engine) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	err := e.atomic(ctx, opSweep, func(tx ledger.Tx, now time.Time) error {
		ids, err := tx.MembersWithPastDueLoans(now)
		result.Members = ids
		return err
	})
	if err != nil {
		return result, err
	}

	for _, memberID := range result.Members {
		if err := ctx.Err(); err != nil {
			return result, transient(err)
		}

		ids, err := e.SyncMember(ctx, memberID)
		if err != nil {
			result.Failures = append(result.Failures, MemberFailure{MemberID: memberID, Err: err})
			e.logWarn(logMsgSweepMember, logAttrMemberID, memberID, logAttrError, err.Error())
			continue
		}
		if len(ids) > 0 {
			result.Suspended = append(result.Suspended, memberID)
			result.Reclassified = append(result.Reclassified, ids...)
		}
	}

	e.logInfo(logMsgSweepCompleted,
		logAttrMembers, len(result.Members),
		logAttrReclassified, len(result.Reclassified),
		logAttrFailures, len(result.Failures),
	)
	return result, nil
}

// OverdueSweepAndReport synchronizes every member first and then lists all
// overdue loans, so the report never shows a stale status.
func (e *Engine) OverdueSweepAndReport(ctx context.Context) ([]models.Transaction, error) {
	result, err := e.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	var overdue []models.Transaction
	err = e.atomic(ctx, opReport, func(tx ledger.Tx, _ time.Time) error {
		loans, err := tx.ListOverdueLoans()
		overdue = loans
		return err
	})
	if err != nil {
		return nil, err
	}
	return overdue, nil
}

// BorrowedBooks lists the member's active and overdue loans after bringing the
// member's overdue state up to date in the same transaction.
func (e *Engine) BorrowedBooks(ctx context.Context, memberID string) ([]models.Transaction, error) {
	var loans []models.Transaction

	err := e.atomic(ctx, opBorrowed, func(tx ledger.Tx, now time.Time) error {
		loans = nil

		if _, err := SyncMemberSuspension(tx, memberID, now, e.policy.SuspensionThreshold); err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return ErrMemberNotFound
			}
			return err
		}

		open, err := tx.ListOpenLoans(memberID)
		loans = open
		return err
	})
	if err != nil {
		return nil, err
	}
	return loans, nil
}

// atomic runs fn in one ledger transaction under the configured timeout,
// circuit breaker and retry policy. fn receives the operation's timestamp.
func (e *Engine) atomic(ctx context.Context, op string, fn func(tx ledger.Tx, now time.Time) error) error {
	opts := append([]retry.Option{
		retry.WithRetryIf(func(err error) bool {
			return IsTransient(err) && !errors.Is(err, circuitbreaker.ErrOpen)
		}),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			e.logWarn(logMsgRetrying, logAttrOp, op, logAttrAttempt, attempt, logAttrDelayMS, delay.Milliseconds(), logAttrError, err.Error())
		}),
	}, e.retryOptions...)

	err := retry.Do(ctx, func(ctx context.Context) error {
		return e.guarded(func() error {
			txCtx, cancel := context.WithTimeout(ctx, e.txTimeout)
			defer cancel()

			now := e.now().UTC().Truncate(time.Microsecond)
			return classify(e.store.Atomic(txCtx, func(tx ledger.Tx) error {
				return fn(tx, now)
			}))
		})
	}, opts...)

	if err != nil {
		e.logFailure(op, err)
	}
	return err
}

func (e *Engine) guarded(fn func() error) error {
	if e.breaker == nil {
		return fn()
	}
	err := e.breaker.Execute(fn)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return transient(err)
	}
	return err
}

// classify turns raw persistence errors into tagged ones; tagged errors pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}

	if ledger.IsTransient(err) || errors.Is(err, context.Canceled) {
		return transient(err)
	}
	return internal(err)
}

func (e *Engine) logFailure(op string, err error) {
	kind := KindOf(err)
	switch kind.Category() {
	case CategoryNotFound, CategoryRejected, CategoryConflict:
		e.logInfo(logMsgRejected, logAttrOp, op, logAttrKind, kind.String(), logAttrError, err.Error())
	default:
		e.logError(logMsgFailed, logAttrOp, op, logAttrKind, kind.String(), logAttrError, err.Error())
	}
}

func (e *Engine) logInfo(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) logWarn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

func (e *Engine) logError(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Error(msg, args...)
	}
}
