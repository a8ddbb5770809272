package lending

import (
	"errors"
	"fmt"
)

// Kind tags every error the engine returns. The set is closed.
type Kind int

const (
	KindInternal Kind = iota
	KindMemberNotFound
	KindBookNotFound
	KindFineNotFound
	KindInvalidOrCompletedTransaction
	KindMemberSuspended
	KindBorrowLimitReached
	KindUnpaidFinesOutstanding
	KindBookUnavailable
	KindFineAlreadyPaid
	KindTransient
)

var kindNames = map[Kind]string{
	KindInternal:                      "Internal",
	KindMemberNotFound:                "MemberNotFound",
	KindBookNotFound:                  "BookNotFound",
	KindFineNotFound:                  "FineNotFound",
	KindInvalidOrCompletedTransaction: "InvalidOrCompletedTransaction",
	KindMemberSuspended:               "MemberSuspended",
	KindBorrowLimitReached:            "BorrowLimitReached",
	KindUnpaidFinesOutstanding:        "UnpaidFinesOutstanding",
	KindBookUnavailable:               "BookUnavailable",
	KindFineAlreadyPaid:               "FineAlreadyPaid",
	KindTransient:                     "Transient",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Category groups kinds by how a caller should react to them.
type Category int

const (
	CategoryInternal Category = iota
	CategoryNotFound
	CategoryRejected
	CategoryConflict
	CategoryTransient
)

func (k Kind) Category() Category {
	switch k {
	case KindMemberNotFound, KindBookNotFound, KindFineNotFound, KindInvalidOrCompletedTransaction:
		return CategoryNotFound
	case KindMemberSuspended, KindBorrowLimitReached, KindUnpaidFinesOutstanding, KindBookUnavailable:
		return CategoryRejected
	case KindFineAlreadyPaid:
		return CategoryConflict
	case KindTransient:
		return CategoryTransient
	default:
		return CategoryInternal
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrBookUnavailable)
// holds for wrapped and annotated variants alike.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrMemberNotFound                = &Error{Kind: KindMemberNotFound, Msg: "member not found"}
	ErrBookNotFound                  = &Error{Kind: KindBookNotFound, Msg: "book not found"}
	ErrFineNotFound                  = &Error{Kind: KindFineNotFound, Msg: "fine record not found"}
	ErrInvalidOrCompletedTransaction = &Error{Kind: KindInvalidOrCompletedTransaction, Msg: "invalid or already completed transaction"}
	ErrMemberSuspended               = &Error{Kind: KindMemberSuspended, Msg: "member is suspended from borrowing"}
	ErrBorrowLimitReached            = &Error{Kind: KindBorrowLimitReached, Msg: "borrowing limit reached"}
	ErrUnpaidFinesOutstanding        = &Error{Kind: KindUnpaidFinesOutstanding, Msg: "borrowing blocked: member has unpaid fines"}
	ErrBookUnavailable               = &Error{Kind: KindBookUnavailable, Msg: "the requested book is currently unavailable"}
	ErrFineAlreadyPaid               = &Error{Kind: KindFineAlreadyPaid, Msg: "fine is already paid"}
)

func transient(err error) *Error {
	return &Error{Kind: KindTransient, Msg: "ledger temporarily unavailable", Err: err}
}

func internal(err error) *Error {
	return &Error{Kind: KindInternal, Msg: "ledger failure", Err: err}
}

// KindOf returns the kind carried by err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsTransient reports whether err may succeed when the operation is attempted again.
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}
