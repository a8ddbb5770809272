package lending

import (
	"fmt"

	"github.com/SivaGaneshv1729/library-management-api/pkg/models"
)

// CheckBorrowEligibility decides whether member may borrow book. It is a pure
// function over state the caller read inside its transaction: nil member or
// book means the record does not exist. The first failing rule is reported.
func CheckBorrowEligibility(member *models.Member, activeLoanCount, unpaidFineCount int64, book *models.Book, policy Policy) error {
	if member == nil {
		return ErrMemberNotFound
	}

	if member.IsSuspended() {
		return ErrMemberSuspended
	}

	if activeLoanCount >= int64(policy.MaxActiveLoans) {
		return &Error{
			Kind: KindBorrowLimitReached,
			Msg:  fmt.Sprintf("borrowing limit (%d books) reached", policy.MaxActiveLoans),
		}
	}

	if unpaidFineCount > 0 {
		return ErrUnpaidFinesOutstanding
	}

	if book == nil || book.Status != models.BookAvailable || book.AvailableCopies <= 0 {
		return ErrBookUnavailable
	}

	return nil
}
