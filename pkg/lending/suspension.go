package lending

import (
	"time"

	"github.com/SivaGaneshv1729/library-management-api/pkg/ledger"
	"github.com/SivaGaneshv1729/library-management-api/pkg/models"
)

// SyncMemberSuspension runs inside the caller's transaction. Once a member holds
// threshold or more active loans past their due date, the member is suspended
// and all of those loans become overdue. Below the threshold nothing changes.
// Running it again on an already synchronized member is a no-op. The member
// row is locked before any loan row, the same order every engine operation uses.
func SyncMemberSuspension(tx ledger.Tx, memberID string, now time.Time, threshold int) ([]string, error) {
	member, err := tx.GetMember(memberID)
	if err != nil {
		return nil, err
	}

	pastDue, err := tx.ListPastDueActiveLoans(memberID, now)
	if err != nil {
		return nil, err
	}

	if len(pastDue) < threshold {
		return nil, nil
	}

	if !member.IsSuspended() {
		if err := tx.SetMemberStatus(member, models.MemberSuspended); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(pastDue))
	for _, loan := range pastDue {
		ids = append(ids, loan.ID)
	}

	updated, err := tx.MarkOverdue(ids)
	if err != nil {
		return nil, err
	}
	if updated != int64(len(ids)) {
		return nil, ledger.ErrConcurrencyConflict
	}

	return ids, nil
}
