package lending

import (
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// ComputeFine charges DefaultDailyFine for every started day between dueDate
// and returnedAt. Returning at or before the due date costs nothing.
func ComputeFine(dueDate, returnedAt time.Time) decimal.Decimal {
	return computeFine(dueDate, returnedAt, DefaultDailyFine)
}

// Fine is ComputeFine with the policy's daily rate.
func (p Policy) Fine(dueDate, returnedAt time.Time) decimal.Decimal {
	return computeFine(dueDate, returnedAt, p.DailyFine)
}

func computeFine(dueDate, returnedAt time.Time, dailyFine decimal.Decimal) decimal.Decimal {
	if !returnedAt.After(dueDate) {
		return decimal.Zero
	}
	return dailyFine.Mul(decimal.NewFromInt(DaysLate(dueDate, returnedAt)))
}

// DaysLate rounds the lateness up to whole days; one second late is one day.
func DaysLate(dueDate, returnedAt time.Time) int64 {
	late := returnedAt.Sub(dueDate)
	if late <= 0 {
		return 0
	}
	days := int64(late / day)
	if late%day != 0 {
		days++
	}
	return days
}
