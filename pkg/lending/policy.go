package lending

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultLoanPeriod          = 14 * 24 * time.Hour
	DefaultMaxActiveLoans      = 3
	DefaultSuspensionThreshold = 3
)

// DefaultDailyFine is charged per started day of lateness.
var DefaultDailyFine = decimal.New(50, -2)

// Policy holds the lending rules that operators may tune.
type Policy struct {
	LoanPeriod          time.Duration
	MaxActiveLoans      int
	SuspensionThreshold int
	DailyFine           decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		LoanPeriod:          DefaultLoanPeriod,
		MaxActiveLoans:      DefaultMaxActiveLoans,
		SuspensionThreshold: DefaultSuspensionThreshold,
		DailyFine:           DefaultDailyFine,
	}
}
