// Package amortization computes flat-interest loan totals, due dates and
// payment schedules. All amounts are minor units (cents).
package amortization

import (
	"errors"
	"time"

	"lending/internal/calendar"
	"lending/internal/money"

	"github.com/shopspring/decimal"
)

// MaxTerm bounds the number of periods in one loan; ten years of daily
// installments.
const MaxTerm = 3650

var (
	ErrInvalidTerm   = errors.New("loan term must be between 1 and 3650 periods")
	ErrInvalidAmount = errors.New("invalid loan amount")
)

type Calculation struct {
	TotalInterest    int64
	TotalPayable     int64
	PaymentPerPeriod int64
}

type Installment struct {
	Period  int
	DueDate time.Time
	Amount  int64
}

// ValidTerm reports whether termCount is within 1..MaxTerm.
func ValidTerm(termCount int) bool {
	return termCount > 0 && termCount <= MaxTerm
}

// Calculate derives totals for a flat-interest loan. The per-period payment is
// rounded half away from zero, so PaymentPerPeriod*termCount may differ from
// TotalPayable by a few cents; see Reconcile.
func Calculate(principal, totalInterest int64, termCount int) (Calculation, error) {
	if !ValidTerm(termCount) {
		return Calculation{}, ErrInvalidTerm
	}
	if principal <= 0 || totalInterest < 0 {
		return Calculation{}, ErrInvalidAmount
	}
	totalPayable := principal + totalInterest
	perPeriod := money.ToDecimal(totalPayable).Div(decimal.NewFromInt(int64(termCount)))
	return Calculation{
		TotalInterest:    totalInterest,
		TotalPayable:     totalPayable,
		PaymentPerPeriod: money.FromDecimal(perPeriod),
	}, nil
}

// DueDate steps from release one period at a time, termCount times.
func DueDate(release time.Time, termCount int, unit calendar.TermType) (time.Time, error) {
	if !ValidTerm(termCount) {
		return time.Time{}, ErrInvalidTerm
	}
	date := calendar.DateOf(release)
	for i := 0; i < termCount; i++ {
		next, err := calendar.Step(date, unit)
		if err != nil {
			return time.Time{}, err
		}
		date = next
	}
	return date, nil
}

// Schedule lists every installment; the last due date always equals DueDate.
func Schedule(release time.Time, termCount int, unit calendar.TermType, perPeriod int64) ([]Installment, error) {
	if !ValidTerm(termCount) {
		return nil, ErrInvalidTerm
	}
	schedule := make([]Installment, 0, termCount)
	date := calendar.DateOf(release)
	for period := 1; period <= termCount; period++ {
		next, err := calendar.Step(date, unit)
		if err != nil {
			return nil, err
		}
		date = next
		schedule = append(schedule, Installment{Period: period, DueDate: date, Amount: perPeriod})
	}
	return schedule, nil
}

// Reconcile returns a copy of schedule whose final installment absorbs the
// rounding remainder so that the amounts sum to totalPayable.
func Reconcile(schedule []Installment, totalPayable int64) []Installment {
	out := make([]Installment, len(schedule))
	copy(out, schedule)
	if len(out) == 0 {
		return out
	}
	var preceding int64
	for _, item := range out[:len(out)-1] {
		preceding += item.Amount
	}
	out[len(out)-1].Amount = totalPayable - preceding
	return out
}

// RemainingPeriods is how many installments are still needed to clear remaining.
func RemainingPeriods(remaining, perPeriod int64) int {
	if perPeriod <= 0 || remaining <= 0 {
		return 0
	}
	return int((remaining + perPeriod - 1) / perPeriod)
}
