package services

import (
	"time"

	"lending/internal/calendar"
	"lending/internal/models"
)

// DeriveStatus recomputes a loan's status from its balance and due date.
// A loan falls overdue once its due date has begun.
func DeriveStatus(loan models.Loan, now time.Time) models.LoanStatus {
	if loan.RemainingBalance <= 0 {
		return models.LoanFullyPaid
	}
	if PastDue(loan.DueDate, now) {
		return models.LoanOverdue
	}
	return models.LoanOngoing
}

// PastDue reports whether now is later than midnight starting dueDate.
func PastDue(dueDate, now time.Time) bool {
	due, today := calendar.DateOf(dueDate), calendar.DateOf(now)
	if today.After(due) {
		return true
	}
	if today.Before(due) {
		return false
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return now.After(midnight)
}

// IsLate reports whether a payment made on paymentDate missed the loan's due date.
func IsLate(paymentDate, dueDate time.Time) bool {
	return calendar.DateOf(paymentDate).After(calendar.DateOf(dueDate))
}
