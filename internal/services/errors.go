package services

import (
	"database/sql"
	"errors"
	"fmt"

	"lending/internal/amortization"
	"lending/internal/money"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidTerm         = amortization.ErrInvalidTerm
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientCapital = errors.New("insufficient capital")
	ErrExceedsBalance      = errors.New("payment amount exceeds remaining balance")
	ErrNotFound            = errors.New("not found")
	ErrBorrowerHasLoans    = errors.New("borrower has loans")
)

// ValidationError names the offending field of a request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InsufficientCapitalError carries the balance that was available.
type InsufficientCapitalError struct {
	Available int64
}

func (e *InsufficientCapitalError) Error() string {
	return "insufficient capital, available " + money.FormatGrouped(e.Available)
}

func (e *InsufficientCapitalError) Unwrap() error {
	return ErrInsufficientCapital
}

func notFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// mapNoRows turns sql.ErrNoRows into ErrNotFound for entity.
func mapNoRows(err error, entity string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(entity, id)
	}
	return err
}
