package models

import (
	"time"

	"lending/internal/calendar"
)

type Admin struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsSuper      bool      `db:"is_super" json:"is_super"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type BorrowerStatus string

const (
	BorrowerActive   BorrowerStatus = "active"
	BorrowerInactive BorrowerStatus = "inactive"
)

func (s BorrowerStatus) Valid() bool {
	return s == BorrowerActive || s == BorrowerInactive
}

type Borrower struct {
	ID             int64          `db:"id"`
	FullName       string         `db:"full_name"`
	Address        string         `db:"address"`
	ContactNumber  string         `db:"contact_number"`
	Notes          *string        `db:"notes"`
	Status         BorrowerStatus `db:"status"`
	DateRegistered time.Time      `db:"date_registered"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

type LoanStatus string

const (
	LoanOngoing   LoanStatus = "ongoing"
	LoanFullyPaid LoanStatus = "fully_paid"
	LoanOverdue   LoanStatus = "overdue"
)

func (s LoanStatus) Valid() bool {
	return s == LoanOngoing || s == LoanFullyPaid || s == LoanOverdue
}

// Loan amounts are minor units. RemainingBalance always equals TotalPayable
// minus the sum of the loan's payments.
type Loan struct {
	ID               int64             `db:"id"`
	BorrowerID       int64             `db:"borrower_id"`
	BorrowerName     string            `db:"borrower_name"`
	LoanAmount       int64             `db:"loan_amount"`
	InterestAmount   int64             `db:"interest_amount"`
	LoanTerm         int               `db:"loan_term"`
	TermType         calendar.TermType `db:"term_type"`
	ReleaseDate      time.Time         `db:"release_date"`
	DueDate          time.Time         `db:"due_date"`
	TotalInterest    int64             `db:"total_interest"`
	TotalPayable     int64             `db:"total_payable"`
	PaymentPerPeriod int64             `db:"payment_per_period"`
	RemainingBalance int64             `db:"remaining_balance"`
	Status           LoanStatus        `db:"status"`
	CreatedAt        time.Time         `db:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at"`
}

type Payment struct {
	ID           int64     `db:"id"`
	LoanID       int64     `db:"loan_id"`
	BorrowerName string    `db:"borrower_name"`
	PaymentDate  time.Time `db:"payment_date"`
	AmountPaid   int64     `db:"amount_paid"`
	BalanceAfter int64     `db:"balance_after"`
	IsLate       bool      `db:"is_late"`
	Remarks      *string   `db:"remarks"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type TransactionType string

const (
	TxDeposit         TransactionType = "deposit"
	TxWithdrawal      TransactionType = "withdrawal"
	TxLoanRelease     TransactionType = "loan_release"
	TxPaymentReceived TransactionType = "payment_received"
	TxPaymentReversal TransactionType = "payment_reversal"
)

var TransactionTypes = []TransactionType{TxDeposit, TxWithdrawal, TxLoanRelease, TxPaymentReceived, TxPaymentReversal}

// Sign is +1 for entries that add capital and -1 for entries that remove it.
func (t TransactionType) Sign() int64 {
	switch t {
	case TxDeposit, TxPaymentReceived:
		return 1
	case TxWithdrawal, TxLoanRelease, TxPaymentReversal:
		return -1
	}
	return 0
}

func (t TransactionType) Valid() bool {
	return t.Sign() != 0
}

type ReferenceKind string

const (
	RefNone    ReferenceKind = ""
	RefLoan    ReferenceKind = "loan"
	RefPayment ReferenceKind = "payment"
)

// Reference points a capital transaction at the loan or payment that caused it.
type Reference struct {
	Kind ReferenceKind
	ID   int64
}

func LoanRef(id int64) Reference {
	return Reference{Kind: RefLoan, ID: id}
}

func PaymentRef(id int64) Reference {
	return Reference{Kind: RefPayment, ID: id}
}

func (r Reference) IsNone() bool {
	return r.Kind == RefNone
}

// Columns maps the reference onto the nullable reference_type/reference_id pair.
func (r Reference) Columns() (*string, *int64) {
	if r.IsNone() {
		return nil, nil
	}
	kind := string(r.Kind)
	id := r.ID
	return &kind, &id
}

func ReferenceFromColumns(kind *string, id *int64) Reference {
	if kind == nil || id == nil {
		return Reference{}
	}
	switch ReferenceKind(*kind) {
	case RefLoan, RefPayment:
		return Reference{Kind: ReferenceKind(*kind), ID: *id}
	}
	return Reference{}
}

type CapitalTransaction struct {
	ID            int64           `db:"id"`
	Type          TransactionType `db:"type"`
	Amount        int64           `db:"amount"`
	BalanceAfter  int64           `db:"balance_after"`
	Description   *string         `db:"description"`
	ReferenceType *string         `db:"reference_type"`
	ReferenceID   *int64          `db:"reference_id"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (t CapitalTransaction) Reference() Reference {
	return ReferenceFromColumns(t.ReferenceType, t.ReferenceID)
}

type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	OldValues  *string   `db:"old_values" json:"old_values,omitempty"`
	NewValues  *string   `db:"new_values" json:"new_values,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
