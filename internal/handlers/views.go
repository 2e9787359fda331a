package handlers

import (
	"time"

	"lending/internal/amortization"
	"lending/internal/calendar"
	"lending/internal/models"
	"lending/internal/money"
	"lending/internal/store"
)

// Amounts leave the API as fixed two-decimal strings and dates as YYYY-MM-DD.

type borrowerView struct {
	ID               int64   `json:"id"`
	FullName         string  `json:"full_name"`
	Address          string  `json:"address"`
	ContactNumber    string  `json:"contact_number"`
	Notes            *string `json:"notes"`
	Status           string  `json:"status"`
	DateRegistered   string  `json:"date_registered"`
	LoansCount       *int    `json:"loans_count,omitempty"`
	ActiveLoansCount *int    `json:"active_loans_count,omitempty"`
	TotalOutstanding string  `json:"total_outstanding,omitempty"`
}

func newBorrowerView(b models.Borrower) borrowerView {
	return borrowerView{
		ID:             b.ID,
		FullName:       b.FullName,
		Address:        b.Address,
		ContactNumber:  b.ContactNumber,
		Notes:          b.Notes,
		Status:         string(b.Status),
		DateRegistered: calendar.Format(b.DateRegistered),
	}
}

func newBorrowerSummaryView(s store.BorrowerSummary) borrowerView {
	view := newBorrowerView(s.Borrower)
	loans, active := s.LoansCount, s.ActiveLoansCount
	view.LoansCount = &loans
	view.ActiveLoansCount = &active
	view.TotalOutstanding = money.FormatMinor(s.TotalOutstanding)
	return view
}

type loanView struct {
	ID               int64  `json:"id"`
	BorrowerID       int64  `json:"borrower_id"`
	BorrowerName     string `json:"borrower_name"`
	LoanAmount       string `json:"loan_amount"`
	InterestAmount   string `json:"interest_amount"`
	LoanTerm         int    `json:"loan_term"`
	TermType         string `json:"term_type"`
	TermLabel        string `json:"term_label"`
	ReleaseDate      string `json:"release_date"`
	DueDate          string `json:"due_date"`
	TotalInterest    string `json:"total_interest"`
	TotalPayable     string `json:"total_payable"`
	PaymentPerPeriod string `json:"payment_per_period"`
	RemainingBalance string `json:"remaining_balance"`
	Status           string `json:"status"`
}

func newLoanView(l models.Loan) loanView {
	return loanView{
		ID:               l.ID,
		BorrowerID:       l.BorrowerID,
		BorrowerName:     l.BorrowerName,
		LoanAmount:       money.FormatMinor(l.LoanAmount),
		InterestAmount:   money.FormatMinor(l.InterestAmount),
		LoanTerm:         l.LoanTerm,
		TermType:         string(l.TermType),
		TermLabel:        l.TermType.Label(),
		ReleaseDate:      calendar.Format(l.ReleaseDate),
		DueDate:          calendar.Format(l.DueDate),
		TotalInterest:    money.FormatMinor(l.TotalInterest),
		TotalPayable:     money.FormatMinor(l.TotalPayable),
		PaymentPerPeriod: money.FormatMinor(l.PaymentPerPeriod),
		RemainingBalance: money.FormatMinor(l.RemainingBalance),
		Status:           string(l.Status),
	}
}

func newLoanViews(loans []models.Loan) []loanView {
	views := make([]loanView, 0, len(loans))
	for _, l := range loans {
		views = append(views, newLoanView(l))
	}
	return views
}

type paymentView struct {
	ID           int64   `json:"id"`
	LoanID       int64   `json:"loan_id"`
	BorrowerName string  `json:"borrower_name"`
	PaymentDate  string  `json:"payment_date"`
	AmountPaid   string  `json:"amount_paid"`
	BalanceAfter string  `json:"balance_after"`
	IsLate       bool    `json:"is_late"`
	Remarks      *string `json:"remarks"`
}

func newPaymentView(p models.Payment) paymentView {
	return paymentView{
		ID:           p.ID,
		LoanID:       p.LoanID,
		BorrowerName: p.BorrowerName,
		PaymentDate:  calendar.Format(p.PaymentDate),
		AmountPaid:   money.FormatMinor(p.AmountPaid),
		BalanceAfter: money.FormatMinor(p.BalanceAfter),
		IsLate:       p.IsLate,
		Remarks:      p.Remarks,
	}
}

func newPaymentViews(payments []models.Payment) []paymentView {
	views := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, newPaymentView(p))
	}
	return views
}

type capitalView struct {
	ID            int64     `json:"id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	BalanceAfter  string    `json:"balance_after"`
	Description   *string   `json:"description"`
	ReferenceType *string   `json:"reference_type"`
	ReferenceID   *int64    `json:"reference_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func newCapitalView(t models.CapitalTransaction) capitalView {
	return capitalView{
		ID:            t.ID,
		Type:          string(t.Type),
		Amount:        money.FormatMinor(t.Amount),
		BalanceAfter:  money.FormatMinor(t.BalanceAfter),
		Description:   t.Description,
		ReferenceType: t.ReferenceType,
		ReferenceID:   t.ReferenceID,
		CreatedAt:     t.CreatedAt,
	}
}

type installmentView struct {
	Period  int    `json:"period"`
	DueDate string `json:"due_date"`
	Amount  string `json:"amount"`
}

func newInstallmentViews(schedule []amortization.Installment) []installmentView {
	views := make([]installmentView, 0, len(schedule))
	for _, i := range schedule {
		views = append(views, installmentView{
			Period:  i.Period,
			DueDate: calendar.Format(i.DueDate),
			Amount:  money.FormatMinor(i.Amount),
		})
	}
	return views
}

type adminView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsSuper   bool      `json:"is_super"`
	Roles     []string  `json:"roles,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newAdminView(a models.Admin, roles []string) adminView {
	return adminView{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		IsSuper:   a.IsSuper,
		Roles:     roles,
		CreatedAt: a.CreatedAt,
	}
}
