package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"lending/internal/models"
	"lending/internal/store"
	"lending/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// checkpointer is an in-memory store that can undo writes made since the
// checkpoint was taken.
type checkpointer interface {
	checkpoint() (restore func())
}

// ledgerTxRunner ends the in-memory ledger's transaction after fn, releasing
// its lock and discarding entries on failure. Writes to stores are undone on
// failure as well.
type ledgerTxRunner struct {
	ledger *memLedger
	stores []checkpointer
}

func (r ledgerTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	restores := make([]func(), 0, len(r.stores))
	for _, s := range r.stores {
		restores = append(restores, s.checkpoint())
	}
	err := fn(nil)
	if err != nil {
		for _, restore := range restores {
			restore()
		}
	}
	r.ledger.end(ctx, err != nil)
	return err
}

// memLedger is an in-memory CapitalStore. LockLedger behaves like a
// transaction-scoped advisory lock keyed by the caller's context.
type memLedger struct {
	lock    sync.Mutex
	stateMu sync.Mutex
	owner   context.Context
	mark    int
	entries []models.CapitalTransaction
	// insertErr fails every Insert when set.
	insertErr error
}

func newMemLedger(opening int64) *memLedger {
	l := &memLedger{}
	if opening > 0 {
		l.entries = append(l.entries, models.CapitalTransaction{ID: 1, Type: models.TxDeposit, Amount: opening, BalanceAfter: opening})
	}
	return l
}

func (l *memLedger) LockLedger(ctx context.Context, _ store.Execer) error {
	l.stateMu.Lock()
	if l.owner == ctx {
		l.stateMu.Unlock()
		return nil
	}
	l.stateMu.Unlock()
	l.lock.Lock()
	l.stateMu.Lock()
	l.owner = ctx
	l.mark = len(l.entries)
	l.stateMu.Unlock()
	return nil
}

func (l *memLedger) end(ctx context.Context, rollback bool) {
	l.stateMu.Lock()
	if l.owner != ctx {
		l.stateMu.Unlock()
		return
	}
	if rollback {
		l.entries = l.entries[:l.mark]
	}
	l.owner = nil
	l.stateMu.Unlock()
	l.lock.Unlock()
}

func (l *memLedger) snapshot() []models.CapitalTransaction {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return append([]models.CapitalTransaction(nil), l.entries...)
}

func (l *memLedger) LatestBalance(context.Context, store.Getter) (int64, error) {
	return l.CurrentBalance(context.Background())
}

func (l *memLedger) CurrentBalance(context.Context) (int64, error) {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	if len(l.entries) == 0 {
		return 0, nil
	}
	return l.entries[len(l.entries)-1].BalanceAfter, nil
}

func (l *memLedger) Insert(_ context.Context, _ store.Getter, input store.CapitalInput) (models.CapitalTransaction, error) {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	if l.insertErr != nil {
		return models.CapitalTransaction{}, l.insertErr
	}
	var id int64 = 1
	if n := len(l.entries); n > 0 {
		id = l.entries[n-1].ID + 1
	}
	kind, refID := input.Reference.Columns()
	entry := models.CapitalTransaction{
		ID:            id,
		Type:          input.Type,
		Amount:        input.Amount,
		BalanceAfter:  input.BalanceAfter,
		Description:   input.Description,
		ReferenceType: kind,
		ReferenceID:   refID,
		CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	l.entries = append(l.entries, entry)
	return entry, nil
}

func (l *memLedger) Totals(context.Context) (map[models.TransactionType]int64, error) {
	totals := make(map[models.TransactionType]int64)
	for _, t := range models.TransactionTypes {
		totals[t] = 0
	}
	for _, e := range l.snapshot() {
		totals[e.Type] += e.Amount
	}
	return totals, nil
}

func (l *memLedger) List(_ context.Context, filter store.CapitalFilter) ([]models.CapitalTransaction, int, error) {
	entries := l.snapshot()
	return entries, len(entries), nil
}

func (l *memLedger) ListAfter(_ context.Context, afterID int64, limit int) ([]models.CapitalTransaction, error) {
	out := []models.CapitalTransaction{}
	for _, e := range l.snapshot() {
		if e.ID > afterID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *memLedger) SumForReference(_ context.Context, _ store.Getter, ref models.Reference) (int64, error) {
	var sum int64
	for _, e := range l.snapshot() {
		if e.Reference() == ref {
			sum += e.Type.Sign() * e.Amount
		}
	}
	return sum, nil
}

type memLoans struct {
	mu           sync.Mutex
	loans        map[int64]models.Loan
	nextID       int64
	borrowerName string
}

func newMemLoans(loans ...models.Loan) *memLoans {
	m := &memLoans{loans: map[int64]models.Loan{}, nextID: 100, borrowerName: "Maria Santos"}
	for _, loan := range loans {
		m.loans[loan.ID] = loan
	}
	return m
}

func (m *memLoans) checkpoint() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := make(map[int64]models.Loan, len(m.loans))
	for id, loan := range m.loans {
		saved[id] = loan
	}
	nextID := m.nextID
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.loans = saved
		m.nextID = nextID
	}
}

func (m *memLoans) Create(_ context.Context, _ store.Getter, loan models.Loan) (models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	loan.ID = m.nextID
	loan.BorrowerName = m.borrowerName
	m.loans[loan.ID] = loan
	return loan, nil
}

func (m *memLoans) GetByID(_ context.Context, id int64) (models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[id]
	if !ok {
		return models.Loan{}, sql.ErrNoRows
	}
	return loan, nil
}

func (m *memLoans) GetForUpdate(ctx context.Context, _ store.Getter, id int64) (models.Loan, error) {
	return m.GetByID(ctx, id)
}

func (m *memLoans) UpdateBalance(_ context.Context, _ store.Execer, id int64, remaining int64, status models.LoanStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[id]
	if !ok {
		return sql.ErrNoRows
	}
	loan.RemainingBalance = remaining
	loan.Status = status
	m.loans[id] = loan
	return nil
}

func (m *memLoans) sorted() []models.Loan {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Loan, 0, len(m.loans))
	for _, loan := range m.loans {
		out = append(out, loan)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memLoans) List(_ context.Context, filter store.LoanFilter) ([]models.Loan, int, error) {
	out := []models.Loan{}
	for _, loan := range m.sorted() {
		if filter.Status != "" && loan.Status != filter.Status {
			continue
		}
		out = append(out, loan)
	}
	return out, len(out), nil
}

func (m *memLoans) SweepOverdue(_ context.Context, _ store.Execer, today time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, loan := range m.loans {
		if loan.Status == models.LoanOngoing && loan.RemainingBalance > 0 && !loan.DueDate.After(today) {
			loan.Status = models.LoanOverdue
			m.loans[id] = loan
			n++
		}
	}
	return n, nil
}

func (m *memLoans) ListByBorrower(_ context.Context, borrowerID int64) ([]models.Loan, error) {
	out := []models.Loan{}
	for _, loan := range m.sorted() {
		if loan.BorrowerID == borrowerID {
			out = append(out, loan)
		}
	}
	return out, nil
}

func (m *memLoans) ListOverdue(context.Context) ([]models.Loan, error) {
	out := []models.Loan{}
	for _, loan := range m.sorted() {
		if loan.Status == models.LoanOverdue {
			out = append(out, loan)
		}
	}
	return out, nil
}

func (m *memLoans) Recent(_ context.Context, limit int) ([]models.Loan, error) {
	loans := m.sorted()
	out := []models.Loan{}
	for i := len(loans) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, loans[i])
	}
	return out, nil
}

func (m *memLoans) overdueIDs() []int64 {
	ids := []int64{}
	for _, loan := range m.sorted() {
		if loan.Status == models.LoanOverdue {
			ids = append(ids, loan.ID)
		}
	}
	return ids
}

type memPayments struct {
	payments map[int64]models.Payment
	nextID   int64
	deleted  []int64
}

func newMemPayments(payments ...models.Payment) *memPayments {
	m := &memPayments{payments: map[int64]models.Payment{}, nextID: 500}
	for _, p := range payments {
		m.payments[p.ID] = p
	}
	return m
}

func (m *memPayments) checkpoint() func() {
	saved := make(map[int64]models.Payment, len(m.payments))
	for id, p := range m.payments {
		saved[id] = p
	}
	nextID, deleted := m.nextID, len(m.deleted)
	return func() {
		m.payments = saved
		m.nextID = nextID
		m.deleted = m.deleted[:deleted]
	}
}

func (m *memPayments) Create(_ context.Context, _ store.Getter, payment models.Payment) (models.Payment, error) {
	m.nextID++
	payment.ID = m.nextID
	m.payments[payment.ID] = payment
	return payment, nil
}

func (m *memPayments) GetByID(_ context.Context, id int64) (models.Payment, error) {
	payment, ok := m.payments[id]
	if !ok {
		return models.Payment{}, sql.ErrNoRows
	}
	return payment, nil
}

func (m *memPayments) GetForUpdate(ctx context.Context, _ store.Getter, id int64) (models.Payment, error) {
	return m.GetByID(ctx, id)
}

func (m *memPayments) Update(_ context.Context, _ store.Execer, payment models.Payment) error {
	if _, ok := m.payments[payment.ID]; !ok {
		return sql.ErrNoRows
	}
	m.payments[payment.ID] = payment
	return nil
}

func (m *memPayments) Delete(_ context.Context, _ store.Execer, id int64) error {
	delete(m.payments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memPayments) List(context.Context, store.PaymentFilter) ([]models.Payment, int, error) {
	out := []models.Payment{}
	for _, p := range m.payments {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memPayments) ListByLoan(_ context.Context, loanID int64) ([]models.Payment, error) {
	out := []models.Payment{}
	for _, p := range m.payments {
		if p.LoanID == loanID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type stubBorrowerLocker struct {
	getForUpdateFn func(ctx context.Context, tx store.Getter, id int64) (models.Borrower, error)
}

func (s stubBorrowerLocker) GetForUpdate(ctx context.Context, tx store.Getter, id int64) (models.Borrower, error) {
	if s.getForUpdateFn == nil {
		return models.Borrower{ID: id, FullName: "Maria Santos", Status: models.BorrowerActive}, nil
	}
	return s.getForUpdateFn(ctx, tx, id)
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []store.AuditEntry
}

func (r *recordingAudit) Record(_ context.Context, entry store.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

type stubHub struct {
	mu    sync.Mutex
	calls []websocket.CapitalUpdate
}

func (s *stubHub) BroadcastCapital(update websocket.CapitalUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, update)
}

var errBoom = errors.New("boom")

func date(raw string) time.Time {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		panic(err)
	}
	return t
}
