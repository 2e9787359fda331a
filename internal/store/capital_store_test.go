package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"lending/internal/models"

	"github.com/lib/pq"
)

func TestCapitalStoreLockLedger(t *testing.T) {
	exec := stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "pg_advisory_xact_lock($1)") || args[0] != ledgerLockKey {
				t.Fatalf("unexpected lock: %s %#v", query, args)
			}
			return stubResult{}, nil
		},
	}
	if err := NewCapitalStore(stubDB{}).LockLedger(context.Background(), exec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCapitalStoreLatestBalanceUsesHighestID(t *testing.T) {
	store := NewCapitalStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, _ ...any) error {
			if !strings.Contains(query, "ORDER BY id DESC LIMIT 1") || !strings.Contains(query, "COALESCE") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*int64) = 500000
			return nil
		},
	})
	balance, err := store.CurrentBalance(context.Background())
	if err != nil || balance != 500000 {
		t.Fatalf("unexpected result: %d %v", balance, err)
	}
}

func TestCapitalStoreInsertMapsReference(t *testing.T) {
	tx := stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "INSERT INTO capital_transactions") {
				t.Fatalf("unexpected query: %s", query)
			}
			refType, ok := args[4].(*string)
			if !ok || refType == nil || *refType != "loan" {
				t.Fatalf("unexpected reference type: %#v", args[4])
			}
			refID, ok := args[5].(*int64)
			if !ok || refID == nil || *refID != 21 {
				t.Fatalf("unexpected reference id: %#v", args[5])
			}
			*dest.(*models.CapitalTransaction) = models.CapitalTransaction{ID: 99, BalanceAfter: args[2].(int64)}
			return nil
		},
	}
	row, err := NewCapitalStore(stubDB{}).Insert(context.Background(), tx, CapitalInput{
		Type: models.TxLoanRelease, Amount: 600000, BalanceAfter: 400000, Reference: models.LoanRef(21),
	})
	if err != nil || row.ID != 99 || row.BalanceAfter != 400000 {
		t.Fatalf("unexpected result: %#v %v", row, err)
	}
}

func TestCapitalStoreTotalsIncludesEveryType(t *testing.T) {
	store := NewCapitalStore(stubDB{
		selectFn: func(_ context.Context, dest any, _ string, _ ...any) error {
			*dest.(*[]typeTotal) = []typeTotal{{Type: models.TxDeposit, Total: 1000}}
			return nil
		},
	})
	totals, err := store.Totals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals[models.TxDeposit] != 1000 || len(totals) != len(models.TransactionTypes) {
		t.Fatalf("unexpected totals: %#v", totals)
	}
	if _, ok := totals[models.TxPaymentReversal]; !ok {
		t.Fatalf("expected zero entry for payment_reversal")
	}
}

func TestCapitalStoreListTypeFilter(t *testing.T) {
	store := NewCapitalStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "type = ANY($1)") {
				t.Fatalf("unexpected count query: %s", query)
			}
			if _, ok := args[0].(*pq.StringArray); !ok {
				t.Fatalf("expected pq string array, got %T", args[0])
			}
			*dest.(*int) = 0
			return nil
		},
		selectFn: func(_ context.Context, _ any, query string, args ...any) error {
			if !strings.Contains(query, "ORDER BY id DESC") || args[1] != 20 {
				t.Fatalf("unexpected select: %s %#v", query, args)
			}
			return nil
		},
	})
	if _, _, err := store.List(context.Background(), CapitalFilter{Types: []models.TransactionType{models.TxDeposit}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCapitalStoreSumForReferenceSkipsNone(t *testing.T) {
	store := NewCapitalStore(stubDB{})
	sum, err := store.SumForReference(context.Background(), stubDB{
		getFn: func(context.Context, any, string, ...any) error {
			t.Fatalf("no query expected for empty reference")
			return nil
		},
	}, models.Reference{})
	if err != nil || sum != 0 {
		t.Fatalf("unexpected result: %d %v", sum, err)
	}
}
