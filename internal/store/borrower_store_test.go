package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"lending/internal/models"
)

func TestBorrowerStoreCreate(t *testing.T) {
	tx := stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "INSERT INTO borrowers") || !strings.Contains(query, "RETURNING") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 5 || args[0] != "Ana Cruz" || args[4] != models.BorrowerActive {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*models.Borrower) = models.Borrower{ID: 3, FullName: "Ana Cruz"}
			return nil
		},
	}
	row, err := NewBorrowerStore(stubDB{}).Create(context.Background(), tx, BorrowerInput{
		FullName: "Ana Cruz", Address: "Cebu", ContactNumber: "+639171234567", Status: models.BorrowerActive,
	})
	if err != nil || row.ID != 3 {
		t.Fatalf("unexpected result: %#v %v", row, err)
	}
}

func TestBorrowerStoreListFilters(t *testing.T) {
	var countQuery string
	store := NewBorrowerStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			countQuery = query
			if len(args) != 2 || args[0] != "%ana%" || args[1] != models.BorrowerInactive {
				t.Fatalf("unexpected count args: %#v", args)
			}
			*dest.(*int) = 1
			return nil
		},
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "active_loans_count") || !strings.Contains(query, "LIMIT $3 OFFSET $4") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 4 || args[2] != 15 || args[3] != 0 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]BorrowerSummary) = []BorrowerSummary{{Borrower: models.Borrower{ID: 9}, LoansCount: 2}}
			return nil
		},
	})
	rows, total, err := store.List(context.Background(), BorrowerFilter{Search: "ana", Status: models.BorrowerInactive})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(countQuery, "b.contact_number ILIKE $1") {
		t.Fatalf("search should cover contact number: %s", countQuery)
	}
	if total != 1 || len(rows) != 1 || rows[0].ID != 9 || rows[0].LoansCount != 2 {
		t.Fatalf("unexpected rows: %#v total=%d", rows, total)
	}
}

func TestBorrowerStoreDelete(t *testing.T) {
	exec := stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "DELETE FROM borrowers") || args[0] != int64(4) {
				t.Fatalf("unexpected exec: %s %#v", query, args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	rows, err := NewBorrowerStore(stubDB{}).Delete(context.Background(), exec, 4)
	if err != nil || rows != 1 {
		t.Fatalf("unexpected result: %d %v", rows, err)
	}
}

func TestBorrowerStoreGetForUpdateLocks(t *testing.T) {
	tx := stubDB{
		getFn: func(_ context.Context, _ any, query string, _ ...any) error {
			if !strings.HasSuffix(strings.TrimSpace(query), "FOR UPDATE") {
				t.Fatalf("expected row lock: %s", query)
			}
			return sql.ErrNoRows
		},
	}
	if _, err := NewBorrowerStore(stubDB{}).GetForUpdate(context.Background(), tx, 1); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}
