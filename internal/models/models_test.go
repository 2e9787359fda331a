package models

import "testing"

func TestTransactionTypeSign(t *testing.T) {
	expected := map[TransactionType]int64{
		TxDeposit:         1,
		TxPaymentReceived: 1,
		TxWithdrawal:      -1,
		TxLoanRelease:     -1,
		TxPaymentReversal: -1,
	}
	for txType, sign := range expected {
		if txType.Sign() != sign {
			t.Fatalf("%s: expected sign %d, got %d", txType, sign, txType.Sign())
		}
	}
	if TransactionType("refund").Valid() {
		t.Fatalf("unexpected valid type")
	}
}

func TestReferenceColumnsRoundTrip(t *testing.T) {
	kind, id := PaymentRef(42).Columns()
	if kind == nil || *kind != "payment" || id == nil || *id != 42 {
		t.Fatalf("unexpected columns: %v %v", kind, id)
	}
	if ref := ReferenceFromColumns(kind, id); ref != PaymentRef(42) {
		t.Fatalf("unexpected reference: %#v", ref)
	}
	kind, id = Reference{}.Columns()
	if kind != nil || id != nil {
		t.Fatalf("expected nil columns for no reference")
	}
	unknown := "Borrower"
	seven := int64(7)
	if ref := ReferenceFromColumns(&unknown, &seven); !ref.IsNone() {
		t.Fatalf("expected none for unknown kind, got %#v", ref)
	}
}
