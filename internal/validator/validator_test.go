package validator

import "testing"

type sample struct {
	Name   string `json:"full_name" validate:"required,max=10"`
	Status string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	errs := Struct(sample{Status: "gone"})
	if errs["full_name"] != "required" || errs["status"] != "oneof" {
		t.Fatalf("unexpected errors: %#v", errs)
	}
	if errs := Struct(sample{Name: "Ana", Status: "active"}); errs != nil {
		t.Fatalf("expected valid, got %#v", errs)
	}
}

func TestNormalizePhone(t *testing.T) {
	got, err := NormalizePhone("0917 123 4567", "PH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "+639171234567" {
		t.Fatalf("unexpected number: %s", got)
	}
	if _, err := NormalizePhone("12", "PH"); err != ErrInvalidPhone {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
}

func TestEmailAndPassword(t *testing.T) {
	if ValidateEmail("admin@example.com") != nil || ValidateEmail("nope") == nil {
		t.Fatalf("unexpected email validation")
	}
	if ValidatePassword("short") == nil || ValidatePassword("longenough") != nil {
		t.Fatalf("unexpected password validation")
	}
}
