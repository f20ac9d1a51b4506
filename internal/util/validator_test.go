package util

import (
	"testing"

	"github.com/shopspring/decimal"
)

// TestValidateAmount_Valid 测试边界内金额
func TestValidateAmount_Valid(t *testing.T) {
	testCases := []string{"0", "0.01", "100.5", "999999999.99"}

	for _, s := range testCases {
		if err := ValidateAmount(decimal.RequireFromString(s)); err != nil {
			t.Errorf("ValidateAmount(%s) error = %v, want nil", s, err)
		}
	}
}

// TestValidateAmount_Invalid 测试负数与超上限金额（异常）
func TestValidateAmount_Invalid(t *testing.T) {
	testCases := []string{"-5", "-0.01", "1000000000", "999999999.991"}

	for _, s := range testCases {
		if err := ValidateAmount(decimal.RequireFromString(s)); err == nil {
			t.Errorf("ValidateAmount(%s) error = nil, want error", s)
		}
	}
}

func TestValidateDate(t *testing.T) {
	for _, d := range []string{"2024-01-01", "2024-02-29"} {
		if err := ValidateDate(d); err != nil {
			t.Errorf("ValidateDate(%q) error = %v, want nil", d, err)
		}
	}
	for _, d := range []string{"", "2024/01/01", "01-01-2024", "2023-02-29"} {
		if err := ValidateDate(d); err == nil {
			t.Errorf("ValidateDate(%q) error = nil, want error", d)
		}
	}
}

func TestValidateTxType(t *testing.T) {
	if err := ValidateTxType("debit"); err != nil {
		t.Errorf("ValidateTxType(debit) error = %v", err)
	}
	if err := ValidateTxType("credit"); err != nil {
		t.Errorf("ValidateTxType(credit) error = %v", err)
	}
	if err := ValidateTxType("income"); err == nil {
		t.Error("ValidateTxType(income) error = nil, want error")
	}
}

func TestValidateEmail(t *testing.T) {
	for _, e := range []string{"me@example.com", "a.b+c@mail.example.org"} {
		if err := ValidateEmail(e); err != nil {
			t.Errorf("ValidateEmail(%q) error = %v", e, err)
		}
	}
	for _, e := range []string{"", "plain", "me@localhost", "Me <me@example.com>"} {
		if err := ValidateEmail(e); err == nil {
			t.Errorf("ValidateEmail(%q) error = nil, want error", e)
		}
	}
}

func TestValidatePath(t *testing.T) {
	for _, p := range []string{"/tmp/backup.bin", "exports/ledger.bin", "./a..b/file"} {
		if err := ValidatePath(p); err != nil {
			t.Errorf("ValidatePath(%q) error = %v", p, err)
		}
	}
	for _, p := range []string{"", "../etc/passwd", "/tmp/../etc/shadow", "a/b/.."} {
		if err := ValidatePath(p); err == nil {
			t.Errorf("ValidatePath(%q) error = nil, want error", p)
		}
	}
}
