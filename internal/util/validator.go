package util

import (
	"fmt"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxAmount is the ceiling for a single transaction amount.
var MaxAmount = decimal.RequireFromString("999999999.99")

const DateLayout = "2006-01-02"

// ValidateAmount 验证金额（不能为负且不超过上限）
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("amount must not be negative, got %s", amount.String())
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("amount must not exceed %s, got %s", MaxAmount.StringFixed(2), amount.String())
	}
	return nil
}

// ValidateDate 验证日期格式（必须为 YYYY-MM-DD）
func ValidateDate(dateStr string) error {
	if dateStr == "" {
		return fmt.Errorf("date is empty")
	}
	if _, err := time.Parse(DateLayout, dateStr); err != nil {
		return fmt.Errorf("invalid date %q, want YYYY-MM-DD", dateStr)
	}
	return nil
}

// ValidateTxType accepts debit or credit.
func ValidateTxType(t string) error {
	if t != "debit" && t != "credit" {
		return fmt.Errorf("type must be debit or credit, got %q", t)
	}
	return nil
}

// ValidateCategoryType accepts income or expense.
func ValidateCategoryType(t string) error {
	if t != "income" && t != "expense" {
		return fmt.Errorf("category type must be income or expense, got %q", t)
	}
	return nil
}

// ValidateEmail checks for a bare address such as a@b.c.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return fmt.Errorf("email %q is invalid", email)
	}
	return nil
}

// ValidatePath rejects empty paths and any path with a ".." segment.
func ValidatePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("path is empty")
	}
	for _, seg := range strings.FieldsFunc(filepath.ToSlash(p), func(r rune) bool { return r == '/' }) {
		if seg == ".." {
			return fmt.Errorf("path %q must not contain '..'", p)
		}
	}
	return nil
}
