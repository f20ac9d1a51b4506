package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"recon-ledger/internal/apperr"
	"recon-ledger/internal/config"
	"recon-ledger/internal/models"

	"github.com/shopspring/decimal"
)

const testSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(config.DatabaseConfig{Path: path}, testSecret, opts...)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store) string {
	t.Helper()
	id, err := s.CreateUser(context.Background(), NewUser{Email: "owner@example.com"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return id
}

func strp(s string) *string { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTx(owner, date, amount string, typ TxType) NewTransaction {
	return NewTransaction{
		OwnerID:     owner,
		Date:        date,
		Description: "Coffee Shop",
		Amount:      dec(amount),
		Type:        typ,
	}
}

func TestCreateTransaction_EncryptsAtRest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s)

	in := newTx(owner, "2024-01-10", "12.34", Debit)
	in.Category = strp("Dining")
	in.CheckNumber = strp("1001")
	id, err := s.CreateTransaction(ctx, in)
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if id == "" {
		t.Fatal("CreateTransaction returned empty id")
	}

	var raw models.Transaction
	if err := s.db.Where("id = ?", id).First(&raw).Error; err != nil {
		t.Fatalf("query raw row: %v", err)
	}
	if raw.Description == "Coffee Shop" || strings.Count(raw.Description, ":") != 2 {
		t.Errorf("description stored as %q, want iv:tag:ciphertext", raw.Description)
	}
	if raw.Category == nil || *raw.Category == "Dining" {
		t.Errorf("category not encrypted at rest: %v", raw.Category)
	}
	if raw.CheckNumber == nil || *raw.CheckNumber != "1001" {
		t.Errorf("check number should be stored in clear, got %v", raw.CheckNumber)
	}
	if raw.AmountCent != 1234 {
		t.Errorf("AmountCent = %d, want 1234", raw.AmountCent)
	}

	got, err := s.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if got.Description != "Coffee Shop" || got.Category == nil || *got.Category != "Dining" {
		t.Errorf("decrypted = %q/%v", got.Description, got.Category)
	}
	if !got.Amount.Equal(dec("12.34")) || got.Type != Debit || got.IsReconciled {
		t.Errorf("got %+v", got)
	}
}

func TestCreateTransaction_AmountBounds(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s)

	for _, bad := range []string{"-5", "1000000000"} {
		_, err := s.CreateTransaction(ctx, newTx(owner, "2024-01-01", bad, Debit))
		if !apperr.IsValidation(err) {
			t.Errorf("amount %s: error = %v, want ValidationError", bad, err)
		}
	}
	if _, err := s.CreateTransaction(ctx, newTx(owner, "2024-01-01", "999999999.99", Credit)); err != nil {
		t.Errorf("amount 999999999.99: error = %v, want nil", err)
	}
}

func TestCreateTransaction_ReportsAllViolations(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateTransaction(context.Background(), NewTransaction{
		OwnerID: "u",
		Date:    "01/02/2024",
		Amount:  dec("-1"),
		Type:    "income",
	})
	var v *apperr.ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(v.Violations) != 3 {
		t.Errorf("violations = %v, want 3", v.Violations)
	}
}

func TestCreateTransaction_CollisionRetry(t *testing.T) {
	ids := []string{"dup"}
	attempts := 0
	gen := func() string {
		attempts++
		id := ids[0]
		if len(ids) > 1 {
			ids = ids[1:]
		}
		return id
	}
	s := openTestStore(t, WithIDGenerator(gen))
	ctx := context.Background()
	owner := "owner-1"

	if _, err := s.CreateTransaction(ctx, newTx(owner, "2024-01-01", "1.00", Debit)); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	// two collisions, then a fresh id
	ids = []string{"dup", "dup", "fresh"}
	attempts = 0
	id, err := s.CreateTransaction(ctx, newTx(owner, "2024-01-02", "2.00", Debit))
	if err != nil {
		t.Fatalf("create after collisions failed: %v", err)
	}
	if id != "fresh" || attempts != 3 {
		t.Errorf("id = %q after %d attempts, want fresh after 3", id, attempts)
	}

	// three collisions in a row
	ids = []string{"dup"}
	attempts = 0
	_, err = s.CreateTransaction(ctx, newTx(owner, "2024-01-03", "3.00", Debit))
	if !errors.Is(err, ErrIDExhausted) {
		t.Errorf("error = %v, want ErrIDExhausted", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestGetTransactionsByUser_DateDescending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s)

	for _, d := range []string{"2024-01-05", "2024-03-01", "2024-02-10"} {
		if _, err := s.CreateTransaction(ctx, newTx(owner, d, "5.00", Debit)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := s.CreateTransaction(ctx, newTx("someone-else", "2024-04-01", "5.00", Debit)); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := s.GetTransactionsByUser(ctx, owner)
	if err != nil {
		t.Fatalf("GetTransactionsByUser failed: %v", err)
	}
	want := []string{"2024-03-01", "2024-02-10", "2024-01-05"}
	if len(list) != len(want) {
		t.Fatalf("len = %d, want %d", len(list), len(want))
	}
	for i, d := range want {
		if list[i].Date != d {
			t.Errorf("list[%d].Date = %s, want %s", i, list[i].Date, d)
		}
	}
}

func TestUpdateTransaction_Partial(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s)

	in := newTx(owner, "2024-01-10", "50.00", Credit)
	in.Category = strp("Salary")
	id, _ := s.CreateTransaction(ctx, in)

	desc := "Payroll ACME"
	n, err := s.UpdateTransaction(ctx, id, TransactionPatch{Description: &desc, Category: strp("")})
	if err != nil || n != 1 {
		t.Fatalf("UpdateTransaction = (%d, %v), want (1, nil)", n, err)
	}
	got, _ := s.GetTransaction(ctx, id)
	if got.Description != desc {
		t.Errorf("Description = %q, want %q", got.Description, desc)
	}
	if got.Category != nil {
		t.Errorf("Category = %v, want cleared", *got.Category)
	}
	if !got.Amount.Equal(dec("50")) || got.Date != "2024-01-10" {
		t.Errorf("untouched fields changed: %+v", got)
	}

	if n, err := s.UpdateTransaction(ctx, "missing", TransactionPatch{Description: &desc}); err != nil || n != 0 {
		t.Errorf("update unknown id = (%d, %v), want (0, nil)", n, err)
	}
	if n, err := s.UpdateTransaction(ctx, id, TransactionPatch{}); err != nil || n != 0 {
		t.Errorf("empty patch = (%d, %v), want (0, nil)", n, err)
	}
	bad := dec("-1")
	if _, err := s.UpdateTransaction(ctx, id, TransactionPatch{Amount: &bad}); !apperr.IsValidation(err) {
		t.Errorf("negative amount patch error = %v, want ValidationError", err)
	}
}

func TestDeleteAndMarkReconciled(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s)
	id, _ := s.CreateTransaction(ctx, newTx(owner, "2024-01-10", "9.99", Debit))

	if n, err := s.MarkReconciled(ctx, id, true); err != nil || n != 1 {
		t.Fatalf("MarkReconciled = (%d, %v)", n, err)
	}
	got, _ := s.GetTransaction(ctx, id)
	if !got.IsReconciled {
		t.Error("IsReconciled = false after MarkReconciled(true)")
	}

	if n, err := s.DeleteTransaction(ctx, id); err != nil || n != 1 {
		t.Fatalf("DeleteTransaction = (%d, %v)", n, err)
	}
	if _, err := s.GetTransaction(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetTransaction after delete error = %v, want ErrNotFound", err)
	}
	if n, _ := s.DeleteTransaction(ctx, id); n != 0 {
		t.Errorf("second delete affected %d rows, want 0", n)
	}
}

func TestFindByAmount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s)

	a, _ := s.CreateTransaction(ctx, newTx(owner, "2024-01-05", "42.00", Debit))
	b, _ := s.CreateTransaction(ctx, newTx(owner, "2024-01-20", "42.00", Debit))
	c, _ := s.CreateTransaction(ctx, newTx(owner, "2024-01-25", "42.00", Debit))
	_, _ = s.CreateTransaction(ctx, newTx(owner, "2024-01-10", "42.01", Debit))
	_, _ = s.MarkReconciled(ctx, c, true)

	all, err := s.FindByAmount(ctx, AmountQuery{UserID: owner, Amount: dec("42"), IncludeReconciled: true})
	if err != nil {
		t.Fatalf("FindByAmount failed: %v", err)
	}
	wantOrder := []string{b, a, c}
	if len(all) != len(wantOrder) {
		t.Fatalf("len = %d, want %d", len(all), len(wantOrder))
	}
	for i, id := range wantOrder {
		if all[i].ID != id {
			t.Errorf("all[%d] = %s (%s), want %s", i, all[i].ID, all[i].Date, id)
		}
	}

	open, _ := s.FindByAmount(ctx, AmountQuery{UserID: owner, Amount: dec("42")})
	if len(open) != 2 {
		t.Errorf("unreconciled only: len = %d, want 2", len(open))
	}

	bounded, _ := s.FindByAmount(ctx, AmountQuery{
		UserID: owner, Amount: dec("42"), DateFrom: "2024-01-05", DateTo: "2024-01-20", IncludeReconciled: true,
	})
	if len(bounded) != 2 {
		t.Errorf("inclusive bounds: len = %d, want 2", len(bounded))
	}
}

func TestLegacyPlaintextPassthrough(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s)

	row := models.Transaction{ID: "legacy-1", OwnerID: owner, Date: "2023-12-31", Description: "old plain note", AmountCent: 100, Type: "debit"}
	if err := s.db.Create(&row).Error; err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	got, err := s.GetTransaction(ctx, "legacy-1")
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if got.Description != "old plain note" {
		t.Errorf("Description = %q, want passthrough", got.Description)
	}
}

func TestWrongSecretDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	s, err := Open(config.DatabaseConfig{Path: path}, testSecret)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	owner := createTestUser(t, s)
	in := newTx(owner, "2024-01-10", "1.00", Debit)
	in.Category = strp("Dining")
	id, _ := s.CreateTransaction(ctx, in)
	_ = s.Close()

	other, err := Open(config.DatabaseConfig{Path: path}, "a-different-secret")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer other.Close()

	got, err := other.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("read with wrong secret should not fail: %v", err)
	}
	if got.Description != "" || got.Category != nil {
		t.Errorf("got %q/%v, want empty description and nil category", got.Description, got.Category)
	}
}

func TestBackupTo(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s)
	_, _ = s.CreateTransaction(ctx, newTx(owner, "2024-01-10", "7.00", Credit))

	copyPath := filepath.Join(t.TempDir(), "snap", "copy.db")
	if err := s.BackupTo(ctx, copyPath); err != nil {
		t.Fatalf("BackupTo failed: %v", err)
	}

	snap, err := Open(config.DatabaseConfig{Path: copyPath}, testSecret)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer snap.Close()
	if err := snap.Verify(ctx); err != nil {
		t.Errorf("Verify snapshot: %v", err)
	}
	list, _ := snap.GetTransactionsByUser(ctx, owner)
	if len(list) != 1 || list[0].Description != "Coffee Shop" {
		t.Errorf("snapshot transactions = %+v", list)
	}
}

func TestBatch_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s)

	boom := errors.New("boom")
	err := s.Batch(ctx, func(tx *Store) error {
		if _, err := tx.CreateTransaction(ctx, newTx(owner, "2024-01-01", "1.00", Debit)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Batch error = %v, want boom", err)
	}
	list, _ := s.GetTransactionsByUser(ctx, owner)
	if len(list) != 0 {
		t.Errorf("rows after rollback = %d, want 0", len(list))
	}

	err = s.Batch(ctx, func(tx *Store) error {
		_, err := tx.CreateTransaction(ctx, newTx(owner, "2024-01-02", "2.00", Debit))
		return err
	})
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	list, _ = s.GetTransactionsByUser(ctx, owner)
	if len(list) != 1 || list[0].Description != "Coffee Shop" {
		t.Errorf("rows after commit = %+v", list)
	}
}
