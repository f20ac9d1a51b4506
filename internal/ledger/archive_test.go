package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"recon-ledger/internal/apperr"
	"recon-ledger/internal/backup"
	"recon-ledger/internal/store"
)

func descriptions(t *testing.T, a *App) []string {
	t.Helper()
	snap, err := a.LoadAll(context.Background(), "")
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	var out []string
	for _, tx := range snap.Transactions {
		out = append(out, tx.Date+" "+tx.Description+" "+tx.Amount.StringFixed(2))
	}
	sort.Strings(out)
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestExportImportRoundTrip(t *testing.T) {
	a, _, cfg := newTestApp(t)
	onboard(t, a)
	ctx := context.Background()

	submit(t, a, "2024-01-10", "50.00", store.Credit, "Transfer")
	submit(t, a, "2024-01-12", "9.99", store.Debit, "Music")
	before := descriptions(t, a)

	archive := filepath.Join(filepath.Dir(cfg.Database.Path), "export", "ledger.backup")
	if err := a.ExportStore(ctx, archive, "correct-password-123"); err != nil {
		t.Fatalf("ExportStore failed: %v", err)
	}

	submit(t, a, "2024-01-15", "3.00", store.Debit, "After export")

	if err := a.ImportStore(ctx, archive, "wrong-password-456"); !errors.Is(err, apperr.ErrBadPassword) {
		t.Fatalf("wrong password error = %v, want ErrBadPassword", err)
	}
	if got := descriptions(t, a); len(got) != 3 {
		t.Fatalf("live store changed by failed import: %v", got)
	}
	submit(t, a, "2024-01-16", "1.00", store.Debit, "Still writable")

	if err := a.ImportStore(ctx, archive, "correct-password-123"); err != nil {
		t.Fatalf("ImportStore failed: %v", err)
	}
	if got := descriptions(t, a); !equal(got, before) {
		t.Errorf("after restore = %v, want %v", got, before)
	}
	if _, err := os.Stat(cfg.Database.Path + ".prev"); !os.IsNotExist(err) {
		t.Error("previous store file left after a successful restore")
	}
}

func TestImportStore_UnreadableArchiveRollsBack(t *testing.T) {
	a, _, cfg := newTestApp(t)
	onboard(t, a)
	ctx := context.Background()
	submit(t, a, "2024-03-01", "5.00", store.Debit, "Kept")

	// a valid archive whose payload is not a database
	archive := filepath.Join(filepath.Dir(cfg.Database.Path), "junk.backup")
	sealed, err := backup.Seal("correct-password-123", []byte("definitely not sqlite, just text padding out a page"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archive, sealed, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := a.ImportStore(ctx, archive, "correct-password-123"); err == nil {
		t.Fatal("ImportStore of a non-database succeeded")
	}
	if !a.Unlocked() {
		t.Fatal("previous store not reopened after failed restore")
	}
	got := descriptions(t, a)
	if len(got) != 1 || got[0] != "2024-03-01 Kept 5.00" {
		t.Errorf("after rollback = %v", got)
	}
}

func TestExportStore_Validation(t *testing.T) {
	a, _, _ := newTestApp(t)
	onboard(t, a)
	err := a.ExportStore(context.Background(), "../../etc/ledger.backup", "correct-password-123")
	if !apperr.IsValidation(err) {
		t.Errorf("traversal error = %v, want ValidationError", err)
	}
	err = a.ExportStore(context.Background(), filepath.Join(t.TempDir(), "x.backup"), "short")
	if !apperr.IsValidation(err) {
		t.Errorf("short password error = %v, want ValidationError", err)
	}
}
