package store

import (
	"context"
	"errors"
	"testing"

	"recon-ledger/internal/apperr"
)

func TestSeedDefaultCategories_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s)

	n, err := s.SeedDefaultCategories(ctx, owner)
	if err != nil {
		t.Fatalf("first seed failed: %v", err)
	}
	if n != len(DefaultCategories) {
		t.Errorf("first seed inserted %d, want %d", n, len(DefaultCategories))
	}

	n, err = s.SeedDefaultCategories(ctx, owner)
	if err != nil || n != 0 {
		t.Errorf("second seed = (%d, %v), want (0, nil)", n, err)
	}

	list, _ := s.ListCategories(ctx, owner)
	if len(list) != len(DefaultCategories) {
		t.Errorf("categories = %d, want %d", len(list), len(DefaultCategories))
	}
	for _, c := range list {
		if !c.IsDefault {
			t.Errorf("seeded category %q not marked default", c.Name)
		}
	}
}

func TestSeedDefaultCategories_SkipsWhenUserHasAny(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s)

	if _, err := s.CreateCategory(ctx, owner, "Pets", "expense"); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	if n, _ := s.SeedDefaultCategories(ctx, owner); n != 0 {
		t.Errorf("seed inserted %d, want 0", n)
	}
}

func TestCreateCategory_Unique(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s)

	if _, err := s.CreateCategory(ctx, owner, "Travel", "expense"); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	if _, err := s.CreateCategory(ctx, owner, "Travel", "expense"); !errors.Is(err, apperr.ErrConstraint) {
		t.Errorf("duplicate error = %v, want ErrConstraint", err)
	}
	// same name, other type is allowed
	if _, err := s.CreateCategory(ctx, owner, "Travel", "income"); err != nil {
		t.Errorf("same name other type error = %v", err)
	}
	if _, err := s.CreateCategory(ctx, owner, "", "misc"); !apperr.IsValidation(err) {
		t.Errorf("invalid category error = %v, want ValidationError", err)
	}
}

func TestDeleteCategory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s)
	_, _ = s.SeedDefaultCategories(ctx, owner)
	custom, _ := s.CreateCategory(ctx, owner, "Pets", "expense")

	list, _ := s.ListCategories(ctx, owner)
	var defaultID string
	for _, c := range list {
		if c.IsDefault {
			defaultID = c.ID
			break
		}
	}
	if _, err := s.DeleteCategory(ctx, owner, defaultID); !errors.Is(err, apperr.ErrConstraint) {
		t.Errorf("delete default error = %v, want ErrConstraint", err)
	}
	if n, err := s.DeleteCategory(ctx, owner, custom); err != nil || n != 1 {
		t.Errorf("delete custom = (%d, %v), want (1, nil)", n, err)
	}
	if n, err := s.DeleteCategory(ctx, owner, "missing"); err != nil || n != 0 {
		t.Errorf("delete missing = (%d, %v), want (0, nil)", n, err)
	}
}
