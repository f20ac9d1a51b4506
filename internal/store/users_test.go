package store

import (
	"context"
	"errors"
	"testing"

	"recon-ledger/internal/apperr"
	"recon-ledger/internal/models"
)

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, NewUser{Email: "me@example.com"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	_, err := s.CreateUser(ctx, NewUser{Email: "me@example.com"})
	if !errors.Is(err, apperr.ErrConstraint) {
		t.Errorf("duplicate email error = %v, want ErrConstraint", err)
	}
	if _, err := s.CreateUser(ctx, NewUser{Email: "not-an-email"}); !apperr.IsValidation(err) {
		t.Errorf("bad email error = %v, want ValidationError", err)
	}
}

func TestUserLookups(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateUser(ctx, NewUser{
		Email:     "first@example.com",
		FirstName: strp("Ada"),
		Address:   strp("1 Main St"),
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if _, err := s.CreateUser(ctx, NewUser{Email: "second@example.com"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	first, err := s.GetFirstUser(ctx)
	if err != nil || first.ID != id {
		t.Fatalf("GetFirstUser = (%v, %v), want %s", first, err, id)
	}
	if first.FirstName == nil || *first.FirstName != "Ada" || first.Address == nil || *first.Address != "1 Main St" {
		t.Errorf("decrypted profile = %+v", first)
	}
	if first.LastName != nil {
		t.Errorf("LastName = %q, want nil", *first.LastName)
	}

	byEmail, err := s.GetUserByEmail(ctx, "first@example.com")
	if err != nil || byEmail.ID != id {
		t.Errorf("GetUserByEmail = (%v, %v)", byEmail, err)
	}
	if _, err := s.GetUserByID(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetUserByID(nope) error = %v, want ErrNotFound", err)
	}

	var raw models.User
	_ = s.db.Where("id = ?", id).First(&raw).Error
	if raw.FirstName == nil || *raw.FirstName == "Ada" {
		t.Error("first name should be encrypted at rest")
	}
}

func TestGetFirstUser_Empty(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetFirstUser(context.Background()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetFirstUser on empty store error = %v, want ErrNotFound", err)
	}
}

func TestUpdateUser_Partial(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id, _ := s.CreateUser(ctx, NewUser{Email: "me@example.com", FirstName: strp("Ada"), LastName: strp("L")})
	_, _ = s.CreateUser(ctx, NewUser{Email: "taken@example.com"})

	n, err := s.UpdateUser(ctx, id, UserPatch{LastName: strp("Lovelace")})
	if err != nil || n != 1 {
		t.Fatalf("UpdateUser = (%d, %v)", n, err)
	}
	u, _ := s.GetUserByID(ctx, id)
	if *u.FirstName != "Ada" || *u.LastName != "Lovelace" || u.Email != "me@example.com" {
		t.Errorf("after update = %+v", u)
	}

	if n, err := s.UpdateUser(ctx, id, UserPatch{}); err != nil || n != 0 {
		t.Errorf("empty patch = (%d, %v), want no-op", n, err)
	}
	if _, err := s.UpdateUser(ctx, id, UserPatch{Email: strp("taken@example.com")}); !errors.Is(err, apperr.ErrConstraint) {
		t.Errorf("email clash error = %v, want ErrConstraint", err)
	}
	if n, _ := s.UpdateUser(ctx, "missing", UserPatch{FirstName: strp("X")}); n != 0 {
		t.Errorf("unknown user affected %d rows", n)
	}
}

func TestSetSecretCheck(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := createTestUser(t, s)

	if err := s.SetSecretCheck(ctx, id, "hash"); err != nil {
		t.Fatalf("SetSecretCheck failed: %v", err)
	}
	u, _ := s.GetUserByID(ctx, id)
	if u.SecretCheck != "hash" {
		t.Errorf("SecretCheck = %q, want hash", u.SecretCheck)
	}
	if err := s.SetSecretCheck(ctx, "missing", "hash"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown user error = %v, want ErrNotFound", err)
	}
}
