package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recon-ledger/internal/apperr"
	"recon-ledger/internal/models"
	"recon-ledger/internal/util"
)

// User is a decrypted profile.
type User struct {
	ID          string
	Email       string
	FirstName   *string
	LastName    *string
	Address     *string
	SecretCheck string
	CreatedAt   time.Time
}

// NewUser is the input to CreateUser.
type NewUser struct {
	Email       string
	FirstName   *string
	LastName    *string
	Address     *string
	SecretCheck string
}

// UserPatch is a partial profile update; nil fields are left alone.
type UserPatch struct {
	Email     *string
	FirstName *string
	LastName  *string
	Address   *string
}

// IsEmpty reports whether no field was supplied.
func (p UserPatch) IsEmpty() bool {
	return p.Email == nil && p.FirstName == nil && p.LastName == nil && p.Address == nil
}

// CreateUser fails with apperr.ErrConstraint when the email is taken.
func (s *Store) CreateUser(ctx context.Context, u NewUser) (string, error) {
	email := strings.TrimSpace(u.Email)
	if err := util.ValidateEmail(email); err != nil {
		return "", apperr.Invalid(err.Error())
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return "", fmt.Errorf("check email: %w", err)
	}
	if n > 0 {
		return "", fmt.Errorf("user %s: %w", email, apperr.ErrConstraint)
	}

	row := models.User{Email: email, SecretCheck: u.SecretCheck}
	var err error
	if row.FirstName, err = s.encryptPtr(nullable(u.FirstName)); err != nil {
		return "", err
	}
	if row.LastName, err = s.encryptPtr(nullable(u.LastName)); err != nil {
		return "", err
	}
	if row.Address, err = s.encryptPtr(nullable(u.Address)); err != nil {
		return "", err
	}
	return s.insert(ctx, s.db, "user", &row, func(id string) { row.ID = id })
}

// GetUserByEmail returns apperr.ErrNotFound when absent.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.findUser(ctx, "email = ?", strings.TrimSpace(email))
}

// GetUserByID returns apperr.ErrNotFound when absent.
func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.findUser(ctx, "id = ?", id)
}

// GetFirstUser returns the earliest created user. Stores hold one user.
func (s *Store) GetFirstUser(ctx context.Context) (*User, error) {
	return s.findUser(ctx, "1 = 1")
}

func (s *Store) findUser(ctx context.Context, query string, args ...interface{}) (*User, error) {
	var rows []models.User
	if err := s.db.WithContext(ctx).
		Where(query, args...).
		Order("created_at ASC, rowid ASC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperr.ErrNotFound
	}
	r := &rows[0]
	return &User{
		ID:          r.ID,
		Email:       r.Email,
		FirstName:   s.decryptPtr(r.ID, "first_name", r.FirstName),
		LastName:    s.decryptPtr(r.ID, "last_name", r.LastName),
		Address:     s.decryptPtr(r.ID, "address", r.Address),
		SecretCheck: r.SecretCheck,
		CreatedAt:   r.CreatedAt,
	}, nil
}

// UpdateUser applies only the supplied fields and returns rows affected.
func (s *Store) UpdateUser(ctx context.Context, id string, p UserPatch) (int64, error) {
	if p.IsEmpty() {
		return 0, nil
	}

	fields := map[string]interface{}{}
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if err := util.ValidateEmail(email); err != nil {
			return 0, apperr.Invalid(err.Error())
		}
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("email = ? AND id <> ?", email, id).Count(&n).Error; err != nil {
			return 0, fmt.Errorf("check email: %w", err)
		}
		if n > 0 {
			return 0, fmt.Errorf("user %s: %w", email, apperr.ErrConstraint)
		}
		fields["email"] = email
	}
	for col, val := range map[string]*string{
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"address":    p.Address,
	} {
		if val == nil {
			continue
		}
		enc, err := s.encryptPtr(nullable(val))
		if err != nil {
			return 0, err
		}
		fields[col] = enc
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			return 0, fmt.Errorf("update user: %w", apperr.ErrConstraint)
		}
		return 0, fmt.Errorf("update user: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// SetSecretCheck replaces the bcrypt verifier of the store secret.
func (s *Store) SetSecretCheck(ctx context.Context, id, check string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("secret_check", check)
	if res.Error != nil {
		return fmt.Errorf("set secret check: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
