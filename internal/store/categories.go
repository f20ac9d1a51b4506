package store

import (
	"context"
	"fmt"
	"strings"

	"recon-ledger/internal/apperr"
	"recon-ledger/internal/models"
	"recon-ledger/internal/util"

	"gorm.io/gorm"
)

// Category is a user's income or expense label.
type Category struct {
	ID        string
	UserID    string
	Name      string
	Type      string
	IsDefault bool
}

// DefaultCategories are seeded the first time a user has none.
var DefaultCategories = []Category{
	{Name: "Salary", Type: "income"},
	{Name: "Interest", Type: "income"},
	{Name: "Refund", Type: "income"},
	{Name: "Other Income", Type: "income"},
	{Name: "Groceries", Type: "expense"},
	{Name: "Dining", Type: "expense"},
	{Name: "Rent", Type: "expense"},
	{Name: "Utilities", Type: "expense"},
	{Name: "Transportation", Type: "expense"},
	{Name: "Healthcare", Type: "expense"},
	{Name: "Entertainment", Type: "expense"},
	{Name: "Shopping", Type: "expense"},
	{Name: "Other Expense", Type: "expense"},
}

// CreateCategory fails with apperr.ErrConstraint when name+type already
// exist for the user.
func (s *Store) CreateCategory(ctx context.Context, userID, name, typ string) (string, error) {
	return s.createCategory(ctx, s.db, userID, name, typ, false)
}

func (s *Store) createCategory(ctx context.Context, db *gorm.DB, userID, name, typ string, isDefault bool) (string, error) {
	name = strings.TrimSpace(name)
	v := &apperr.ValidationError{}
	if userID == "" {
		v.Add("user id is required")
	}
	if name == "" || len(name) > 64 {
		v.Add("category name must be 1-64 characters")
	}
	if err := util.ValidateCategoryType(typ); err != nil {
		v.Add(err.Error())
	}
	if err := v.Err(); err != nil {
		return "", err
	}

	var n int64
	if err := db.WithContext(ctx).Model(&models.Category{}).
		Where("user_id = ? AND name = ? AND type = ?", userID, name, typ).
		Count(&n).Error; err != nil {
		return "", fmt.Errorf("check category: %w", err)
	}
	if n > 0 {
		return "", fmt.Errorf("category %s/%s: %w", typ, name, apperr.ErrConstraint)
	}

	row := models.Category{UserID: userID, Name: name, Type: typ, IsDefault: isDefault}
	return s.insert(ctx, db, "category", &row, func(id string) { row.ID = id })
}

// ListCategories returns income categories first, then expense, by name.
func (s *Store) ListCategories(ctx context.Context, userID string) ([]Category, error) {
	var rows []models.Category
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("type DESC, name ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, Category{ID: r.ID, UserID: r.UserID, Name: r.Name, Type: r.Type, IsDefault: r.IsDefault})
	}
	return out, nil
}

// SeedDefaultCategories inserts DefaultCategories when the user has no
// categories at all. It returns how many were inserted; a second call is a
// no-op.
func (s *Store) SeedDefaultCategories(ctx context.Context, userID string) (int, error) {
	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Category{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
			return fmt.Errorf("count categories: %w", err)
		}
		if n > 0 {
			return nil
		}
		for _, c := range DefaultCategories {
			if _, err := s.createCategory(ctx, tx, userID, c.Name, c.Type, true); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// DeleteCategory refuses seeded defaults with apperr.ErrConstraint.
func (s *Store) DeleteCategory(ctx context.Context, userID, id string) (int64, error) {
	var rows []models.Category
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Limit(1).Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("find category: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if rows[0].IsDefault {
		return 0, fmt.Errorf("default category %q cannot be deleted: %w", rows[0].Name, apperr.ErrConstraint)
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Category{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete category: %w", res.Error)
	}
	return res.RowsAffected, nil
}
