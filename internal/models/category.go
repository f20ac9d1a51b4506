package models

import "time"

// Category represents income/expense category.
type Category struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:36;uniqueIndex:idx_category_user_name_type,priority:1;not null"`
	Name      string `gorm:"size:64;uniqueIndex:idx_category_user_name_type,priority:2;not null"`
	Type      string `gorm:"size:16;uniqueIndex:idx_category_user_name_type,priority:3;not null"` // income / expense
	IsDefault bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
