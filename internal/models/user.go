package models

import "time"

// User is the single primary profile of a store. Name and address columns
// hold field-encrypted values.
type User struct {
	ID          string  `gorm:"primaryKey;size:36"`
	Email       string  `gorm:"size:255;uniqueIndex;not null"`
	FirstName   *string `gorm:"size:512"`
	LastName    *string `gorm:"size:512"`
	Address     *string `gorm:"size:2048"`
	SecretCheck string  `gorm:"size:128"` // bcrypt 校验值，用于恢复密钥时确认
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
