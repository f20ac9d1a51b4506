package models

import "time"

// Transaction 表示一笔流水
// 金额用分存储，避免浮点误差；符号由 Type 表示，AmountCent 永远非负
type Transaction struct {
	ID           string  `gorm:"primaryKey;size:36"`
	OwnerID      string  `gorm:"size:36;index:idx_tx_owner_date,priority:1;not null"`
	Date         string  `gorm:"size:10;index:idx_tx_owner_date,priority:2;not null"` // YYYY-MM-DD
	Description  string  `gorm:"size:2048;not null"`                                  // 密文
	AmountCent   int64   `gorm:"index;not null"`
	Type         string  `gorm:"size:8;not null"` // debit / credit
	Category     *string `gorm:"size:1024"`       // 密文
	CheckNumber  *string `gorm:"size:64"`
	IsReconciled bool    `gorm:"not null;default:false"`
	AccountID    *string `gorm:"size:64"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
