package store

import (
	"context"
	"fmt"
	"time"

	"recon-ledger/internal/apperr"
	"recon-ledger/internal/models"
	"recon-ledger/internal/util"

	"github.com/shopspring/decimal"
)

// TxType carries the sign of a transaction.
type TxType string

const (
	Debit  TxType = "debit"  // decreases balance
	Credit TxType = "credit" // increases balance
)

// Transaction is a decrypted ledger row.
type Transaction struct {
	ID           string
	OwnerID      string
	Date         string
	Description  string
	Amount       decimal.Decimal
	Type         TxType
	Category     *string
	CheckNumber  *string
	IsReconciled bool
	AccountID    *string
	CreatedAt    time.Time
}

// NewTransaction is the input to CreateTransaction. The store assigns the id.
type NewTransaction struct {
	OwnerID      string
	Date         string
	Description  string
	Amount       decimal.Decimal
	Type         TxType
	Category     *string
	CheckNumber  *string
	IsReconciled bool
	AccountID    *string
}

// Validate reports every violation at once.
func (t NewTransaction) Validate() error {
	v := &apperr.ValidationError{}
	if t.OwnerID == "" {
		v.Add("owner id is required")
	}
	if err := util.ValidateDate(t.Date); err != nil {
		v.Add(err.Error())
	}
	if err := util.ValidateAmount(t.Amount); err != nil {
		v.Add(err.Error())
	}
	if err := util.ValidateTxType(string(t.Type)); err != nil {
		v.Add(err.Error())
	}
	return v.Err()
}

// TransactionPatch is a partial update; nil fields are left alone.
// An empty string for Category, CheckNumber or AccountID clears the column.
type TransactionPatch struct {
	Date         *string
	Description  *string
	Amount       *decimal.Decimal
	Type         *TxType
	Category     *string
	CheckNumber  *string
	IsReconciled *bool
	AccountID    *string
}

// Validate checks the supplied fields only.
func (p TransactionPatch) Validate() error {
	v := &apperr.ValidationError{}
	if p.Date != nil {
		if err := util.ValidateDate(*p.Date); err != nil {
			v.Add(err.Error())
		}
	}
	if p.Amount != nil {
		if err := util.ValidateAmount(*p.Amount); err != nil {
			v.Add(err.Error())
		}
	}
	if p.Type != nil {
		if err := util.ValidateTxType(string(*p.Type)); err != nil {
			v.Add(err.Error())
		}
	}
	return v.Err()
}

// IsEmpty reports whether no field was supplied.
func (p TransactionPatch) IsEmpty() bool {
	return p.Date == nil && p.Description == nil && p.Amount == nil && p.Type == nil &&
		p.Category == nil && p.CheckNumber == nil && p.IsReconciled == nil && p.AccountID == nil
}

// ToCents converts a decimal amount to integer cents, rounding half away from zero.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromCents converts stored cents back to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func nullable(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// CreateTransaction validates and stores t, returning the generated id.
func (s *Store) CreateTransaction(ctx context.Context, t NewTransaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	desc, err := s.encrypt(t.Description)
	if err != nil {
		return "", err
	}
	cat, err := s.encryptPtr(nullable(t.Category))
	if err != nil {
		return "", err
	}

	row := models.Transaction{
		OwnerID:      t.OwnerID,
		Date:         t.Date,
		Description:  desc,
		AmountCent:   ToCents(t.Amount),
		Type:         string(t.Type),
		Category:     cat,
		CheckNumber:  nullable(t.CheckNumber),
		IsReconciled: t.IsReconciled,
		AccountID:    nullable(t.AccountID),
	}
	return s.insert(ctx, s.db, "transaction", &row, func(id string) { row.ID = id })
}

// GetTransaction returns apperr.ErrNotFound for an unknown id.
func (s *Store) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	var rows []models.Transaction
	if err := s.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperr.ErrNotFound
	}
	t := s.toTransaction(&rows[0])
	return &t, nil
}

// GetTransactionsByUser lists a user's transactions, newest date first.
func (s *Store) GetTransactionsByUser(ctx context.Context, userID string) ([]Transaction, error) {
	var rows []models.Transaction
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", userID).
		Order("date DESC, created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return s.toTransactions(rows), nil
}

// AmountQuery narrows FindByAmount. Date bounds are inclusive and optional.
type AmountQuery struct {
	UserID            string
	Amount            decimal.Decimal
	DateFrom          string
	DateTo            string
	IncludeReconciled bool
}

// FindByAmount returns transactions whose amount equals q.Amount to the cent.
// Unreconciled rows come first, each group newest date first.
func (s *Store) FindByAmount(ctx context.Context, q AmountQuery) ([]Transaction, error) {
	db := s.db.WithContext(ctx).
		Where("owner_id = ? AND amount_cent = ?", q.UserID, ToCents(q.Amount))
	if q.DateFrom != "" {
		db = db.Where("date >= ?", q.DateFrom)
	}
	if q.DateTo != "" {
		db = db.Where("date <= ?", q.DateTo)
	}
	if !q.IncludeReconciled {
		db = db.Where("is_reconciled = ?", false)
	}

	var rows []models.Transaction
	if err := db.Order("is_reconciled ASC, date DESC, created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find by amount: %w", err)
	}
	return s.toTransactions(rows), nil
}

// UpdateTransaction applies p in a single statement and returns the number
// of rows affected. Zero rows means the id is unknown; it is not an error.
func (s *Store) UpdateTransaction(ctx context.Context, id string, p TransactionPatch) (int64, error) {
	if p.IsEmpty() {
		return 0, nil
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}

	fields := map[string]interface{}{}
	if p.Date != nil {
		fields["date"] = *p.Date
	}
	if p.Description != nil {
		enc, err := s.encrypt(*p.Description)
		if err != nil {
			return 0, err
		}
		fields["description"] = enc
	}
	if p.Amount != nil {
		fields["amount_cent"] = ToCents(*p.Amount)
	}
	if p.Type != nil {
		fields["type"] = string(*p.Type)
	}
	if p.Category != nil {
		enc, err := s.encryptPtr(nullable(p.Category))
		if err != nil {
			return 0, err
		}
		fields["category"] = enc
	}
	if p.CheckNumber != nil {
		fields["check_number"] = nullable(p.CheckNumber)
	}
	if p.IsReconciled != nil {
		fields["is_reconciled"] = *p.IsReconciled
	}
	if p.AccountID != nil {
		fields["account_id"] = nullable(p.AccountID)
	}

	res := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return 0, fmt.Errorf("update transaction: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteTransaction returns the number of rows removed.
func (s *Store) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Transaction{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete transaction: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// MarkReconciled sets the reconciliation flag.
func (s *Store) MarkReconciled(ctx context.Context, id string, reconciled bool) (int64, error) {
	return s.UpdateTransaction(ctx, id, TransactionPatch{IsReconciled: &reconciled})
}

func (s *Store) toTransactions(rows []models.Transaction) []Transaction {
	out := make([]Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, s.toTransaction(&rows[i]))
	}
	return out
}

func (s *Store) toTransaction(r *models.Transaction) Transaction {
	return Transaction{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		Date:         r.Date,
		Description:  s.decrypt(r.ID, "description", r.Description),
		Amount:       FromCents(r.AmountCent),
		Type:         TxType(r.Type),
		Category:     s.decryptPtr(r.ID, "category", r.Category),
		CheckNumber:  r.CheckNumber,
		IsReconciled: r.IsReconciled,
		AccountID:    r.AccountID,
		CreatedAt:    r.CreatedAt,
	}
}
