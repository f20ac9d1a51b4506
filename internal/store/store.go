// Package store is the encrypted record store: a gorm/sqlite database whose
// sensitive columns are sealed with a key derived from the store secret.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"recon-ledger/internal/config"
	"recon-ledger/internal/database"
	"recon-ledger/internal/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// maxIDAttempts bounds identifier generation on primary-key collision.
const maxIDAttempts = 3

// ErrIDExhausted is returned when every generated identifier collided.
var ErrIDExhausted = errors.New("identifier generation exhausted")

// Store owns the database file and the field cipher.
type Store struct {
	db     *gorm.DB
	cipher *util.FieldCipher
	path   string
	newID  func() string
	log    zerolog.Logger
}

// Option customises a Store at open time.
type Option func(*Store)

// WithLogger sets the operator log.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithIDGenerator replaces the uuid-based identifier source.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// Open opens (or creates) the store at cfg.Path, migrates the schema and
// derives the field key from secret.
func Open(cfg config.DatabaseConfig, secret string, opts ...Option) (*Store, error) {
	fc, err := util.NewFieldCipher(secret)
	if err != nil {
		return nil, fmt.Errorf("field cipher: %w", err)
	}
	db, err := database.Init(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	s := &Store{
		db:     db,
		cipher: fc,
		path:   cfg.Path,
		newID:  func() string { return uuid.NewString() },
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close checkpoints and closes the database.
func (s *Store) Close() error {
	return database.Close(s.db)
}

// Path is the physical database file.
func (s *Store) Path() string { return s.path }

// Verify confirms the file is a readable, migrated store.
func (s *Store) Verify(ctx context.Context) error {
	var result string
	if err := s.db.WithContext(ctx).Raw("PRAGMA quick_check").Scan(&result).Error; err != nil {
		return fmt.Errorf("quick check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("quick check: %s", result)
	}
	var n int64
	if err := s.db.WithContext(ctx).Table("users").Count(&n).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	return nil
}

// BackupTo writes a point-in-time consistent copy of the store to path.
// path must not exist yet.
func (s *Store) BackupTo(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	if err := s.db.WithContext(ctx).Exec("VACUUM INTO ?", path).Error; err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}
	return nil
}

// Batch runs fn against a Store bound to a single database transaction.
// Every write made through that Store is rolled back when fn returns an
// error.
func (s *Store) Batch(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		bound := *s
		bound.db = db
		return fn(&bound)
	})
}

// insert assigns a fresh identifier and creates row, retrying on a
// primary-key collision.
func (s *Store) insert(ctx context.Context, db *gorm.DB, kind string, row interface{}, assign func(id string)) (string, error) {
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id := s.newID()
		assign(id)
		err := db.WithContext(ctx).Create(row).Error
		if err == nil {
			return id, nil
		}
		if !isDuplicateKey(err) {
			return "", fmt.Errorf("create %s: %w", kind, err)
		}
		s.log.Warn().Str("kind", kind).Int("attempt", attempt).Msg("identifier collision, regenerating")
	}
	return "", fmt.Errorf("create %s after %d attempts: %w", kind, maxIDAttempts, ErrIDExhausted)
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Store) encrypt(plain string) (string, error) {
	enc, err := s.cipher.Encrypt(plain)
	if err != nil {
		return "", fmt.Errorf("encrypt field: %w", err)
	}
	return enc, nil
}

func (s *Store) encryptPtr(plain *string) (*string, error) {
	enc, err := s.cipher.EncryptPtr(plain)
	if err != nil {
		return nil, fmt.Errorf("encrypt field: %w", err)
	}
	return enc, nil
}

// decryptPtr degrades undecryptable values to nil and logs the record id.
func (s *Store) decryptPtr(id, field string, stored *string) *string {
	plain := s.cipher.DecryptPtr(stored)
	if stored != nil && plain == nil {
		s.log.Warn().Str("id", id).Str("field", field).Msg("field failed to decrypt")
	}
	return plain
}

func (s *Store) decrypt(id, field, stored string) string {
	if p := s.decryptPtr(id, field, &stored); p != nil {
		return *p
	}
	return ""
}
