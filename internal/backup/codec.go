// Package backup turns the whole store into a password-protected portable
// file and back. The archive layout is salt(16) || iv(16) || tag(16) || ct.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"recon-ledger/internal/apperr"
	"recon-ledger/internal/config"
	"recon-ledger/internal/util"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/scrypt"
)

const (
	SaltSize   = 16
	HeaderSize = SaltSize + util.IVSize + util.TagSize

	// scrypt cost parameters for the export password.
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Snapshotter writes a consistent copy of a live store to a new file.
type Snapshotter interface {
	BackupTo(ctx context.Context, path string) error
}

// Codec exports and opens archives. It is safe for concurrent use.
type Codec struct {
	cfg     config.BackupConfig
	limiter *Limiter
	log     zerolog.Logger
}

// New builds a codec whose export budget comes from cfg.
func New(cfg config.BackupConfig, log zerolog.Logger) *Codec {
	return &Codec{
		cfg:     cfg,
		limiter: NewLimiter(cfg.ExportLimit, cfg.ExportWindow),
		log:     log,
	}
}

// WithLimiter swaps the export limiter, mainly to inject a clock.
func (c *Codec) WithLimiter(l *Limiter) *Codec {
	c.limiter = l
	return c
}

func deriveKey(password string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, util.KeySize)
}

// Seal encrypts plain under password with a fresh salt and IV.
func Seal(password string, plain []byte) ([]byte, error) {
	salt, err := util.RandomBytes(SaltSize)
	if err != nil {
		return nil, err
	}
	key, err := deriveKey(password, salt)
	if err != nil {
		return nil, fmt.Errorf("derive export key: %w", err)
	}
	iv, tag, ct, err := util.Seal(key, plain)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, HeaderSize+len(ct))
	out = append(out, salt...)
	out = append(out, iv...)
	out = append(out, tag...)
	return append(out, ct...), nil
}

// Unseal reverses Seal. A wrong password and a damaged archive both yield
// apperr.ErrBadPassword.
func Unseal(password string, blob []byte) ([]byte, error) {
	if len(blob) < HeaderSize {
		return nil, apperr.ErrBadPassword
	}
	salt := blob[:SaltSize]
	iv := blob[SaltSize : SaltSize+util.IVSize]
	tag := blob[SaltSize+util.IVSize : HeaderSize]
	key, err := deriveKey(password, salt)
	if err != nil {
		return nil, fmt.Errorf("derive export key: %w", err)
	}
	plain, err := util.Open(key, iv, tag, blob[HeaderSize:])
	if err != nil {
		return nil, apperr.ErrBadPassword
	}
	return plain, nil
}

func (c *Codec) minPasswordLen() int {
	if c.cfg.MinPasswordLen <= 0 {
		return 8
	}
	return c.cfg.MinPasswordLen
}

// Export snapshots src and writes the sealed archive to dest.
func (c *Codec) Export(ctx context.Context, src Snapshotter, dest, password string) error {
	v := &apperr.ValidationError{}
	if err := util.ValidatePath(dest); err != nil {
		v.Add(err.Error())
	}
	if n := c.minPasswordLen(); len(password) < n {
		v.Add(fmt.Sprintf("password must be at least %d characters", n))
	}
	if err := v.Err(); err != nil {
		return err
	}
	if !c.limiter.Allow() {
		return apperr.ErrRateLimited
	}

	if c.cfg.Dir != "" {
		if err := os.MkdirAll(c.cfg.Dir, 0o700); err != nil {
			return fmt.Errorf("snapshot dir: %w", err)
		}
	}
	tmpDir, err := os.MkdirTemp(c.cfg.Dir, "snapshot-*")
	if err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snap := filepath.Join(tmpDir, "store.db")
	if err := src.BackupTo(ctx, snap); err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	plain, err := os.ReadFile(snap)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Seal(password, plain)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(dest, sealed, 0o600); err != nil {
		return err
	}
	c.log.Info().Int("bytes", len(sealed)).Msg("store exported")
	return nil
}

// Open reads and decrypts the archive at path. Files above the configured
// ceiling are rejected from their size alone.
func (c *Codec) Open(path, password string) ([]byte, error) {
	if err := util.ValidatePath(path); err != nil {
		return nil, apperr.Invalid(err.Error())
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.Invalid("backup file does not exist")
		}
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}
	limit := c.cfg.MaxImportBytes
	if limit <= 0 {
		limit = 100 << 20
	}
	if info.Size() > limit {
		return nil, apperr.ErrResourceLimit
	}

	blob, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	if int64(len(blob)) > limit {
		return nil, apperr.ErrResourceLimit
	}
	return Unseal(password, blob)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
