// Package secret obtains and keeps the 256-bit store secret outside the
// database: the OS keychain when it works, a machine-keyed file otherwise.
package secret

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"recon-ledger/internal/config"
	"recon-ledger/internal/util"

	"github.com/rs/zerolog"
)

// StorageKind names the backend that accepted a secret.
type StorageKind string

const (
	KindKeychain StorageKind = "keychain"
	KindFile     StorageKind = "file"
)

const (
	secretBytes  = 32
	displayGroup = 4
	displaySep   = "-"
)

var (
	// ErrNotFound means no backend holds a secret.
	ErrNotFound = errors.New("secret not found")
	// ErrCorruptFormat means the fallback file does not parse.
	ErrCorruptFormat = errors.New("secret file is corrupt")
	// ErrDecryptFailure means the fallback file fails authentication,
	// typically because it was written on another machine.
	ErrDecryptFailure = errors.New("secret file cannot be decrypted")
)

// Backend is one place a secret can live.
type Backend interface {
	Kind() StorageKind
	Set(secret string) error
	Get() (string, error)
	Delete() error
}

// Manager walks an ordered chain of backends. Every backend except the last
// is best-effort: its failures are logged and the next one is tried.
type Manager struct {
	backends []Backend
	log      zerolog.Logger
}

// NewManager builds a manager over backends in priority order.
func NewManager(log zerolog.Logger, backends ...Backend) *Manager {
	return &Manager{backends: backends, log: log}
}

// Generate returns 32 random bytes as lowercase hex.
func Generate() (string, error) {
	b, err := util.RandomBytes(secretBytes)
	if err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Store saves secret in the first backend that accepts it.
func (m *Manager) Store(secret string) (StorageKind, error) {
	if secret == "" {
		return "", fmt.Errorf("secret is empty")
	}
	var lastErr error
	for i, b := range m.backends {
		err := b.Set(secret)
		if err == nil {
			return b.Kind(), nil
		}
		lastErr = err
		if i < len(m.backends)-1 {
			m.log.Debug().Err(err).Str("backend", string(b.Kind())).Msg("secret backend unavailable, falling back")
		}
	}
	if lastErr == nil {
		return "", fmt.Errorf("no secret backend configured")
	}
	return "", fmt.Errorf("store secret: %w", lastErr)
}

// Retrieve returns the first secret found. It never writes. When every
// backend comes up empty but an earlier one failed for another reason, that
// failure is returned instead of ErrNotFound so callers can retry it.
func (m *Manager) Retrieve() (string, error) {
	var transient error
	for i, b := range m.backends {
		s, err := b.Get()
		if err == nil && s != "" {
			return s, nil
		}
		if err == nil {
			err = ErrNotFound
		}
		if i == len(m.backends)-1 {
			if errors.Is(err, ErrNotFound) && transient != nil {
				return "", transient
			}
			return "", err
		}
		if !errors.Is(err, ErrNotFound) {
			m.log.Debug().Err(err).Str("backend", string(b.Kind())).Msg("secret backend unavailable, falling back")
			if transient == nil {
				transient = fmt.Errorf("%s backend: %w", b.Kind(), err)
			}
		}
	}
	return "", ErrNotFound
}

// Erase removes the secret everywhere; true if any backend succeeded.
func (m *Manager) Erase() bool {
	ok := false
	for _, b := range m.backends {
		if err := b.Delete(); err != nil {
			m.log.Debug().Err(err).Str("backend", string(b.Kind())).Msg("erase secret")
			continue
		}
		ok = true
	}
	return ok
}

// FormatForDisplay groups the secret into 4-character chunks.
func FormatForDisplay(secret string) string {
	var sb strings.Builder
	for i, r := range secret {
		if i > 0 && i%displayGroup == 0 {
			sb.WriteString(displaySep)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// ParseDisplay reverses FormatForDisplay, tolerating spaces and case.
func ParseDisplay(s string) string {
	s = strings.ReplaceAll(s, displaySep, "")
	s = strings.Join(strings.Fields(s), "")
	return strings.ToLower(s)
}

// NewDefault chains the system keychain and the machine-keyed file.
func NewDefault(cfg config.SecretConfig, log zerolog.Logger) *Manager {
	return NewManager(log,
		&KeychainBackend{Store: SystemKeyring{}, Service: cfg.Service, Account: cfg.Account},
		&FileBackend{Path: cfg.FallbackPath, Machine: CurrentMachine(cfg.AppDataDir)},
	)
}
