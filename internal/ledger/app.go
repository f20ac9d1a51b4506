// Package ledger is the application context: it owns the open store, the
// secret manager and the backup codec, and exposes the operations a UI
// drives. One App per process.
package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"recon-ledger/internal/apperr"
	"recon-ledger/internal/backup"
	"recon-ledger/internal/config"
	"recon-ledger/internal/secret"
	"recon-ledger/internal/store"
	"recon-ledger/internal/util"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// SecretStore is the part of the secret manager the app needs.
type SecretStore interface {
	Store(secret string) (secret.StorageKind, error)
	Retrieve() (string, error)
	Erase() bool
}

// App holds the single active store handle. Store access goes through
// withStore so a restore cannot swap the file under a running operation.
type App struct {
	cfg       *config.Config
	secrets   SecretStore
	codec     *backup.Codec
	log       zerolog.Logger
	storeOpts []store.Option

	mu     sync.RWMutex
	st     *store.Store
	secret string
}

// Option customises an App.
type Option func(*App)

// WithStoreOptions forwards options to every store.Open.
func WithStoreOptions(opts ...store.Option) Option {
	return func(a *App) { a.storeOpts = append(a.storeOpts, opts...) }
}

// WithCodec replaces the backup codec built from cfg.Backup.
func WithCodec(c *backup.Codec) Option {
	return func(a *App) { a.codec = c }
}

// New builds a locked App. Call Unlock or Onboard before anything else.
func New(cfg *config.Config, secrets SecretStore, log zerolog.Logger, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		secrets: secrets,
		log:     log,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.codec == nil {
		a.codec = backup.New(cfg.Backup, log)
	}
	a.storeOpts = append([]store.Option{store.WithLogger(log)}, a.storeOpts...)
	return a
}

// Unlocked reports whether a store is open.
func (a *App) Unlocked() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.st != nil
}

func (a *App) retryPolicy(ctx context.Context) backoff.BackOff {
	attempts := a.cfg.Secret.UnlockAttempts
	if attempts <= 0 {
		attempts = 3
	}
	wait := a.cfg.Secret.UnlockBackoff
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(wait), uint64(attempts-1)),
		ctx,
	)
}

// Unlock retrieves the secret and opens the store, retrying transient
// failures. A missing secret is not retried. Either way the caller gets
// apperr.ErrStorageUnavailable once the attempts are spent.
func (a *App) Unlock(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.st != nil {
		return nil
	}

	attempt := 0
	op := func() error {
		attempt++
		s, err := a.secrets.Retrieve()
		if err != nil {
			if errors.Is(err, secret.ErrNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		st, err := store.Open(a.cfg.Database, s, a.storeOpts...)
		if err != nil {
			return err
		}
		if err := checkSecret(ctx, st, s); err != nil {
			_ = st.Close()
			return err
		}
		a.st, a.secret = st, s
		return nil
	}
	notify := func(err error, next time.Duration) {
		a.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", next).Msg("unlock failed, retrying")
	}
	if err := backoff.RetryNotify(op, a.retryPolicy(ctx), notify); err != nil {
		a.log.Error().Err(err).Int("attempts", attempt).Msg("store unavailable")
		return fmt.Errorf("unlock: %w", apperr.ErrStorageUnavailable)
	}
	a.backfillSecretCheck(ctx)
	a.log.Info().Msg("store unlocked")
	return nil
}

// errSecretMismatch means the retrieved secret is not the one the store was
// created with, so every encrypted field would read as empty.
var errSecretMismatch = errors.New("retrieved secret does not match the store")

// checkSecret compares s with the first user's verifier. Stores without a
// user or without a verifier pass; the verifier is backfilled after unlock.
func checkSecret(ctx context.Context, st *store.Store, s string) error {
	u, err := st.GetFirstUser(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.SecretCheck != "" && !util.CheckSecret(s, u.SecretCheck) {
		return backoff.Permanent(errSecretMismatch)
	}
	return nil
}

// backfillSecretCheck records a verifier for stores created before one was
// kept, so RecoverSecret can confirm a code against them later.
func (a *App) backfillSecretCheck(ctx context.Context) {
	u, err := a.st.GetFirstUser(ctx)
	if err != nil || u.SecretCheck != "" {
		return
	}
	check, err := util.HashSecret(a.secret)
	if err != nil {
		a.log.Warn().Err(err).Msg("hash store secret")
		return
	}
	if err := a.st.SetSecretCheck(ctx, u.ID, check); err != nil {
		a.log.Warn().Err(err).Msg("backfill secret check")
	}
}

// Close closes the store and forgets the secret. The App can be unlocked
// again afterwards.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closeLocked()
}

func (a *App) closeLocked() error {
	if a.st == nil {
		return nil
	}
	err := a.st.Close()
	a.st, a.secret = nil, ""
	return err
}

func (a *App) withStore(fn func(st *store.Store) error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.st == nil {
		return apperr.ErrStorageUnavailable
	}
	return fn(a.st)
}

// resolveUser maps an empty id to the store's first user.
func resolveUser(ctx context.Context, st *store.Store, userID string) (*store.User, error) {
	if userID == "" {
		return st.GetFirstUser(ctx)
	}
	return st.GetUserByID(ctx, userID)
}

// OnboardInput is the profile captured on first run.
type OnboardInput struct {
	Email     string
	FirstName *string
	LastName  *string
	Address   *string
}

// OnboardResult carries the secret formatted for the user to write down.
type OnboardResult struct {
	UserID        string
	DisplaySecret string
	StorageKind   secret.StorageKind
}

// Onboard creates the store, its secret and the primary user. It refuses
// to run over an existing store. On failure nothing is left behind.
func (a *App) Onboard(ctx context.Context, in OnboardInput) (*OnboardResult, error) {
	if err := util.ValidateEmail(in.Email); err != nil {
		return nil, apperr.Invalid(err.Error())
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.st != nil {
		return nil, fmt.Errorf("store already onboarded: %w", apperr.ErrConstraint)
	}
	if _, err := os.Stat(a.cfg.Database.Path); err == nil {
		return nil, fmt.Errorf("store already onboarded: %w", apperr.ErrConstraint)
	}

	s, err := secret.Generate()
	if err != nil {
		return nil, err
	}
	kind, err := a.secrets.Store(s)
	if err != nil {
		return nil, err
	}
	res, err := a.onboardLocked(ctx, s, in)
	if err != nil {
		_ = a.closeLocked()
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(a.cfg.Database.Path + suffix)
		}
		a.secrets.Erase()
		return nil, err
	}
	res.StorageKind = kind
	a.log.Info().Str("user_id", res.UserID).Str("secret_storage", string(kind)).Msg("onboarded")
	return res, nil
}

func (a *App) onboardLocked(ctx context.Context, s string, in OnboardInput) (*OnboardResult, error) {
	st, err := store.Open(a.cfg.Database, s, a.storeOpts...)
	if err != nil {
		return nil, err
	}
	a.st, a.secret = st, s

	check, err := util.HashSecret(s)
	if err != nil {
		return nil, err
	}
	uid, err := st.CreateUser(ctx, store.NewUser{
		Email:       in.Email,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Address:     in.Address,
		SecretCheck: check,
	})
	if err != nil {
		return nil, err
	}
	if _, err := st.SeedDefaultCategories(ctx, uid); err != nil {
		return nil, err
	}
	return &OnboardResult{UserID: uid, DisplaySecret: secret.FormatForDisplay(s)}, nil
}

// RecoverSecret accepts the secret as shown at onboarding, checks it
// against the store's verifier, saves it through the secret manager and
// unlocks the store.
func (a *App) RecoverSecret(ctx context.Context, displayed string) error {
	s := secret.ParseDisplay(displayed)
	if b, err := hex.DecodeString(s); err != nil || len(b) != 32 {
		return apperr.Invalid("recovery code must be 64 hexadecimal characters")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := os.Stat(a.cfg.Database.Path); err != nil {
		return fmt.Errorf("no store to recover: %w", apperr.ErrNotFound)
	}

	st, err := store.Open(a.cfg.Database, s, a.storeOpts...)
	if err != nil {
		return err
	}
	u, err := st.GetFirstUser(ctx)
	if err != nil || !util.CheckSecret(s, u.SecretCheck) {
		_ = st.Close()
		return apperr.Invalid("recovery code does not match this store")
	}
	if _, err := a.secrets.Store(s); err != nil {
		_ = st.Close()
		return err
	}

	_ = a.closeLocked()
	a.st, a.secret = st, s
	a.log.Info().Msg("store secret recovered")
	return nil
}
