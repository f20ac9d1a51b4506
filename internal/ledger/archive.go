package ledger

import (
	"context"
	"fmt"

	"recon-ledger/internal/apperr"
	"recon-ledger/internal/backup"
	"recon-ledger/internal/store"
	"recon-ledger/internal/util"
)

// ExportStore writes a password-protected copy of the whole store to path.
func (a *App) ExportStore(ctx context.Context, path, password string) error {
	return a.withStore(func(st *store.Store) error {
		return a.codec.Export(ctx, st, path, password)
	})
}

// ImportStore replaces the live store with the archive at path. The archive
// is fully decrypted before the live store is touched. If the restored file
// does not open, the previous file is put back and reopened.
func (a *App) ImportStore(ctx context.Context, path, password string) error {
	plain, err := a.codec.Open(path, password)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.st == nil {
		return fmt.Errorf("import store: %w", apperr.ErrStorageUnavailable)
	}
	s := a.secret

	if err := a.closeLocked(); err != nil {
		a.log.Warn().Err(err).Msg("close store before restore")
	}
	swap, err := backup.Replace(a.cfg.Database.Path, plain)
	if err != nil {
		a.reopenLocked(s)
		return fmt.Errorf("install backup: %w", err)
	}

	st, err := a.openVerified(ctx, s)
	if err != nil {
		a.log.Error().Err(err).Msg("restored store unreadable, rolling back")
		if rbErr := swap.Rollback(); rbErr != nil {
			a.log.Error().Err(rbErr).Msg("rollback failed")
		}
		a.reopenLocked(s)
		return fmt.Errorf("restore store: %w", err)
	}
	swap.Commit()
	a.st, a.secret = st, s

	if u, err := st.GetFirstUser(ctx); err == nil && !util.CheckSecret(s, u.SecretCheck) {
		a.log.Warn().Msg("restored store was sealed with a different secret; encrypted fields will read as empty")
	}
	a.log.Info().Msg("store restored")
	return nil
}

func (a *App) openVerified(ctx context.Context, s string) (*store.Store, error) {
	st, err := store.Open(a.cfg.Database, s, a.storeOpts...)
	if err != nil {
		return nil, err
	}
	if err := st.Verify(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// reopenLocked is the best-effort recovery after a failed restore.
func (a *App) reopenLocked(s string) {
	st, err := store.Open(a.cfg.Database, s, a.storeOpts...)
	if err != nil {
		a.log.Error().Err(err).Msg("reopen previous store")
		return
	}
	a.st, a.secret = st, s
}
