package ledger

import (
	"context"
	"sort"

	"recon-ledger/internal/store"

	"github.com/shopspring/decimal"
)

// Snapshot is everything the main screen shows.
type Snapshot struct {
	User         *store.User
	Transactions []store.Transaction
	Categories   []store.Category
	Balance      decimal.Decimal
}

// LoadAll loads a user's profile, transactions (newest first) and
// categories. An empty userID selects the store's first user.
func (a *App) LoadAll(ctx context.Context, userID string) (*Snapshot, error) {
	var snap *Snapshot
	err := a.withStore(func(st *store.Store) error {
		u, err := resolveUser(ctx, st, userID)
		if err != nil {
			return err
		}
		txs, err := st.GetTransactionsByUser(ctx, u.ID)
		if err != nil {
			return err
		}
		cats, err := st.ListCategories(ctx, u.ID)
		if err != nil {
			return err
		}
		snap = &Snapshot{User: u, Transactions: txs, Categories: cats, Balance: Balance(txs)}
		return nil
	})
	return snap, err
}

func signed(t store.Transaction) decimal.Decimal {
	if t.Type == store.Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// ascending returns indexes of txs ordered oldest date first, ties by
// creation time.
func ascending(txs []store.Transaction) []int {
	idx := make([]int, len(txs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := txs[idx[i]], txs[idx[j]]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return idx
}

// Balance folds txs oldest first: credits add, debits subtract.
func Balance(txs []store.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, i := range ascending(txs) {
		total = total.Add(signed(txs[i]))
	}
	return total
}

// RunningBalances returns, for each transaction in txs, the balance right
// after it was applied. The result is aligned with txs.
func RunningBalances(txs []store.Transaction) []decimal.Decimal {
	out := make([]decimal.Decimal, len(txs))
	total := decimal.Zero
	for _, i := range ascending(txs) {
		total = total.Add(signed(txs[i]))
		out[i] = total
	}
	return out
}

// SubmitTransaction stores t. An empty OwnerID means the first user.
func (a *App) SubmitTransaction(ctx context.Context, t store.NewTransaction) (string, error) {
	var id string
	err := a.withStore(func(st *store.Store) error {
		if t.OwnerID == "" {
			u, err := st.GetFirstUser(ctx)
			if err != nil {
				return err
			}
			t.OwnerID = u.ID
		}
		var err error
		id, err = st.CreateTransaction(ctx, t)
		return err
	})
	return id, err
}

// EditTransaction applies a partial update. Zero rows means unknown id.
func (a *App) EditTransaction(ctx context.Context, id string, p store.TransactionPatch) (int64, error) {
	var n int64
	err := a.withStore(func(st *store.Store) error {
		var err error
		n, err = st.UpdateTransaction(ctx, id, p)
		return err
	})
	return n, err
}

// RemoveTransaction deletes by id. Zero rows means unknown id.
func (a *App) RemoveTransaction(ctx context.Context, id string) (int64, error) {
	var n int64
	err := a.withStore(func(st *store.Store) error {
		var err error
		n, err = st.DeleteTransaction(ctx, id)
		return err
	})
	return n, err
}

// EditProfile updates the user's profile. An empty userID means the first
// user.
func (a *App) EditProfile(ctx context.Context, userID string, p store.UserPatch) (int64, error) {
	var n int64
	err := a.withStore(func(st *store.Store) error {
		u, err := resolveUser(ctx, st, userID)
		if err != nil {
			return err
		}
		n, err = st.UpdateUser(ctx, u.ID, p)
		return err
	})
	return n, err
}

// ListCategories returns the user's categories.
func (a *App) ListCategories(ctx context.Context, userID string) ([]store.Category, error) {
	var cats []store.Category
	err := a.withStore(func(st *store.Store) error {
		u, err := resolveUser(ctx, st, userID)
		if err != nil {
			return err
		}
		cats, err = st.ListCategories(ctx, u.ID)
		return err
	})
	return cats, err
}

func (a *App) CreateCategory(ctx context.Context, userID, name, typ string) (string, error) {
	var id string
	err := a.withStore(func(st *store.Store) error {
		u, err := resolveUser(ctx, st, userID)
		if err != nil {
			return err
		}
		id, err = st.CreateCategory(ctx, u.ID, name, typ)
		return err
	})
	return id, err
}

func (a *App) DeleteCategory(ctx context.Context, userID, id string) (int64, error) {
	var n int64
	err := a.withStore(func(st *store.Store) error {
		u, err := resolveUser(ctx, st, userID)
		if err != nil {
			return err
		}
		n, err = st.DeleteCategory(ctx, u.ID, id)
		return err
	})
	return n, err
}

// User returns the user with id, or the first user when id is empty.
func (a *App) User(ctx context.Context, id string) (*store.User, error) {
	var u *store.User
	err := a.withStore(func(st *store.Store) error {
		var err error
		u, err = resolveUser(ctx, st, id)
		return err
	})
	return u, err
}
