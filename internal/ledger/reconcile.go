package ledger

import (
	"context"
	"fmt"
	"io"

	"recon-ledger/internal/apperr"
	"recon-ledger/internal/ingest"
	"recon-ledger/internal/matcher"
	"recon-ledger/internal/store"
)

// MatchSet pairs an incoming entry with its ranked matches.
type MatchSet struct {
	Entry   ingest.Candidate `json:"entry"`
	Matches []matcher.Match  `json:"matches"`
}

// Action is the reviewer's decision for one entry.
type Action string

const (
	ActionMatch  Action = "match"  // mark MatchID reconciled, drop the entry
	ActionCreate Action = "create" // store the entry as a new transaction
	ActionSkip   Action = "skip"
)

// ImportChoice is the decision for candidates[Index].
type ImportChoice struct {
	Index   int    `json:"index"`
	Action  Action `json:"action"`
	MatchID string `json:"matchId,omitempty"`
}

// Selection confirms one reconciliation entry. An empty MatchID creates the
// entry as a new, reconciled transaction.
type Selection struct {
	Entry   ingest.Candidate `json:"entry"`
	MatchID string           `json:"matchId,omitempty"`
}

// Outcome counts what a confirmation did. Missing counts matches whose
// stored transaction no longer exists.
type Outcome struct {
	Created    int `json:"created"`
	Reconciled int `json:"reconciled"`
	Skipped    int `json:"skipped"`
	Missing    int `json:"missing"`
}

// ImportCSV parses raw statement text and ranks matches for every row.
func (a *App) ImportCSV(ctx context.Context, userID, raw string) ([]MatchSet, error) {
	return a.StartReconciliationReview(ctx, userID, ingest.ParseCSV(raw))
}

// ImportXLSX is ImportCSV for a workbook.
func (a *App) ImportXLSX(ctx context.Context, userID string, r io.Reader) ([]MatchSet, error) {
	cands, err := ingest.ParseXLSX(r)
	if err != nil {
		return nil, err
	}
	return a.StartReconciliationReview(ctx, userID, cands)
}

// StartReconciliationReview ranks every stored transaction of the user
// against each entry. The pool is read once.
func (a *App) StartReconciliationReview(ctx context.Context, userID string, entries []ingest.Candidate) ([]MatchSet, error) {
	var sets []MatchSet
	err := a.withStore(func(st *store.Store) error {
		u, err := resolveUser(ctx, st, userID)
		if err != nil {
			return err
		}
		pool, err := st.GetTransactionsByUser(ctx, u.ID)
		if err != nil {
			return err
		}
		sets = make([]MatchSet, 0, len(entries))
		for _, e := range entries {
			m := matcher.Rank(matcher.Incoming{Amount: e.Amount, Date: e.Date, Type: e.Type}, pool)
			if m == nil {
				m = []matcher.Match{}
			}
			sets = append(sets, MatchSet{Entry: e, Matches: m})
		}
		return nil
	})
	return sets, err
}

func newFromCandidate(ownerID string, c ingest.Candidate, reconciled bool) store.NewTransaction {
	return store.NewTransaction{
		OwnerID:      ownerID,
		Date:         c.Date,
		Description:  c.Description,
		Amount:       c.Amount,
		Type:         c.Type,
		Category:     c.Category,
		CheckNumber:  c.CheckNumber,
		IsReconciled: reconciled,
	}
}

type step struct {
	action  Action
	matchID string
	tx      store.NewTransaction
}

// apply runs validated steps in order inside one store transaction. A
// storage error part way rolls back every earlier step, so the caller sees
// either the full Outcome or none of it.
func apply(ctx context.Context, st *store.Store, steps []step) (Outcome, error) {
	var out Outcome
	err := st.Batch(ctx, func(tx *store.Store) error {
		out = Outcome{}
		for i, s := range steps {
			switch s.action {
			case ActionMatch:
				n, err := tx.MarkReconciled(ctx, s.matchID, true)
				if err != nil {
					return fmt.Errorf("entry %d: %w", i, err)
				}
				if n == 0 {
					out.Missing++
					continue
				}
				out.Reconciled++
			case ActionCreate:
				if _, err := tx.CreateTransaction(ctx, s.tx); err != nil {
					return fmt.Errorf("entry %d: %w", i, err)
				}
				out.Created++
			default:
				out.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// ConfirmImport applies the reviewer's choices to candidates, in candidate
// order. A candidate without a choice is created when Selected, skipped
// otherwise. Created candidates keep their own reconciled flag.
func (a *App) ConfirmImport(ctx context.Context, userID string, candidates []ingest.Candidate, choices []ImportChoice) (Outcome, error) {
	byIndex := make(map[int]ImportChoice, len(choices))
	v := &apperr.ValidationError{}
	for _, c := range choices {
		switch {
		case c.Index < 0 || c.Index >= len(candidates):
			v.Add(fmt.Sprintf("choice index %d out of range", c.Index))
		case c.Action != ActionMatch && c.Action != ActionCreate && c.Action != ActionSkip:
			v.Add(fmt.Sprintf("choice %d: unknown action %q", c.Index, c.Action))
		case c.Action == ActionMatch && c.MatchID == "":
			v.Add(fmt.Sprintf("choice %d: match requires a transaction id", c.Index))
		default:
			byIndex[c.Index] = c
		}
	}
	if err := v.Err(); err != nil {
		return Outcome{}, err
	}

	var out Outcome
	err := a.withStore(func(st *store.Store) error {
		u, err := resolveUser(ctx, st, userID)
		if err != nil {
			return err
		}

		steps := make([]step, 0, len(candidates))
		for i, cand := range candidates {
			c, ok := byIndex[i]
			if !ok {
				c.Action = ActionSkip
				if cand.Selected {
					c.Action = ActionCreate
				}
			}
			s := step{action: c.Action, matchID: c.MatchID}
			if c.Action == ActionCreate {
				s.tx = newFromCandidate(u.ID, cand, cand.IsReconciled)
				if err := s.tx.Validate(); err != nil {
					v.Add(fmt.Sprintf("candidate %d: %v", i, err))
				}
			}
			steps = append(steps, s)
		}
		if err := v.Err(); err != nil {
			return err
		}

		out, err = apply(ctx, st, steps)
		return err
	})
	if err == nil {
		a.log.Info().Int("created", out.Created).Int("reconciled", out.Reconciled).Int("skipped", out.Skipped).Msg("import confirmed")
	}
	return out, err
}

// ConfirmReconciliation marks each selected match reconciled, or creates
// the entry as a new reconciled transaction when no match was chosen.
func (a *App) ConfirmReconciliation(ctx context.Context, userID string, selections []Selection) (Outcome, error) {
	var out Outcome
	err := a.withStore(func(st *store.Store) error {
		u, err := resolveUser(ctx, st, userID)
		if err != nil {
			return err
		}

		v := &apperr.ValidationError{}
		steps := make([]step, 0, len(selections))
		for i, sel := range selections {
			if sel.MatchID != "" {
				steps = append(steps, step{action: ActionMatch, matchID: sel.MatchID})
				continue
			}
			s := step{action: ActionCreate, tx: newFromCandidate(u.ID, sel.Entry, true)}
			if err := s.tx.Validate(); err != nil {
				v.Add(fmt.Sprintf("selection %d: %v", i, err))
			}
			steps = append(steps, s)
		}
		if err := v.Err(); err != nil {
			return err
		}

		out, err = apply(ctx, st, steps)
		return err
	})
	return out, err
}
