// Package matcher ranks stored transactions against an incoming statement
// line. The score is additive and deliberately simple so a reviewer can see
// why a match was proposed.
package matcher

import (
	"sort"
	"time"

	"recon-ledger/internal/store"

	"github.com/shopspring/decimal"
)

const (
	// DateWindowDays is the widest date gap an eligible match may have.
	DateWindowDays = 10
	// TypeMatchScore is awarded when debit/credit agree.
	TypeMatchScore = 10
	// DateScoreBase minus the day gap (floored at 0) is the date score.
	DateScoreBase = 20
	// MaxMatches caps the ranked list.
	MaxMatches = 10
)

// AmountTolerance is the largest amount difference still treated as equal.
var AmountTolerance = decimal.New(1, -2)

// Incoming is the side being matched: a CSV row or a statement entry.
type Incoming struct {
	Amount decimal.Decimal
	Date   string
	Type   store.TxType
}

// Match is one ranked proposal.
type Match struct {
	Transaction  store.Transaction `json:"transaction"`
	Score        int               `json:"score"`
	DaysApart    int               `json:"daysApart"`
	HasDate      bool              `json:"hasDate"`
	IsReconciled bool              `json:"isReconciled"`
}

// Rank filters pool by amount (to the cent) and date window, scores the
// survivors and returns at most MaxMatches, best first. Ties keep
// unreconciled transactions ahead, then pool order.
func Rank(in Incoming, pool []store.Transaction) []Match {
	var out []Match
	for _, t := range pool {
		if m, ok := Score(in, t); ok {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return !out[i].IsReconciled && out[j].IsReconciled
	})
	if len(out) > MaxMatches {
		out = out[:MaxMatches]
	}
	return out
}

// Score applies the hard filter and, if t is eligible, scores it.
func Score(in Incoming, t store.Transaction) (Match, bool) {
	if in.Amount.Sub(t.Amount).Abs().GreaterThan(AmountTolerance) {
		return Match{}, false
	}

	m := Match{Transaction: t, IsReconciled: t.IsReconciled}
	if days, ok := DaysBetween(in.Date, t.Date); ok {
		if days > DateWindowDays {
			return Match{}, false
		}
		m.DaysApart, m.HasDate = days, true
		if s := DateScoreBase - days; s > 0 {
			m.Score += s
		}
	}
	if in.Type == t.Type {
		m.Score += TypeMatchScore
	}
	return m, true
}

// DaysBetween returns the absolute day gap between two YYYY-MM-DD dates.
// ok is false if either date is missing or unparseable.
func DaysBetween(a, b string) (int, bool) {
	if a == "" || b == "" {
		return 0, false
	}
	ta, err := time.Parse("2006-01-02", a)
	if err != nil {
		return 0, false
	}
	tb, err := time.Parse("2006-01-02", b)
	if err != nil {
		return 0, false
	}
	days := int(ta.Sub(tb).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days, true
}
