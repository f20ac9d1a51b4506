package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"recon-ledger/internal/store"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
)

const isoLayout = "2006-01-02"

var (
	isoDateRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	usDateRe    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	amountStrip = strings.NewReplacer(
		"$", "", "€", "", "£", "", "¥", "", "₹", "",
		",", "", "\"", "", "'", "",
		" ", "", "\t", "", "\u00a0", "",
	)
)

// NormalizeDate returns the date as YYYY-MM-DD. ISO input passes through,
// M/D/YYYY is reordered, anything else goes through a general parser.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return "", false
	}
	if isoDateRe.MatchString(s) {
		if _, err := time.Parse(isoLayout, s); err != nil {
			return "", false
		}
		return s, true
	}
	if m := usDateRe.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Month() != time.Month(month) || t.Day() != day {
			return "", false
		}
		return t.Format(isoLayout), true
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return "", false
	}
	return t.Format(isoLayout), true
}

// ParseAmount strips currency symbols, separators, quotes and whitespace and
// returns the magnitude with the sign reported separately. "(12.00)" and
// "-12.00" are both negative; a single leading "+" is accepted.
func ParseAmount(s string) (magnitude decimal.Decimal, negative bool, ok bool) {
	s = amountStrip.Replace(strings.TrimSpace(s))
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" || strings.ContainsAny(s, "+-") {
		return decimal.Zero, false, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, false
	}
	return d.Abs(), negative, true
}

// ResolveType prefers an explicit debit/credit and falls back to the sign.
func ResolveType(explicit store.TxType, negative bool) store.TxType {
	switch explicit {
	case store.Debit, store.Credit:
		return explicit
	}
	if negative {
		return store.Debit
	}
	return store.Credit
}
