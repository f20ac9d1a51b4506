// Package ingest turns bank statement exports into candidate transactions.
// Parsing is pure: no I/O beyond the buffer handed in.
package ingest

import (
	"encoding/csv"
	"strings"

	"recon-ledger/internal/store"

	"github.com/shopspring/decimal"
)

// headerScanLimit is how many leading lines may precede the header row.
const headerScanLimit = 10

// summaryMarkers identify statement summary rows by description.
var summaryMarkers = []string{"beginning balance", "ending balance", "total credits", "total debits"}

// Candidate is a parsed statement row pending review. It is never persisted
// as such.
type Candidate struct {
	Date         string          `json:"date"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Type         store.TxType    `json:"type"`
	Category     *string         `json:"category,omitempty"`
	CheckNumber  *string         `json:"checkNumber,omitempty"`
	IsReconciled bool            `json:"isReconciled"`
	Selected     bool            `json:"selected"`
}

// ColumnMap holds column indexes by role; -1 means unmapped. Only the first
// amount-like column is read: with separate Debit and Credit columns the
// second one is ignored and the type comes from the sign.
type ColumnMap struct {
	Date        int
	Description int
	Amount      int
	Category    int
	CheckNumber int
}

func unmapped() ColumnMap {
	return ColumnMap{Date: -1, Description: -1, Amount: -1, Category: -1, CheckNumber: -1}
}

// MapColumns classifies header cells case-insensitively. Each column takes
// at most one role, and the first column matching a role wins.
func MapColumns(header []string) ColumnMap {
	m := unmapped()
	for i, cell := range header {
		h := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case h == "":
		case m.Date < 0 && strings.Contains(h, "date"):
			m.Date = i
		case m.Description < 0 && (strings.Contains(h, "description") || strings.Contains(h, "payee") || strings.Contains(h, "memo")):
			m.Description = i
		case m.Amount < 0 && (h == "amount" || strings.Contains(h, "amt") || h == "debit" || h == "credit"):
			m.Amount = i
		case m.Category < 0 && strings.Contains(h, "category"):
			m.Category = i
		case m.CheckNumber < 0 && (h == "check" || h == "check number" || h == "check #" || strings.Contains(h, "check")):
			m.CheckNumber = i
		}
	}
	return m
}

// DetectHeader returns the index of the first row, among the first ten,
// that has a cell containing "date".
func DetectHeader(rows [][]string) (int, bool) {
	for i := 0; i < len(rows) && i < headerScanLimit; i++ {
		for _, cell := range rows[i] {
			if strings.Contains(strings.ToLower(strings.TrimSpace(cell)), "date") {
				return i, true
			}
		}
	}
	return 0, false
}

// SplitLine parses one comma-delimited line, honouring double-quoted commas.
func SplitLine(line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rec, err := r.Read()
	if err != nil {
		return strings.Split(line, ",")
	}
	return rec
}

// ParseCSV parses raw statement text into candidates.
func ParseCSV(raw string) []Candidate {
	raw = strings.TrimPrefix(raw, "\ufeff")
	var rows [][]string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, SplitLine(strings.TrimRight(line, "\r")))
	}
	return ParseRows(rows)
}

// ParseRows runs header detection, column mapping and row normalisation over
// pre-split rows. Rows must already be free of blank lines.
func ParseRows(rows [][]string) []Candidate {
	m := ColumnMap{Date: 0, Description: 1, Amount: 2, Category: -1, CheckNumber: -1}
	start := 0
	if idx, ok := DetectHeader(rows); ok {
		m = MapColumns(rows[idx])
		start = idx + 1
	}

	out := make([]Candidate, 0, len(rows)-start)
	for _, row := range rows[start:] {
		if c, ok := parseRow(row, m); ok {
			out = append(out, c)
		}
	}
	return out
}

func cell(row []string, col, fallback int) string {
	if col < 0 {
		col = fallback
	}
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func optional(row []string, col int) *string {
	v := cell(row, col, -1)
	if v == "" {
		return nil
	}
	return &v
}

func isSummaryRow(desc string) bool {
	d := strings.ToLower(desc)
	for _, marker := range summaryMarkers {
		if strings.Contains(d, marker) {
			return true
		}
	}
	return false
}

func parseRow(row []string, m ColumnMap) (Candidate, bool) {
	desc := cell(row, m.Description, 1)
	if isSummaryRow(desc) {
		return Candidate{}, false
	}
	date, ok := NormalizeDate(cell(row, m.Date, 0))
	if !ok {
		return Candidate{}, false
	}

	amount, negative, ok := ParseAmount(cell(row, m.Amount, 2))
	if !ok || amount.IsZero() {
		return Candidate{}, false
	}

	return Candidate{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Type:        ResolveType("", negative),
		Category:    optional(row, m.Category),
		CheckNumber: optional(row, m.CheckNumber),
		Selected:    true,
	}, true
}
