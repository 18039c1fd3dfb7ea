package sheets

import (
	"context"
	"strings"

	"budget/internal/core"
)

// LedgerExporter mirrors the full ledger to an external spreadsheet.
// Each call overwrites what the previous one wrote.
type LedgerExporter interface {
	ExportLedger(ctx context.Context, entries []core.Entry) error
}

// Header is the first row of every export.
var Header = []any{"Date", "Type", "Category", "Description", "Amount"}

// LedgerRows renders entries as spreadsheet rows: the header, one row per
// entry in the given order, a blank separator and the totals.
func LedgerRows(entries []core.Entry) [][]any {
	rows := make([][]any, 0, len(entries)+5)
	rows = append(rows, Header)
	for _, e := range entries {
		rows = append(rows, []any{
			e.Date.String(),
			string(e.Type),
			SafeText(e.CategoryName()),
			SafeText(e.Description),
			e.Amount.StringFixed(2),
		})
	}

	t := core.Summarize(entries)
	rows = append(rows,
		[]any{},
		[]any{"", "", "", "Total income", t.Income.StringFixed(2)},
		[]any{"", "", "", "Total expense", t.Expense.StringFixed(2)},
		[]any{"", "", "", "Balance", t.Balance.StringFixed(2)},
	)
	return rows
}

// SafeText quotes user text that a spreadsheet would otherwise parse as a
// formula. Exports are written with USER_ENTERED, which hides the leading
// apostrophe and keeps the cell literal.
func SafeText(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
