package sheets

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
)

func TestLedgerRows(t *testing.T) {
	food := "Food"
	entries := []core.Entry{
		{Type: core.Income, Amount: decimal.NewFromInt(100), Date: core.NewDate(2025, 1, 15), Description: "Salary"},
		{Type: core.Expense, Amount: decimal.RequireFromString("40.5"), Category: &food, Date: core.NewDate(2025, 1, 20), Description: "Groceries"},
	}

	rows := LedgerRows(entries)
	require.Len(t, rows, 7)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []any{"2025-01-15", "INCOME", "", "Salary", "100.00"}, rows[1])
	assert.Equal(t, []any{"2025-01-20", "EXPENSE", "Food", "Groceries", "40.50"}, rows[2])
	assert.Empty(t, rows[3])
	assert.Equal(t, "100.00", rows[4][4])
	assert.Equal(t, "40.50", rows[5][4])
	assert.Equal(t, []any{"", "", "", "Balance", "59.50"}, rows[6])
}

func TestLedgerRows_Empty(t *testing.T) {
	rows := LedgerRows(nil)
	require.Len(t, rows, 5)
	assert.Equal(t, "0.00", rows[4][4])
}

func TestLedgerRows_QuotesFormulaLikeText(t *testing.T) {
	cat := "@SUM(A1)"
	entries := []core.Entry{
		{Type: core.Expense, Amount: decimal.NewFromInt(1), Category: &cat, Date: core.NewDate(2025, 1, 1), Description: `=HYPERLINK("http://x","y")`},
	}
	rows := LedgerRows(entries)
	assert.Equal(t, "'@SUM(A1)", rows[1][2])
	assert.Equal(t, `'=HYPERLINK("http://x","y")`, rows[1][3])
}

func TestSafeText(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"Lunch":     "Lunch",
		"=1+1":      "'=1+1",
		"+39 phone": "'+39 phone",
		"-5 refund": "'-5 refund",
		"@cmd":      "'@cmd",
		"\tx":       "'\tx",
		"a=b":       "a=b",
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeText(in), in)
	}
}
