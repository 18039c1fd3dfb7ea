package core

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(t EntryType, amount string, date Date) Entry {
	return Entry{Type: t, Amount: decimal.RequireFromString(amount), Date: date}
}

func amounts(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Amount.String()
	}
	return out
}

func TestSummarize_Balance(t *testing.T) {
	totals := Summarize([]Entry{
		entry(Income, "100", NewDate(2025, 1, 1)),
		entry(Expense, "40", NewDate(2025, 1, 2)),
	})
	assert.Equal(t, "100.00", totals.Income.StringFixed(2))
	assert.Equal(t, "40.00", totals.Expense.StringFixed(2))
	assert.Equal(t, "60.00", totals.Balance.StringFixed(2))
}

func TestSummarize_Empty(t *testing.T) {
	totals := Summarize(nil)
	assert.True(t, totals.Balance.IsZero())
}

func TestSortEntries(t *testing.T) {
	in := []Entry{
		entry(Expense, "5", NewDate(2025, 1, 2)),
		entry(Expense, "20", NewDate(2025, 1, 3)),
		entry(Expense, "1", NewDate(2025, 1, 1)),
	}

	assert.Equal(t, []string{"20", "5", "1"}, amounts(SortEntries(in, SortAmountDesc)))
	assert.Equal(t, []string{"1", "5", "20"}, amounts(SortEntries(in, SortAmountAsc)))
	assert.Equal(t, []string{"20", "5", "1"}, amounts(SortEntries(in, SortDateDesc)))
	assert.Equal(t, []string{"1", "5", "20"}, amounts(SortEntries(in, SortDateAsc)))

	// input untouched
	assert.Equal(t, []string{"5", "20", "1"}, amounts(in))
}

func TestSortEntries_StableTies(t *testing.T) {
	a := entry(Income, "10", NewDate(2025, 1, 1))
	a.Description = "first"
	b := entry(Expense, "10", NewDate(2025, 1, 1))
	b.Description = "second"

	out := SortEntries([]Entry{a, b}, SortAmountDesc)
	assert.Equal(t, "first", out[0].Description)
	assert.Equal(t, "second", out[1].Description)
}

func TestFilterEntries(t *testing.T) {
	in := []Entry{
		entry(Income, "1", NewDate(2025, 1, 1)),
		entry(Expense, "2", NewDate(2025, 1, 1)),
		entry(Income, "3", NewDate(2025, 1, 1)),
	}
	assert.Len(t, FilterEntries(in, FilterAll), 3)
	assert.Equal(t, []string{"1", "3"}, amounts(FilterEntries(in, FilterIncome)))
	assert.Equal(t, []string{"2"}, amounts(FilterEntries(in, FilterExpense)))

	q := Query{Type: FilterIncome, Sort: SortAmountDesc}
	assert.Equal(t, []string{"3", "1"}, amounts(q.Apply(in)))
}

func TestParseQueryValues(t *testing.T) {
	f, err := ParseTypeFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)
	f, err = ParseTypeFilter("expense")
	require.NoError(t, err)
	assert.Equal(t, FilterExpense, f)
	_, err = ParseTypeFilter("transfers")
	assert.Error(t, err)

	o, err := ParseSortOrder("")
	require.NoError(t, err)
	assert.Equal(t, SortDateDesc, o)
	o, err = ParseSortOrder("AMOUNT_ASC")
	require.NoError(t, err)
	assert.Equal(t, SortAmountAsc, o)
	_, err = ParseSortOrder("random")
	assert.Error(t, err)
}

func TestMonthlyTrend(t *testing.T) {
	trend := MonthlyTrend([]Entry{
		entry(Expense, "10", NewDate(2025, 2, 1)),
		entry(Expense, "12.50", NewDate(2025, 1, 15)),
		entry(Expense, "7.25", NewDate(2025, 1, 20)),
		entry(Income, "100", NewDate(2024, 12, 31)),
	})

	require.Len(t, trend, 3)
	assert.Equal(t, "2024-12", trend[0].Month)
	assert.Equal(t, "100.00", trend[0].Income.StringFixed(2))
	assert.Equal(t, "2025-01", trend[1].Month)
	assert.Equal(t, "19.75", trend[1].Expense.StringFixed(2))
	assert.True(t, trend[1].Income.IsZero())
	assert.Equal(t, "2025-02", trend[2].Month)
}

func TestCategoryBreakdown(t *testing.T) {
	food := "Food"
	e1 := entry(Expense, "10", NewDate(2025, 1, 1))
	e1.Category = &food
	e2 := entry(Expense, "5", NewDate(2025, 1, 2))
	e2.Category = &food
	e3 := entry(Income, "50", NewDate(2025, 1, 3))

	out := CategoryBreakdown([]Entry{e1, e2, e3})
	require.Len(t, out, 2)
	assert.Equal(t, "Food", out[0].Category)
	assert.Equal(t, "15.00", out[0].Expense.StringFixed(2))
	assert.Equal(t, UncategorizedLabel, out[1].Category)
	assert.Equal(t, "50.00", out[1].Income.StringFixed(2))
}

func TestSummaryJSON(t *testing.T) {
	out, err := json.Marshal(BuildSummary([]Entry{
		entry(Income, "100", NewDate(2025, 1, 1)),
		entry(Expense, "40", NewDate(2025, 1, 2)),
	}))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"income": 100.00, "expense": 40.00, "balance": 60.00,
		"monthly": [{"month": "2025-01", "income": 100.00, "expense": 40.00}],
		"categories": [{"category": "Uncategorized", "income": 100.00, "expense": 40.00}]
	}`, string(out))

	empty, err := json.Marshal(BuildSummary(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"income":0.00,"expense":0.00,"balance":0.00,"monthly":[],"categories":[]}`, string(empty))
}
