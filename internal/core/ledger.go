package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// TypeFilter selects entries by type.
type TypeFilter string

const (
	FilterAll     TypeFilter = "ALL"
	FilterIncome  TypeFilter = "INCOME"
	FilterExpense TypeFilter = "EXPENSE"
)

// SortOrder orders a ledger view.
type SortOrder string

const (
	SortDateDesc   SortOrder = "date_desc"
	SortDateAsc    SortOrder = "date_asc"
	SortAmountDesc SortOrder = "amount_desc"
	SortAmountAsc  SortOrder = "amount_asc"
)

// UncategorizedLabel groups entries without a category in breakdowns.
const UncategorizedLabel = "Uncategorized"

// ParseTypeFilter maps a query value to a filter; empty means ALL.
func ParseTypeFilter(s string) (TypeFilter, error) {
	switch f := TypeFilter(strings.ToUpper(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterIncome, FilterExpense:
		return f, nil
	default:
		return "", fmt.Errorf("unknown type filter %q", s)
	}
}

// ParseSortOrder maps a query value to a sort order; empty means date_desc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return SortDateDesc, nil
	case SortDateDesc, SortDateAsc, SortAmountDesc, SortAmountAsc:
		return o, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", s)
	}
}

// Query is a filtered, sorted view over the ledger.
type Query struct {
	Type TypeFilter
	Sort SortOrder
}

func (q Query) Apply(entries []Entry) []Entry {
	return SortEntries(FilterEntries(entries, q.Type), q.Sort)
}

// FilterEntries returns the entries whose type matches f exactly.
func FilterEntries(entries []Entry, f TypeFilter) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f == FilterAll || f == "" || string(e.Type) == string(f) {
			out = append(out, e)
		}
	}
	return out
}

// SortEntries returns a sorted copy. Ties keep their input order.
func SortEntries(entries []Entry, order SortOrder) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)

	var less func(a, b Entry) bool
	switch order {
	case SortDateAsc:
		less = func(a, b Entry) bool { return a.Date.Before(b.Date.Time) }
	case SortAmountDesc:
		less = func(a, b Entry) bool { return a.Amount.GreaterThan(b.Amount) }
	case SortAmountAsc:
		less = func(a, b Entry) bool { return a.Amount.LessThan(b.Amount) }
	default:
		less = func(a, b Entry) bool { return a.Date.After(b.Date.Time) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Totals are the headline figures of a ledger.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// Summarize sums income and expense; balance is income minus expense.
func Summarize(entries []Entry) Totals {
	var t Totals
	for _, e := range entries {
		switch e.Type {
		case Income:
			t.Income = t.Income.Add(e.Amount)
		case Expense:
			t.Expense = t.Expense.Add(e.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// MonthTotal is the income and expense of one YYYY-MM month.
type MonthTotal struct {
	Month   string
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// MonthlyTrend groups entries by month key, sorted lexicographically.
func MonthlyTrend(entries []Entry) []MonthTotal {
	byMonth := map[string]*MonthTotal{}
	for _, e := range entries {
		key := e.Date.MonthKey()
		m, ok := byMonth[key]
		if !ok {
			m = &MonthTotal{Month: key}
			byMonth[key] = m
		}
		switch e.Type {
		case Income:
			m.Income = m.Income.Add(e.Amount)
		case Expense:
			m.Expense = m.Expense.Add(e.Amount)
		}
	}
	out := make([]MonthTotal, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// CategoryTotal is the income and expense recorded under one category.
type CategoryTotal struct {
	Category string
	Income   decimal.Decimal
	Expense  decimal.Decimal
}

// CategoryBreakdown groups entries by category name, sorted by name.
func CategoryBreakdown(entries []Entry) []CategoryTotal {
	byCat := map[string]*CategoryTotal{}
	for _, e := range entries {
		name := e.CategoryName()
		if name == "" {
			name = UncategorizedLabel
		}
		c, ok := byCat[name]
		if !ok {
			c = &CategoryTotal{Category: name}
			byCat[name] = c
		}
		switch e.Type {
		case Income:
			c.Income = c.Income.Add(e.Amount)
		case Expense:
			c.Expense = c.Expense.Add(e.Amount)
		}
	}
	out := make([]CategoryTotal, 0, len(byCat))
	for _, c := range byCat {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// Summary bundles every derived figure the dashboard shows.
type Summary struct {
	Totals
	Monthly    []MonthTotal
	Categories []CategoryTotal
}

func BuildSummary(entries []Entry) Summary {
	return Summary{
		Totals:     Summarize(entries),
		Monthly:    MonthlyTrend(entries),
		Categories: CategoryBreakdown(entries),
	}
}

func fixed(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func (m MonthTotal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Month   string      `json:"month"`
		Income  json.Number `json:"income"`
		Expense json.Number `json:"expense"`
	}{m.Month, fixed(m.Income), fixed(m.Expense)})
}

func (c CategoryTotal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Category string      `json:"category"`
		Income   json.Number `json:"income"`
		Expense  json.Number `json:"expense"`
	}{c.Category, fixed(c.Income), fixed(c.Expense)})
}

func (s Summary) MarshalJSON() ([]byte, error) {
	monthly := s.Monthly
	if monthly == nil {
		monthly = []MonthTotal{}
	}
	categories := s.Categories
	if categories == nil {
		categories = []CategoryTotal{}
	}
	return json.Marshal(struct {
		Income     json.Number     `json:"income"`
		Expense    json.Number     `json:"expense"`
		Balance    json.Number     `json:"balance"`
		Monthly    []MonthTotal    `json:"monthly"`
		Categories []CategoryTotal `json:"categories"`
	}{fixed(s.Income), fixed(s.Expense), fixed(s.Balance), monthly, categories})
}
