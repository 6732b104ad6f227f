// Package aggregate turns a ledger snapshot into chart-ready summaries.
//
// Everything here is a pure function of its input: no I/O, no clocks, no
// shared state. Sums are kept in integer cents, so the totals are exact and
// rounding to two digits is a formatting concern only.
package aggregate

import (
	"sort"

	"fintrack/internal/core"
)

// NoDataMessage is set on a Summary built from an empty ledger.
const NoDataMessage = "No transaction data available"

// DailySeries holds income and expense totals aligned to one date axis.
type DailySeries struct {
	Dates   []core.Date  `json:"dates"`
	Income  []core.Money `json:"income"`
	Expense []core.Money `json:"expense"`
}

type Totals struct {
	TotalIncome  core.Money `json:"totalIncome"`
	TotalExpense core.Money `json:"totalExpense"`
	NetBalance   core.Money `json:"netBalance"`
}

type Summary struct {
	DailySeries    DailySeries           `json:"dailySeries"`
	CategoryTotals map[string]core.Money `json:"categoryTotals"`
	Totals         Totals                `json:"totals"`
	NoDataMessage  string                `json:"noDataMessage,omitempty"`
}

// HasData reports whether the summary was built from at least one transaction.
func (s Summary) HasData() bool {
	return s.NoDataMessage == ""
}

// Summarize computes all views over txs. Input order does not matter.
func Summarize(txs []core.Transaction) Summary {
	if len(txs) == 0 {
		return empty()
	}
	return Summary{
		DailySeries:    Daily(txs),
		CategoryTotals: ByCategory(txs),
		Totals:         Total(txs),
	}
}

func empty() Summary {
	return Summary{
		DailySeries: DailySeries{
			Dates:   []core.Date{},
			Income:  []core.Money{},
			Expense: []core.Money{},
		},
		CategoryTotals: map[string]core.Money{},
		NoDataMessage:  NoDataMessage,
	}
}

type dayTotals struct {
	income, expense core.Money
}

// Daily groups txs by calendar date and returns the series in chronological
// order.
func Daily(txs []core.Transaction) DailySeries {
	byDay := make(map[core.Date]*dayTotals)
	for _, t := range txs {
		day := core.DateOf(t.Date.Time)
		acc, ok := byDay[day]
		if !ok {
			acc = &dayTotals{}
			byDay[day] = acc
		}
		if t.Kind.IsIncome() {
			acc.income = acc.income.Add(t.Amount)
		} else {
			acc.expense = acc.expense.Add(t.Amount)
		}
	}

	dates := make([]core.Date, 0, len(byDay))
	for d := range byDay {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j].Time)
	})

	series := DailySeries{
		Dates:   dates,
		Income:  make([]core.Money, len(dates)),
		Expense: make([]core.Money, len(dates)),
	}
	for i, d := range dates {
		series.Income[i] = byDay[d].income
		series.Expense[i] = byDay[d].expense
	}
	return series
}

// ByCategory sums expense amounts per category. Income never contributes.
func ByCategory(txs []core.Transaction) map[string]core.Money {
	out := make(map[string]core.Money)
	for _, t := range txs {
		if !t.Kind.IsExpense() {
			continue
		}
		cat := t.Kind.Category()
		out[cat] = out[cat].Add(t.Amount)
	}
	return out
}

// Total returns overall income, expense and their difference.
func Total(txs []core.Transaction) Totals {
	var income, expense core.Money
	for _, t := range txs {
		if t.Kind.IsIncome() {
			income = income.Add(t.Amount)
		} else {
			expense = expense.Add(t.Amount)
		}
	}
	return Totals{
		TotalIncome:  income,
		TotalExpense: expense,
		NetBalance:   income.Sub(expense),
	}
}
