package aggregate

import (
	"encoding/json"
	"testing"

	"fintrack/internal/core"
)

func tx(t *testing.T, amount, typ, category string, y, m, d int) core.Transaction {
	t.Helper()
	e, err := core.EntryInput{
		Description: "x",
		Amount:      amount,
		Type:        typ,
		Category:    category,
		Date:        core.NewDate(y, m, d).String(),
	}.Normalize()
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	return core.Transaction{}.Apply(e)
}

func TestSummarizeScenario(t *testing.T) {
	txs := []core.Transaction{
		tx(t, "100.00", "income", "", 2024, 1, 1),
		tx(t, "45.555", "expense", "food", 2024, 1, 1),
		tx(t, "10.00", "expense", "food", 2024, 1, 2),
	}
	s := Summarize(txs)

	if !s.HasData() {
		t.Fatalf("expected data")
	}
	if got := txs[1].Amount.String(); got != "45.56" {
		t.Fatalf("expected 45.56, got %s", got)
	}
	wantDates := []string{"2024-01-01", "2024-01-02"}
	wantIncome := []string{"100.00", "0.00"}
	wantExpense := []string{"45.56", "10.00"}
	if len(s.DailySeries.Dates) != 2 {
		t.Fatalf("expected 2 dates, got %d", len(s.DailySeries.Dates))
	}
	for i := range wantDates {
		if s.DailySeries.Dates[i].String() != wantDates[i] {
			t.Errorf("date[%d] = %s, want %s", i, s.DailySeries.Dates[i], wantDates[i])
		}
		if s.DailySeries.Income[i].String() != wantIncome[i] {
			t.Errorf("income[%d] = %s, want %s", i, s.DailySeries.Income[i], wantIncome[i])
		}
		if s.DailySeries.Expense[i].String() != wantExpense[i] {
			t.Errorf("expense[%d] = %s, want %s", i, s.DailySeries.Expense[i], wantExpense[i])
		}
	}
	if len(s.CategoryTotals) != 1 || s.CategoryTotals["food"].String() != "55.56" {
		t.Fatalf("unexpected categories: %v", s.CategoryTotals)
	}
	if s.Totals.TotalIncome.String() != "100.00" ||
		s.Totals.TotalExpense.String() != "55.56" ||
		s.Totals.NetBalance.String() != "44.44" {
		t.Fatalf("unexpected totals: %+v", s.Totals)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.HasData() || s.NoDataMessage == "" {
		t.Fatalf("expected no-data indicator")
	}
	if s.Totals != (Totals{}) {
		t.Fatalf("expected zero totals, got %+v", s.Totals)
	}
	if len(s.DailySeries.Dates) != 0 || len(s.CategoryTotals) != 0 {
		t.Fatalf("expected empty collections")
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	series := m["dailySeries"].(map[string]any)
	if dates, ok := series["dates"].([]any); !ok || len(dates) != 0 {
		t.Fatalf("dates should be an empty array, got %s", b)
	}
}

func TestZeroSumIsNotEmpty(t *testing.T) {
	s := Summarize([]core.Transaction{
		tx(t, "20", "income", "", 2024, 3, 1),
		tx(t, "20", "expense", "rent", 2024, 3, 1),
	})
	if !s.HasData() {
		t.Fatalf("a ledger that sums to zero still has data")
	}
	if s.Totals.NetBalance.Cents != 0 {
		t.Fatalf("expected zero balance, got %s", s.Totals.NetBalance)
	}
}

func TestDailyChronologicalNotDiscoveryOrder(t *testing.T) {
	s := Daily([]core.Transaction{
		tx(t, "1", "income", "", 2024, 12, 1),
		tx(t, "1", "income", "", 2023, 2, 10),
		tx(t, "1", "expense", "a", 2024, 1, 15),
		tx(t, "1", "income", "", 2024, 12, 1),
	})
	want := []string{"2023-02-10", "2024-01-15", "2024-12-01"}
	for i, d := range s.Dates {
		if d.String() != want[i] {
			t.Fatalf("dates = %v, want %v", s.Dates, want)
		}
	}
	if s.Income[2].Cents != 200 || s.Expense[1].Cents != 100 || s.Income[1].Cents != 0 {
		t.Fatalf("unexpected series: %+v", s)
	}
}

func TestByCategoryExcludesIncome(t *testing.T) {
	cats := ByCategory([]core.Transaction{
		tx(t, "500", "income", "salary", 2024, 1, 1),
		tx(t, "3.333", "expense", "fun", 2024, 1, 1),
		tx(t, "3.333", "expense", "fun", 2024, 1, 2),
	})
	if _, ok := cats[""]; ok {
		t.Fatalf("income must not appear under any category")
	}
	if _, ok := cats["salary"]; ok {
		t.Fatalf("income category must be ignored")
	}
	if len(cats) != 1 || cats["fun"].String() != "6.66" {
		t.Fatalf("unexpected: %v", cats)
	}
}

func TestTotalsManySmallAmounts(t *testing.T) {
	var txs []core.Transaction
	for i := 0; i < 1000; i++ {
		txs = append(txs, tx(t, "0.1", "expense", "c", 2024, 1, 1))
		txs = append(txs, tx(t, "0.2", "income", "", 2024, 1, 1))
	}
	tot := Total(txs)
	if tot.TotalExpense.String() != "100.00" || tot.TotalIncome.String() != "200.00" {
		t.Fatalf("accumulated drift: %+v", tot)
	}
	if tot.NetBalance != tot.TotalIncome.Sub(tot.TotalExpense) {
		t.Fatalf("net balance mismatch")
	}
}

func TestSummarizeDeterministic(t *testing.T) {
	txs := []core.Transaction{
		tx(t, "1", "expense", "b", 2024, 5, 2),
		tx(t, "2", "expense", "a", 2024, 5, 1),
		tx(t, "3", "income", "", 2024, 5, 3),
	}
	a, _ := json.Marshal(Summarize(txs))
	b, _ := json.Marshal(Summarize(txs))
	if string(a) != string(b) {
		t.Fatalf("non-deterministic output")
	}
}

func TestTotalsLargeAmountsDoNotWrap(t *testing.T) {
	var txs []core.Transaction
	for i := 0; i < 1000; i++ {
		txs = append(txs, tx(t, "100000000000", "income", "", 2024, 1, 1))
	}
	txs = append(txs, tx(t, "100000000000", "expense", "rent", 2024, 1, 1))

	s := Summarize(txs)
	want := "100000000000000.00" // 1000 * 1e11
	if got := s.Totals.TotalIncome.String(); got != want {
		t.Fatalf("totalIncome = %s, want %s", got, want)
	}
	if got := s.DailySeries.Income[0].String(); got != want {
		t.Fatalf("daily income = %s, want %s", got, want)
	}
	if got := s.Totals.NetBalance.String(); got != "99900000000000.00" {
		t.Fatalf("netBalance = %s", got)
	}
	if got := s.CategoryTotals["rent"].String(); got != "100000000000.00" {
		t.Fatalf("rent = %s", got)
	}
}
