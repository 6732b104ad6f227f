package http

import (
	"net/http"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.Chronological(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().Field("transactions", txs).Write(w)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readEntry(w, r)
	if !ok {
		return
	}
	tx, err := s.ledger.Add(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Field("transaction", tx).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readEntry(w, r)
	if !ok {
		return
	}
	tx, err := s.ledger.Update(r.Context(), identity(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Field("transaction", tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Delete(r.Context(), identity(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Message("Transaction deleted successfully").Write(w)
}

func (s *Server) readEntry(w http.ResponseWriter, r *http.Request) (core.EntryInput, bool) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return core.EntryInput{}, false
	}
	in, err := req.entryInput()
	if err != nil {
		writeError(w, r, err)
		return core.EntryInput{}, false
	}
	return in, true
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.Chronological(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Field("data", aggregate.Summarize(txs)).Write(w)
}

// chartData is the summary plus the income/expense split the client draws
// as a doughnut.
type chartData struct {
	aggregate.Summary
	Doughnut []core.Money `json:"doughnut"`
}

func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.Chronological(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary := aggregate.Summarize(txs)
	NewJSONResponse().Field("data", chartData{
		Summary:  summary,
		Doughnut: []core.Money{summary.Totals.TotalIncome, summary.Totals.TotalExpense},
	}).Write(w)
}
