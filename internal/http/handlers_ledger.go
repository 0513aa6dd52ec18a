package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"dispensa/internal/core"
)

type addTransactionRequest struct {
	Date     string `json:"date"`
	Merchant string `json:"merchant"`
	Amount   string `json:"amount"`
	Notes    string `json:"notes,omitempty"`
}

type setVerifiedRequest struct {
	Verified *bool `json:"verified"`
}

type addPaymentRequest struct {
	PersonID string `json:"person_id"`
	Amount   string `json:"amount"`
	Note     string `json:"note,omitempty"`
	Date     string `json:"date,omitempty"`
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, core.Validationf("invalid amount %q", s)
	}
	return d, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := s.ledger.ListTransactions(r.Context(), r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionsJSON(txns))
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req addTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.AddManual(r.Context(), r.PathValue("month"), date, req.Merchant, amount, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(*t))
}

func (s *Server) handleSetVerified(w http.ResponseWriter, r *http.Request) {
	var req setVerifiedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Verified == nil {
		writeError(w, r, core.Validationf("missing verified field"))
		return
	}
	t, err := s.ledger.SetVerified(r.Context(), r.PathValue("month"), r.PathValue("id"), *req.Verified)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(*t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	err := s.ledger.DeleteTransaction(r.Context(), r.PathValue("month"), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportCSV takes the raw card export as the request body and responds
// with the merge counters. Row-level errors are counted, not fatal.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.ledger.ImportCSV(r.Context(), r.PathValue("month"), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSyncBank(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledger.SyncBank(r.Context(), r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAddPayment(w http.ResponseWriter, r *http.Request) {
	var req addPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var date core.Date
	if req.Date != "" {
		date, err = core.ParseDate(req.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}
	p, err := s.ledger.AddPayment(r.Context(), r.PathValue("month"), req.PersonID, amount, req.Note, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentJSON(*p))
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	err := s.ledger.DeletePayment(r.Context(), r.PathValue("month"), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
