package http

import (
	"net/http"

	"dispensa/internal/services"
)

type createCycleRequest struct {
	Month string `json:"month"`
	Label string `json:"label,omitempty"`
}

type consumptionRowRequest struct {
	PersonID string `json:"person_id"`
	Weight   int64  `json:"weight"`
	Notes    string `json:"notes,omitempty"`
}

func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	cs, err := s.cycles.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]cycleJSON, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCycleJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	var req createCycleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.cycles.Create(r.Context(), req.Month, req.Label)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCycleJSON(*c))
}

func (s *Server) handleCycleDetail(w http.ResponseWriter, r *http.Request) {
	d, err := s.cycles.Detail(r.Context(), r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cycleDetailJSON{
		Cycle:        toCycleJSON(d.Cycle),
		Transactions: toTransactionsJSON(d.Transactions),
		Entries:      toEntriesJSON(d.Entries),
		Payments:     toPaymentsJSON(d.Payments),
		Bill:         toBillJSON(d.Bill),
	})
}

func (s *Server) handleCycleBill(w http.ResponseWriter, r *http.Request) {
	_, bill, err := s.cycles.Bill(r.Context(), r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillJSON(bill))
}

func (s *Server) handleFinalizeCycle(w http.ResponseWriter, r *http.Request) {
	c, err := s.cycles.Finalize(r.Context(), r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleJSON(*c))
}

func (s *Server) handleUnfinalizeCycle(w http.ResponseWriter, r *http.Request) {
	c, err := s.cycles.Unfinalize(r.Context(), r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleJSON(*c))
}

func (s *Server) handleSetConsumption(w http.ResponseWriter, r *http.Request) {
	var rows []consumptionRowRequest
	if err := decodeJSON(r, &rows); err != nil {
		writeError(w, r, err)
		return
	}
	inputs := make([]services.ConsumptionInput, 0, len(rows))
	for _, row := range rows {
		inputs = append(inputs, services.ConsumptionInput{
			PersonID: row.PersonID,
			Weight:   row.Weight,
			Notes:    row.Notes,
		})
	}
	entries, err := s.cycles.SetConsumption(r.Context(), r.PathValue("month"), inputs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntriesJSON(entries))
}

func (s *Server) handleExportBill(w http.ResponseWriter, r *http.Request) {
	if err := s.cycles.Export(r.Context(), r.PathValue("month")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
