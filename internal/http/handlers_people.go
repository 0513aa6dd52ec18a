package http

import (
	"net/http"
)

type createPersonRequest struct {
	Name string `json:"name"`
}

type renamePersonRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	people, err := s.people.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeopleJSON(people))
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	var req createPersonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.people.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPersonJSON(*p))
}

func (s *Server) handleRenamePerson(w http.ResponseWriter, r *http.Request) {
	var req renamePersonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.people.Rename(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonJSON(*p))
}

func (s *Server) handleDeactivatePerson(w http.ResponseWriter, r *http.Request) {
	if err := s.people.Deactivate(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
