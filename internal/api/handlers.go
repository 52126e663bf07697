package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"price-predicates/internal/predicate"
)

type cancelRequest struct {
	OwnerAddress string `json:"ownerAddress"`
}

func (s *Server) createPredicate(w http.ResponseWriter, r *http.Request) {
	var req predicate.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, predicate.KindValidation, "malformed request body: "+err.Error())
		return
	}

	rec, err := s.manager.Create(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) validatePredicate(w http.ResponseWriter, r *http.Request) {
	v, err := s.manager.Validate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) predicateStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.manager.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) cancelPredicate(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, predicate.KindValidation, "malformed request body: "+err.Error())
		return
	}

	rec, err := s.manager.Cancel(r.Context(), mux.Vars(r)["id"], req.OwnerAddress)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) predicateHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit, ok := intParam(w, query.Get("limit"), "limit", s.opts.DefaultLimit)
	if !ok {
		return
	}
	page, ok := intParam(w, query.Get("page"), "page", 1)
	if !ok {
		return
	}

	entries, err := s.history.Query(r.Context(), mux.Vars(r)["owner"], limit, page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) availableOracles(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["chainId"]
	chainID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, predicate.KindValidation, "chainId must be an integer")
		return
	}

	quotes, err := s.oracles.Available(r.Context(), chainID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("chain_id", chainID).Msg("oracle listing failed")
		writeError(w, http.StatusServiceUnavailable, predicate.KindOracleUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"version": s.opts.Version,
	}
	if s.healthFn != nil {
		for k, v := range s.healthFn() {
			body[k] = v
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// intParam parses an optional integer query parameter.
func intParam(w http.ResponseWriter, raw, name string, fallback int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, predicate.KindValidation, name+" must be an integer")
		return 0, false
	}
	return n, true
}
