package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"sentinel-hq/aegis/pkg/enforce"
	"sentinel-hq/aegis/pkg/service"
)

// maxBodyBytes caps request bodies; rule sets with full anchor payloads
// stay well under this.
const maxBodyBytes = 8 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// handleEnforce evaluates an intent. Policy outcomes are always 200;
// the decision lives in the body.
func (s *Server) handleEnforce(w http.ResponseWriter, r *http.Request) {
	var intent enforce.Intent
	if !decodeBody(w, r, &intent) {
		return
	}

	result := s.service.Enforce(r.Context(), &intent)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleInstallRules(w http.ResponseWriter, r *http.Request) {
	var req service.InstallRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.service.InstallRules(r.Context(), &req)
	if err != nil {
		// Validation problems are the caller's fault; a failure while
		// writing the tiers is ours.
		status := http.StatusBadRequest
		var perr *service.PersistenceError
		if errors.As(err, &perr) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRemoveAgentRules(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")

	removed, err := s.service.RemoveAgentRules(r.Context(), agentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleRemovePolicy(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")
	ruleID := r.PathValue("rule_id")

	outcome, err := s.service.RemovePolicy(r.Context(), agentID, ruleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusOK
	switch outcome {
	case service.OutcomeNotFound:
		status = http.StatusNotFound
	case service.OutcomeForbidden:
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]service.RemoveOutcome{"outcome": outcome})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.RefreshRules()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "refresh failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.GetRuleStats(r.Context()))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
