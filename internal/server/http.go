package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/audit"
	"github.com/alfredjeanlab/gatepass/internal/forward"
	"github.com/alfredjeanlab/gatepass/internal/model"
	"github.com/alfredjeanlab/gatepass/internal/reconcile"
)

// maxRequestBody caps a gate-entry submission.
const maxRequestBody = 1 << 20

// Response statuses for gate-entry submissions.
const (
	statusMatched  = "MATCHED"
	statusMismatch = "MISMATCH"
	typeExpired    = "PERMIT_EXPIRED"
)

// historyAliases maps the legacy plural route names onto categories.
var historyAliases = map[string]model.Category{
	"mismatched": model.CategoryMismatch,
}

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/gate-entries", s.handleGateEntry)
	mux.HandleFunc("GET /v1/history/{category}", s.handleHistory)
	mux.HandleFunc("POST /v1/forward/replay", s.handleReplay)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return RecoveryMiddleware(s.logger, AuthMiddleware(authToken, mux))
}

type matchedResponse struct {
	Success  bool                   `json:"success"`
	Status   string                 `json:"status"`
	Source   model.Source           `json:"source"`
	Decision model.Decision         `json:"decision"`
	SOAPData *model.AuthorityRecord `json:"soapData"`
}

type mismatchResponse struct {
	Success    bool                   `json:"success"`
	Status     string                 `json:"status"`
	Mismatches []model.MismatchDetail `json:"mismatches"`
	SOAPData   *model.AuthorityRecord `json:"soapData"`
	Decision   model.Decision         `json:"decision"`
}

type expiredResponse struct {
	Success  bool                   `json:"success"`
	Type     string                 `json:"type"`
	SOAPData *model.AuthorityRecord `json:"soapData"`
	Decision model.Decision         `json:"decision"`
}

type historyResponse struct {
	Success bool               `json:"success"`
	Count   int                `json:"count"`
	Data    []model.AuditEntry `json:"data"`
}

type replayResponse struct {
	Success bool `json:"success"`
	forward.ReplayResult
}

// handleGateEntry handles POST /v1/gate-entries.
func (s *Server) handleGateEntry(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		ierr := inputError("reading request body: " + err.Error())
		s.engine.RecordError(r.Context(), ierr, nil)
		writeError(w, status, ierr.Error())
		return
	}

	d, err := s.engine.Process(r.Context(), body)
	switch {
	case reconcile.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeDecision(w, d)
}

// writeDecision maps a decision outcome onto its status code and body.
func writeDecision(w http.ResponseWriter, d model.Decision) {
	switch d.Outcome {
	case model.OutcomeMatched:
		writeJSON(w, http.StatusOK, matchedResponse{
			Success:  true,
			Status:   statusMatched,
			Source:   d.Source,
			Decision: d,
			SOAPData: d.Record,
		})
	case model.OutcomeMismatch:
		writeJSON(w, http.StatusConflict, mismatchResponse{
			Status:     statusMismatch,
			Mismatches: d.Mismatches,
			SOAPData:   d.Record,
			Decision:   d,
		})
	default:
		writeJSON(w, http.StatusUnprocessableEntity, expiredResponse{
			Type:     typeExpired,
			SOAPData: d.Record,
			Decision: d,
		})
	}
}

// handleHistory handles GET /v1/history/{category}.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("category")
	c, ok := historyAliases[name]
	if !ok {
		c = model.Category(name)
	}

	entries, err := s.audit.Query(r.Context(), c)
	if errors.Is(err, audit.ErrUnknownCategory) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Success: true, Count: len(entries), Data: entries})
}

// handleReplay handles POST /v1/forward/replay.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	if s.replayer == nil {
		writeError(w, http.StatusServiceUnavailable, "forwarding is not configured")
		return
	}
	res, err := forward.Replay(r.Context(), s.audit, s.replayer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("forward replay finished",
		"pending", res.Pending, "delivered", res.Delivered, "failed", res.Failed, "skipped", res.Skipped)
	writeJSON(w, http.StatusOK, replayResponse{Success: true, ReplayResult: res})
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	p := s.engine.Policy()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "ok",
		"policyId":      p.PolicyID,
		"policyVersion": p.PolicyVersion,
		"uptime":        time.Since(s.started).Round(time.Second).String(),
	})
}

// writeJSON writes data as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
