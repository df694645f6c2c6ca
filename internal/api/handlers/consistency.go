package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/Harshitk-cp/credo/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConsistencyHandler exposes the read and feedback sides of the consistency
// checker integration.
type ConsistencyHandler struct {
	svc    *service.ConsistencyService
	logger *zap.Logger
}

func NewConsistencyHandler(svc *service.ConsistencyService, logger *zap.Logger) *ConsistencyHandler {
	return &ConsistencyHandler{svc: svc, logger: logger}
}

func (h *ConsistencyHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}

	filter := domain.GraphFilter{Tag: r.URL.Query().Get("tag")}
	if s := r.URL.Query().Get("min_confidence"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_confidence")
			return
		}
		filter.MinConfidence = &v
	}

	beliefs, err := h.svc.Snapshot(r.Context(), personaID, filter)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to snapshot beliefs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"beliefs": beliefs})
}

type verdictRequest struct {
	BeliefID    uuid.UUID               `json:"belief_id"`
	Contradicts bool                    `json:"contradicts"`
	Severity    domain.EvidenceStrength `json:"severity"`
	Rationale   string                  `json:"rationale"`
	Actor       string                  `json:"actor"`
	SourceRef   string                  `json:"source_ref"`
}

type lockedVerdictResponse struct {
	Error string `json:"error"`
	*service.VerdictOutcome
}

func (h *ConsistencyHandler) Verdict(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	var req verdictRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := h.svc.ApplyVerdict(r.Context(), personaID, service.Verdict{
		BeliefID:    req.BeliefID,
		Contradicts: req.Contradicts,
		Severity:    req.Severity,
		Rationale:   req.Rationale,
		Actor:       req.Actor,
		SourceRef:   req.SourceRef,
	})
	if out != nil && errors.Is(err, domain.ErrLockedStance) {
		writeJSON(w, http.StatusLocked, lockedVerdictResponse{Error: err.Error(), VerdictOutcome: out})
		return
	}
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to apply verdict")
		return
	}
	writeJSON(w, http.StatusOK, out)
}
