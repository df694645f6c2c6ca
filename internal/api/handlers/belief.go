package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/Harshitk-cp/credo/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StanceWriter appends stance versions. *service.StanceEngine implements it.
type StanceWriter interface {
	UpdateStance(ctx context.Context, u service.StanceUpdate) (uuid.UUID, error)
	OverrideStance(ctx context.Context, u service.StanceUpdate) (uuid.UUID, error)
}

type BeliefHandler struct {
	beliefs  *service.BeliefService
	engine   StanceWriter
	evidence *service.EvidenceService
	logger   *zap.Logger
}

func NewBeliefHandler(beliefs *service.BeliefService, engine StanceWriter, evidence *service.EvidenceService, logger *zap.Logger) *BeliefHandler {
	return &BeliefHandler{beliefs: beliefs, engine: engine, evidence: evidence, logger: logger}
}

// Graph handles GET /graph?tag=&min_confidence=.
func (h *BeliefHandler) Graph(w http.ResponseWriter, r *http.Request) {
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

	g, err := h.beliefs.GetGraph(r.Context(), personaID, filter)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load belief graph")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type initialStanceRequest struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
	Lock       bool    `json:"lock"`
	Actor      string  `json:"actor"`
}

type createBeliefRequest struct {
	Title   string                `json:"title"`
	Summary string                `json:"summary"`
	Tags    []string              `json:"tags"`
	Stance  *initialStanceRequest `json:"stance,omitempty"`
}

func (h *BeliefHandler) Create(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	var req createBeliefRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := service.CreateBeliefInput{
		PersonaID: personaID,
		Title:     req.Title,
		Summary:   req.Summary,
		Tags:      req.Tags,
	}
	if st := req.Stance; st != nil {
		in.Stance = &service.InitialStance{
			Text:       st.Text,
			Confidence: st.Confidence,
			Rationale:  st.Rationale,
			Lock:       st.Lock,
			Actor:      st.Actor,
		}
	}

	b, err := h.beliefs.CreateBelief(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create belief")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Get returns the belief with its stance versions and evidence.
func (h *BeliefHandler) Get(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	beliefID, ok := uuidParam(w, r, "beliefID")
	if !ok {
		return
	}

	history, err := h.beliefs.GetBeliefWithHistory(r.Context(), personaID, beliefID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to get belief")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

type patchBeliefRequest struct {
	Title   *string   `json:"title"`
	Summary *string   `json:"summary"`
	Tags    *[]string `json:"tags"`
}

func (h *BeliefHandler) Patch(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	beliefID, ok := uuidParam(w, r, "beliefID")
	if !ok {
		return
	}
	var req patchBeliefRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.beliefs.UpdateBelief(r.Context(), personaID, beliefID, service.BeliefPatch{
		Title:   req.Title,
		Summary: req.Summary,
		Tags:    req.Tags,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update belief")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BeliefHandler) Delete(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	beliefID, ok := uuidParam(w, r, "beliefID")
	if !ok {
		return
	}
	if err := h.beliefs.DeleteBelief(r.Context(), personaID, beliefID); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete belief")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BeliefHandler) Audit(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	beliefID, ok := uuidParam(w, r, "beliefID")
	if !ok {
		return
	}
	records, err := h.beliefs.ListUpdates(r.Context(), personaID, beliefID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list belief updates")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": records})
}

type stanceRequest struct {
	Text             string                 `json:"text"`
	Signal           *domain.EvidenceSignal `json:"signal,omitempty"`
	TargetConfidence *float64               `json:"target_confidence,omitempty"`
	Rationale        string                 `json:"rationale"`
	Trigger          domain.TriggerType     `json:"trigger_type"`
	Actor            string                 `json:"actor"`
	Lock             bool                   `json:"lock"`
}

type stanceResponse struct {
	VersionID uuid.UUID `json:"version_id"`
}

func (h *BeliefHandler) UpdateStance(w http.ResponseWriter, r *http.Request) {
	h.stance(w, r, false)
}

func (h *BeliefHandler) OverrideStance(w http.ResponseWriter, r *http.Request) {
	h.stance(w, r, true)
}

func (h *BeliefHandler) stance(w http.ResponseWriter, r *http.Request, override bool) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	beliefID, ok := uuidParam(w, r, "beliefID")
	if !ok {
		return
	}
	var req stanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u := service.StanceUpdate{
		PersonaID:        personaID,
		BeliefID:         beliefID,
		Text:             req.Text,
		Signal:           req.Signal,
		TargetConfidence: req.TargetConfidence,
		Rationale:        req.Rationale,
		Trigger:          req.Trigger,
		Actor:            req.Actor,
		Lock:             req.Lock,
	}

	write := h.engine.UpdateStance
	if override {
		write = h.engine.OverrideStance
	}
	// A lost head race re-reads the head and tries once more.
	versionID, err := service.RetryOnConcurrency(r.Context(), func(ctx context.Context) (uuid.UUID, error) {
		return write(ctx, u)
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update stance")
		return
	}
	writeJSON(w, http.StatusCreated, stanceResponse{VersionID: versionID})
}

type evidenceRequest struct {
	SourceType domain.EvidenceSourceType `json:"source_type"`
	SourceRef  string                    `json:"source_ref"`
	Strength   domain.EvidenceStrength   `json:"strength"`
}

func (h *BeliefHandler) AppendEvidence(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	beliefID, ok := uuidParam(w, r, "beliefID")
	if !ok {
		return
	}
	var req evidenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.evidence.AppendEvidence(r.Context(), personaID, beliefID, req.SourceType, req.SourceRef, req.Strength)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to append evidence")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uuid.UUID{"evidence_id": id})
}

func (h *BeliefHandler) ListEvidence(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	beliefID, ok := uuidParam(w, r, "beliefID")
	if !ok {
		return
	}
	links, err := h.evidence.ListEvidence(r.Context(), personaID, beliefID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list evidence")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"evidence": links})
}

type createEdgeRequest struct {
	SourceID uuid.UUID           `json:"source_id"`
	TargetID uuid.UUID           `json:"target_id"`
	Relation domain.RelationType `json:"relation"`
	Weight   float64             `json:"weight"`
}

func (h *BeliefHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	var req createEdgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e := &domain.BeliefEdge{
		PersonaID: personaID,
		SourceID:  req.SourceID,
		TargetID:  req.TargetID,
		Relation:  req.Relation,
		Weight:    req.Weight,
	}
	if err := h.beliefs.CreateEdge(r.Context(), e); err != nil {
		writeServiceError(w, h.logger, err, "failed to create edge")
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

type patchEdgeRequest struct {
	Relation *domain.RelationType `json:"relation"`
	Weight   *float64             `json:"weight"`
}

func (h *BeliefHandler) PatchEdge(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	edgeID, ok := uuidParam(w, r, "edgeID")
	if !ok {
		return
	}
	var req patchEdgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := h.beliefs.UpdateEdge(r.Context(), personaID, edgeID, service.EdgePatch{Relation: req.Relation, Weight: req.Weight})
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update edge")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *BeliefHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	edgeID, ok := uuidParam(w, r, "edgeID")
	if !ok {
		return
	}
	if err := h.beliefs.DeleteEdge(r.Context(), personaID, edgeID); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete edge")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
