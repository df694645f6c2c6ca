package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/Harshitk-cp/credo/internal/service"
	"go.uber.org/zap"
)

type MemoryHandler struct {
	svc    *service.MemoryService
	logger *zap.Logger
}

func NewMemoryHandler(svc *service.MemoryService, logger *zap.Logger) *MemoryHandler {
	return &MemoryHandler{svc: svc, logger: logger}
}

type logInteractionRequest struct {
	Content     string                 `json:"content"`
	Type        domain.InteractionType `json:"type"`
	ExternalRef string                 `json:"external_ref"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
}

func (h *MemoryHandler) LogInteraction(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	var req logInteractionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in, err := h.svc.LogInteraction(r.Context(), personaID, req.Content, req.Type, req.ExternalRef, req.Metadata)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to log interaction")
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

type addEmbeddingRequest struct {
	Embedding []float32 `json:"embedding"`
}

func (h *MemoryHandler) AddEmbedding(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	interactionID, ok := uuidParam(w, r, "interactionID")
	if !ok {
		return
	}
	var req addEmbeddingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.AddEmbedding(r.Context(), personaID, interactionID, req.Embedding); err != nil {
		writeServiceError(w, h.logger, err, "failed to add embedding")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchRequest struct {
	Query     string    `json:"query,omitempty"`
	Vector    []float32 `json:"vector,omitempty"`
	K         int       `json:"k"`
	Subreddit string    `json:"subreddit,omitempty"`
}

func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.K == 0 {
		req.K = 10
	}

	matches, err := h.svc.SearchHistory(r.Context(), personaID, domain.SearchQuery{
		Text:      req.Query,
		Vector:    req.Vector,
		K:         req.K,
		Subreddit: req.Subreddit,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to search interactions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (h *MemoryHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	personaID, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	n, err := h.svc.RebuildIndex(r.Context(), personaID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to rebuild index")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"entries": n})
}
