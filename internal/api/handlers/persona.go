package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/Harshitk-cp/credo/internal/service"
	"go.uber.org/zap"
)

type PersonaHandler struct {
	svc    *service.PersonaService
	logger *zap.Logger
}

func NewPersonaHandler(svc *service.PersonaService, logger *zap.Logger) *PersonaHandler {
	return &PersonaHandler{svc: svc, logger: logger}
}

type createPersonaRequest struct {
	DisplayName string         `json:"display_name"`
	Config      map[string]any `json:"config"`
}

func (h *PersonaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPersonaRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p := &domain.Persona{DisplayName: req.DisplayName, Config: req.Config}
	if err := h.svc.Create(r.Context(), p); err != nil {
		writeServiceError(w, h.logger, err, "failed to create persona")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PersonaHandler) List(w http.ResponseWriter, r *http.Request) {
	personas, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list personas")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"personas": personas})
}

func (h *PersonaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to get persona")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type updateConfigRequest struct {
	Config map[string]any `json:"config"`
}

func (h *PersonaHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	var req updateConfigRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.UpdateConfig(r.Context(), id, req.Config)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update persona config")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PersonaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "personaID")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete persona")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
