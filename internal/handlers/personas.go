package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/eldtechnologies/chatsim/internal/models"
)

// PersonasResponse lists the catalog and the active persona.
type PersonasResponse struct {
	Active   string           `json:"active"`
	Personas []models.Persona `json:"personas"`
}

// SelectPersonaRequest represents the select persona request.
type SelectPersonaRequest struct {
	ID string `json:"id"`
}

// ListPersonas returns the persona catalog.
func (h *Handler) ListPersonas(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, PersonasResponse{
		Active:   h.session.ActivePersona().ID,
		Personas: h.session.Personas(),
	})
}

// SelectPersona switches the active persona.
func (h *Handler) SelectPersona(w http.ResponseWriter, r *http.Request) {
	var req SelectPersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !h.session.SelectPersona(strings.TrimSpace(req.ID)) {
		h.Error(w, http.StatusNotFound, "persona not found")
		return
	}

	h.JSON(w, http.StatusOK, h.session.ActivePersona())
}
