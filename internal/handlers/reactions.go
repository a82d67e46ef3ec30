package handlers

import (
	"encoding/json"
	"net/http"
)

// PostReactionRequest represents the add reaction request.
type PostReactionRequest struct {
	Token string `json:"token"`
}

// PostReaction adds a reaction to the newest message and returns it.
func (h *Handler) PostReaction(w http.ResponseWriter, r *http.Request) {
	var req PostReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token := sanitizeReaction(req.Token)
	msg, err := h.session.AddReactionToLast(r.Context(), token)
	warning, handled := h.commandError(w, err)
	if handled {
		return
	}

	h.JSON(w, http.StatusCreated, MessageResponse{Message: msg, Warning: warning})
}
