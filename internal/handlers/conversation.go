package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/chatsim/internal/models"
)

// PostMessageRequest represents the post message request.
type PostMessageRequest struct {
	Text string `json:"text"`
}

// MessageResponse wraps a message created by a command.
type MessageResponse struct {
	Message models.Message `json:"message"`
	Warning string         `json:"warning,omitempty"`
}

// GetConversation returns the full render frame.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.session.Screen())
}

// PostMessage sends a user text message.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, ok, err := h.session.SubmitText(r.Context(), req.Text)
	warning, handled := h.commandError(w, err)
	if handled {
		return
	}
	if !ok {
		h.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	h.JSON(w, http.StatusCreated, MessageResponse{Message: msg, Warning: warning})
}

// DeleteMessage removes the message at the index from the latest render.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	if _, handled := h.commandError(w, h.session.DeleteMessage(r.Context(), index)); handled {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearMessages empties the conversation.
func (h *Handler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	if _, handled := h.commandError(w, h.session.ClearAll(r.Context())); handled {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
