package handlers

import (
	"net/http"

	"github.com/eldtechnologies/chatsim/internal/models"
)

// MessagePreview represents a preview of a message.
type MessagePreview struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Kind      string `json:"kind"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalMessages  int              `json:"total_messages"`
	BySender       map[string]int   `json:"by_sender"`
	ByKind         map[string]int   `json:"by_kind"`
	TotalReactions int              `json:"total_reactions"`
	LastActivity   string           `json:"last_activity"`
	Persona        string           `json:"persona"`
	Responder      string           `json:"responder"`
	Clients        int              `json:"clients"`
	RecentMessages []MessagePreview `json:"recent_messages"`
}

// Stats returns conversation statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	msgs := h.session.Messages()

	resp := StatsResponse{
		TotalMessages:  len(msgs),
		BySender:       map[string]int{"user": 0, "bot": 0},
		ByKind:         map[string]int{"text": 0, "image": 0},
		LastActivity:   "no activity yet",
		Persona:        h.session.ActivePersona().ID,
		Responder:      h.session.ResponderState().String(),
		RecentMessages: make([]MessagePreview, 0, 5),
	}
	if h.hub != nil {
		resp.Clients = h.hub.ClientCount()
	}

	for _, m := range msgs {
		resp.BySender[string(m.Sender)]++
		resp.ByKind[string(m.Kind)]++
		resp.TotalReactions += len(m.Reactions)
	}
	if len(msgs) > 0 {
		resp.LastActivity = msgs[len(msgs)-1].CreatedAt
	}

	start := len(msgs) - 5
	if start < 0 {
		start = 0
	}
	for _, m := range msgs[start:] {
		// Truncate body if too long
		body := m.Text
		if m.Kind == models.KindImage {
			body = "[image]"
		} else if len(body) > 200 {
			body = truncate(body, 197) + "..."
		}

		resp.RecentMessages = append(resp.RecentMessages, MessagePreview{
			ID:        m.ID,
			Sender:    string(m.Sender),
			Kind:      string(m.Kind),
			Body:      body,
			Timestamp: m.CreatedAt,
		})
	}

	h.JSON(w, http.StatusOK, resp)
}
