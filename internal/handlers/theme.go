package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/eldtechnologies/chatsim/internal/store"
)

// ThemeBody is the request and response body of the theme endpoints.
type ThemeBody struct {
	Theme   string `json:"theme"`
	Warning string `json:"warning,omitempty"`
}

// GetTheme returns the current theme.
func (h *Handler) GetTheme(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, ThemeBody{Theme: string(h.session.Theme())})
}

// PutTheme changes the theme.
func (h *Handler) PutTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	theme, ok := store.ParseTheme(req.Theme)
	if !ok {
		h.Error(w, http.StatusBadRequest, "theme must be light or dark")
		return
	}

	warning, handled := h.commandError(w, h.session.SetTheme(r.Context(), theme))
	if handled {
		return
	}
	h.JSON(w, http.StatusOK, ThemeBody{Theme: string(theme), Warning: warning})
}
