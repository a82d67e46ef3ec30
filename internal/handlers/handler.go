package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatsim/internal/chatlog"
	"github.com/eldtechnologies/chatsim/internal/hub"
	"github.com/eldtechnologies/chatsim/internal/models"
	"github.com/eldtechnologies/chatsim/internal/session"
	"github.com/eldtechnologies/chatsim/internal/store"
)

// WarningHeader is set when a command succeeded in memory but was not saved.
const WarningHeader = "X-Chatsim-Warning"

const warningPersistence = "persistence-unavailable"

// maxReactionLen caps a reaction token in bytes.
const maxReactionLen = 32

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	session *session.Session
	backend store.Backend
	hub     *hub.Hub
	logger  zerolog.Logger
}

// NewHandler creates a new Handler. backend and hub may be nil.
func NewHandler(sess *session.Session, backend store.Backend, h *hub.Hub, logger zerolog.Logger) *Handler {
	return &Handler{
		session: sess,
		backend: backend,
		hub:     h,
		logger:  logger.With().Str("component", "handlers").Logger(),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// commandError maps a session command error to a response. It returns a
// warning string and false when err is only a persistence failure, in which
// case the caller continues with a success response.
func (h *Handler) commandError(w http.ResponseWriter, err error) (warning string, handled bool) {
	switch {
	case err == nil:
		return "", false
	case store.IsPersistenceFailure(err):
		h.logger.Warn().Err(err).Msg("command applied but not persisted")
		w.Header().Set(WarningHeader, warningPersistence)
		return warningPersistence, false
	case errors.Is(err, chatlog.ErrIndexOutOfRange):
		h.Error(w, http.StatusNotFound, "message index out of range")
	case errors.Is(err, chatlog.ErrEmptyLog):
		h.Error(w, http.StatusNotFound, "no message to react to")
	case errors.Is(err, chatlog.ErrEmptyReaction):
		h.Error(w, http.StatusBadRequest, "token is required")
	case errors.Is(err, models.ErrInvalidDraft):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrOversizedPayload):
		h.Error(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		h.logger.Error().Err(err).Msg("command failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
	return "", true
}

// sanitizeReaction trims a reaction token, removing control characters and
// limiting it to maxReactionLen bytes without splitting a rune.
func sanitizeReaction(token string) string {
	token = strings.TrimSpace(token)

	token = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, token)

	return truncate(token, maxReactionLen)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}
