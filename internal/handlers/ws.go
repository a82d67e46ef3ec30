package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/eldtechnologies/chatsim/internal/chatlog"
	"github.com/eldtechnologies/chatsim/internal/hub"
	"github.com/eldtechnologies/chatsim/internal/session"
	"github.com/eldtechnologies/chatsim/internal/store"
)

// commandTimeout bounds the persist triggered by a WebSocket command.
const commandTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocket upgrades the connection, sends the current frame and then
// streams session events while accepting commands.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.Error(w, http.StatusServiceUnavailable, "websocket not available")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn)
	h.hub.Register(client)

	screen := h.session.Screen()
	client.SendMessage(session.Event{Type: session.EventRender, Screen: &screen})

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *Handler) handleMessage(client *hub.Client, message []byte) {
	var base hub.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(hub.NewErrorMessage(hub.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch base.Type {
	case hub.MsgTypeSubmitText:
		var msg hub.SubmitTextMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(hub.NewErrorMessage(hub.ErrCodeBadRequest, "Invalid submit_text message"))
			return
		}
		_, _, err := h.session.SubmitText(ctx, msg.Text)
		h.reportCommandError(client, err)

	case hub.MsgTypeSelectPersona:
		var msg hub.SelectPersonaMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(hub.NewErrorMessage(hub.ErrCodeBadRequest, "Invalid select_persona message"))
			return
		}
		if !h.session.SelectPersona(msg.PersonaID) {
			client.SendMessage(hub.NewErrorMessage(hub.ErrCodeNotFound, "Unknown persona"))
		}

	case hub.MsgTypeReact:
		var msg hub.ReactMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(hub.NewErrorMessage(hub.ErrCodeBadRequest, "Invalid react message"))
			return
		}
		_, err := h.session.AddReactionToLast(ctx, sanitizeReaction(msg.Token))
		h.reportCommandError(client, err)

	case hub.MsgTypeDelete:
		var msg hub.DeleteMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(hub.NewErrorMessage(hub.ErrCodeBadRequest, "Invalid delete message"))
			return
		}
		h.reportCommandError(client, h.session.DeleteMessage(ctx, msg.Index))

	case hub.MsgTypeClear:
		h.reportCommandError(client, h.session.ClearAll(ctx))

	case hub.MsgTypePing:
		client.SendMessage(map[string]string{"type": hub.MsgTypePong})

	default:
		client.SendMessage(hub.NewErrorMessage(hub.ErrCodeBadRequest, "Unknown message type"))
	}
}

// reportCommandError tells the client why a command was rejected. The
// resulting render reaches it through the hub either way.
func (h *Handler) reportCommandError(client *hub.Client, err error) {
	switch {
	case err == nil:
	case store.IsPersistenceFailure(err):
		h.logger.Warn().Err(err).Str("client_id", client.ID).Msg("command applied but not persisted")
		client.SendMessage(hub.NewWarningMessage(hub.WarnPersistence, "Change kept in memory but not saved"))
	case errors.Is(err, chatlog.ErrIndexOutOfRange), errors.Is(err, chatlog.ErrEmptyLog):
		client.SendMessage(hub.NewErrorMessage(hub.ErrCodeNotFound, err.Error()))
	case errors.Is(err, chatlog.ErrEmptyReaction):
		client.SendMessage(hub.NewErrorMessage(hub.ErrCodeBadRequest, err.Error()))
	default:
		h.logger.Error().Err(err).Str("client_id", client.ID).Msg("command failed")
		client.SendMessage(hub.NewErrorMessage(hub.ErrCodeInternalError, "Command failed"))
	}
}
