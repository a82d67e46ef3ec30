// Package chatsim provides a client for the chatsim HTTP and WebSocket API.
package chatsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultURL is used when no server URL is given.
const DefaultURL = "http://localhost:8080"

// WarningHeader is set by the server when a change was not saved.
const WarningHeader = "X-Chatsim-Warning"

// Client is a chatsim API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new chatsim client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chatsim error %d: %s", e.StatusCode, e.Message)
}

// doRequest performs an HTTP request and returns the body and the
// persistence warning, if any.
func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, "", err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		if errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return nil, "", &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	return respBody, resp.Header.Get(WarningHeader), nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	body, _, err := c.doRequest(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out interface{}) (string, error) {
	var reader io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return "", err
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	body, warning, err := c.doRequest(ctx, method, path, contentType, reader)
	if err != nil {
		return "", err
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return warning, err
		}
	}
	return warning, nil
}

// Message is a conversation entry.
type Message struct {
	ID        string   `json:"id"`
	Sender    string   `json:"sender"`
	Kind      string   `json:"kind"`
	Text      string   `json:"text,omitempty"`
	ImageData string   `json:"imageData,omitempty"`
	CreatedAt string   `json:"createdAt"`
	AvatarRef string   `json:"avatarRef"`
	Reactions []string `json:"reactions"`
}

// MessageResponse is returned by commands that create or change a message.
type MessageResponse struct {
	Message Message `json:"message"`
	Warning string  `json:"warning,omitempty"`
}

// Persona is a selectable bot.
type Persona struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	AvatarRef   string   `json:"avatarRef"`
	Description string   `json:"description"`
	ReplyPool   []string `json:"replyPool"`
}

// PersonasResponse lists the catalog.
type PersonasResponse struct {
	Active   string    `json:"active"`
	Personas []Persona `json:"personas"`
}

// RenderedMessage is one painted message of a Screen.
type RenderedMessage struct {
	Index     int    `json:"index"`
	MessageID string `json:"messageId"`
	Side      string `json:"side"`
	Sender    string `json:"sender"`
	Avatar    string `json:"avatar"`
	Body      struct {
		Text     string `json:"text,omitempty"`
		ImageSrc string `json:"imageSrc,omitempty"`
	} `json:"body"`
	Timestamp string   `json:"timestamp"`
	Reactions []string `json:"reactions"`
}

// Screen is a full render frame.
type Screen struct {
	Version uint64 `json:"version"`
	Theme   string `json:"theme"`
	Header  struct {
		PersonaID   string `json:"personaId"`
		Name        string `json:"name"`
		Avatar      string `json:"avatar"`
		Description string `json:"description"`
	} `json:"header"`
	Typing *struct {
		PersonaID string `json:"personaId"`
		Text      string `json:"text"`
	} `json:"typing,omitempty"`
	Messages []RenderedMessage `json:"messages"`
}

// Cue is an audio feedback request.
type Cue struct {
	Name        string `json:"name"`
	FrequencyHz int    `json:"frequencyHz"`
	DurationMS  int    `json:"durationMs"`
}

// Event is a frame received from the WebSocket stream. Type is "render",
// "cue", "warning" or "error".
type Event struct {
	Type    string  `json:"type"`
	Screen  *Screen `json:"screen,omitempty"`
	Cue     *Cue    `json:"cue,omitempty"`
	Code    string  `json:"code,omitempty"`
	Message string  `json:"message,omitempty"`
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Checks  map[string]struct {
		Status  string `json:"status"`
		Latency string `json:"latency,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"checks"`
	Timestamp string `json:"timestamp"`
}

// StatsResponse is the response from the stats endpoint.
type StatsResponse struct {
	TotalMessages  int            `json:"total_messages"`
	BySender       map[string]int `json:"by_sender"`
	ByKind         map[string]int `json:"by_kind"`
	TotalReactions int            `json:"total_reactions"`
	LastActivity   string         `json:"last_activity"`
	Persona        string         `json:"persona"`
	Responder      string         `json:"responder"`
	Clients        int            `json:"clients"`
}

// Health checks server health. A degraded server answers 503, which is
// returned as an error.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.getJSON(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats returns conversation statistics.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.getJSON(ctx, "/api/stats", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Conversation returns the current render frame.
func (c *Client) Conversation(ctx context.Context) (*Screen, error) {
	var resp Screen
	if err := c.getJSON(ctx, "/api/conversation", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Personas lists the persona catalog.
func (c *Client) Personas(ctx context.Context) (*PersonasResponse, error) {
	var resp PersonasResponse
	if err := c.getJSON(ctx, "/api/personas", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SelectPersona switches the active persona.
func (c *Client) SelectPersona(ctx context.Context, id string) (*Persona, error) {
	var resp Persona
	if _, err := c.sendJSON(ctx, http.MethodPut, "/api/persona", map[string]string{"id": id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Send posts a text message.
func (c *Client) Send(ctx context.Context, text string) (*MessageResponse, error) {
	var resp MessageResponse
	if _, err := c.sendJSON(ctx, http.MethodPost, "/api/messages", map[string]string{"text": text}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// React adds a reaction to the newest message.
func (c *Client) React(ctx context.Context, token string) (*MessageResponse, error) {
	var resp MessageResponse
	if _, err := c.sendJSON(ctx, http.MethodPost, "/api/reactions", map[string]string{"token": token}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes the message at index and returns the persistence warning, if any.
func (c *Client) Delete(ctx context.Context, index int) (string, error) {
	return c.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/messages/%d", index), nil, nil)
}

// Clear empties the conversation and returns the persistence warning, if any.
func (c *Client) Clear(ctx context.Context) (string, error) {
	return c.sendJSON(ctx, http.MethodDelete, "/api/messages", nil, nil)
}

// Theme returns the current theme.
func (c *Client) Theme(ctx context.Context) (string, error) {
	var resp struct {
		Theme string `json:"theme"`
	}
	if err := c.getJSON(ctx, "/api/theme", &resp); err != nil {
		return "", err
	}
	return resp.Theme, nil
}

// SetTheme changes the theme.
func (c *Client) SetTheme(ctx context.Context, theme string) error {
	_, err := c.sendJSON(ctx, http.MethodPut, "/api/theme", map[string]string{"theme": theme}, nil)
	return err
}

// Upload sends the image file at path.
func (c *Client) Upload(ctx context.Context, path string) (*MessageResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	body, _, err := c.doRequest(ctx, http.MethodPost, "/api/images", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	var resp MessageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Watch streams events from the WebSocket endpoint to fn until ctx is
// done or the connection fails.
func (c *Client) Watch(ctx context.Context, fn func(Event)) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fn(ev)
	}
}
