// Package session holds the per-process chat session: the active persona,
// the conversation log and the responder, exposed as plain command methods
// that HTTP handlers, WebSocket clients and tests call the same way.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatsim/internal/chatlog"
	"github.com/eldtechnologies/chatsim/internal/clock"
	"github.com/eldtechnologies/chatsim/internal/metrics"
	"github.com/eldtechnologies/chatsim/internal/models"
	"github.com/eldtechnologies/chatsim/internal/persona"
	"github.com/eldtechnologies/chatsim/internal/responder"
	"github.com/eldtechnologies/chatsim/internal/store"
	"github.com/eldtechnologies/chatsim/internal/view"
)

// WelcomeText is the bot message seeded into an empty conversation.
const WelcomeText = "Welcome to the WhatsApp-style demo. Send a message to start."

// DefaultMaxImageBytes is the upload limit when none is configured.
const DefaultMaxImageBytes = 2 * 1024 * 1024

// ErrOversizedPayload is returned by UploadImage when the image is over the limit.
var ErrOversizedPayload = errors.New("image exceeds size limit")

// Jitter is a delay range applied before the responder is triggered.
type Jitter struct {
	Min time.Duration
	Max time.Duration
}

// Config holds session tunables.
type Config struct {
	DefaultPersona     string
	UserAvatar         string
	MaxImageBytes      int64
	TimeFormat         string
	ReplyMinDelay      time.Duration
	ReplyMaxDelay      time.Duration
	TextJitter         Jitter
	ImageJitter        Jitter
	CancelReplyOnClear bool
}

// DefaultConfig returns the stock demo settings.
func DefaultConfig() Config {
	return Config{
		DefaultPersona: persona.DefaultID,
		UserAvatar:     persona.DefaultUserAvatar,
		MaxImageBytes:  DefaultMaxImageBytes,
		TimeFormat:     chatlog.DefaultTimeFormat,
		ReplyMinDelay:  responder.DefaultMinDelay,
		ReplyMaxDelay:  responder.DefaultMaxDelay,
		TextJitter:     Jitter{Min: 250 * time.Millisecond, Max: 550 * time.Millisecond},
		ImageJitter:    Jitter{Min: 800 * time.Millisecond, Max: 1300 * time.Millisecond},
	}
}

// Deps are the collaborators a Session is built from.
type Deps struct {
	Messages    chatlog.Persister
	Preferences *store.Preferences
	Catalog     *persona.Catalog
	Clock       clock.Clock
	Random      responder.Random
	Logger      zerolog.Logger
}

// Session is the chat simulator state container.
type Session struct {
	cfg       Config
	catalog   *persona.Catalog
	prefs     *store.Preferences
	log       *chatlog.Log
	responder *responder.Responder
	clock     clock.Clock
	logger    zerolog.Logger

	mu         sync.RWMutex
	active     string
	theme      store.Theme
	jitters    map[uint64]*jitterTimer
	nextJitter uint64

	rndMu sync.Mutex
	rnd   responder.Random

	subMu  sync.RWMutex
	subs   map[int]Subscriber
	nextID int
}

// New wires a Session. Call Start before serving commands.
func New(deps Deps, cfg Config) *Session {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Random == nil {
		deps.Random = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1))
	}
	if deps.Catalog == nil {
		deps.Catalog = persona.Builtin()
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	if cfg.UserAvatar == "" {
		cfg.UserAvatar = persona.DefaultUserAvatar
	}

	s := &Session{
		cfg:     cfg,
		catalog: deps.Catalog,
		prefs:   deps.Preferences,
		clock:   deps.Clock,
		rnd:     deps.Random,
		theme:   store.ThemeLight,
		subs:    make(map[int]Subscriber),
		jitters: make(map[uint64]*jitterTimer),
		logger:  deps.Logger.With().Str("component", "session").Logger(),
	}

	s.active = cfg.DefaultPersona
	if !s.catalog.Has(s.active) {
		s.active = s.catalog.First()
	}

	s.log = chatlog.New(deps.Messages, chatlog.Options{
		Clock:      deps.Clock,
		TimeFormat: cfg.TimeFormat,
		Avatars:    s.avatarFor,
		Logger:     deps.Logger,
	})
	s.responder = responder.New(s.catalog, s.log, responder.Options{
		Clock:    deps.Clock,
		Random:   &lockedRandom{mu: &s.rndMu, r: deps.Random},
		MinDelay: cfg.ReplyMinDelay,
		MaxDelay: cfg.ReplyMaxDelay,
		Logger:   deps.Logger,
		OnChange: s.publishCurrent,
		OnReply: func(models.Persona, models.Message) {
			s.emit(Event{Type: EventCue, Cue: &ReplyCue})
		},
	})
	s.log.SetListener(s.publishSnapshot)
	return s
}

// Start restores the persisted conversation and theme. An empty
// conversation is seeded with the welcome message.
func (s *Session) Start(ctx context.Context) {
	if s.prefs != nil {
		th := s.prefs.Theme(ctx)
		s.mu.Lock()
		s.theme = th
		s.mu.Unlock()
	}

	if s.log.Load(ctx) > 0 {
		return
	}
	_, err := s.log.Append(ctx, models.Draft{
		Sender: models.SenderBot,
		Kind:   models.KindText,
		Text:   WelcomeText,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("welcome message not persisted")
	}
}

// SubmitText sends raw as a user message and schedules a bot reply.
// Blank input does nothing and returns ok=false. A *store.PersistenceError
// means the message was appended but not saved.
func (s *Session) SubmitText(ctx context.Context, raw string) (msg models.Message, ok bool, err error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		metrics.RejectedCommands.WithLabelValues("empty_text").Inc()
		return models.Message{}, false, nil
	}

	msg, err = s.log.Append(ctx, models.Draft{Sender: models.SenderUser, Kind: models.KindText, Text: text})
	if err != nil && !store.IsPersistenceFailure(err) {
		return models.Message{}, false, err
	}

	s.emit(Event{Type: EventCue, Cue: &SendCue})
	s.scheduleReply(s.cfg.TextJitter)
	return msg, true, err
}

// UploadImage sends an encoded image as a user message and schedules a
// bot reply. sizeBytes is the size of the uploaded file before encoding.
func (s *Session) UploadImage(ctx context.Context, payload string, sizeBytes int64) (models.Message, error) {
	if sizeBytes < 0 {
		metrics.RejectedCommands.WithLabelValues("invalid_draft").Inc()
		return models.Message{}, fmt.Errorf("%w: negative image size %d", models.ErrInvalidDraft, sizeBytes)
	}
	if sizeBytes > s.cfg.MaxImageBytes {
		metrics.RejectedCommands.WithLabelValues("oversized_payload").Inc()
		return models.Message{}, fmt.Errorf("%w: %s is over %s",
			ErrOversizedPayload, humanize.IBytes(uint64(sizeBytes)), humanize.IBytes(uint64(s.cfg.MaxImageBytes)))
	}

	msg, err := s.log.Append(ctx, models.Draft{Sender: models.SenderUser, Kind: models.KindImage, ImageData: payload})
	if err != nil && !store.IsPersistenceFailure(err) {
		return models.Message{}, err
	}

	s.emit(Event{Type: EventCue, Cue: &SendCue})
	s.scheduleReply(s.cfg.ImageJitter)
	return msg, err
}

// SelectPersona switches the active persona. Unknown ids are ignored and
// reported with false.
func (s *Session) SelectPersona(id string) bool {
	if !s.catalog.Has(id) {
		s.logger.Debug().Str("persona", id).Msg("ignoring unknown persona")
		return false
	}
	s.mu.Lock()
	s.active = id
	s.mu.Unlock()

	s.publishCurrent()
	return true
}

// AddReactionToLast reacts to the newest message and returns it.
func (s *Session) AddReactionToLast(ctx context.Context, token string) (models.Message, error) {
	return s.log.AddReaction(ctx, token)
}

// DeleteMessage removes the message at index as shown in the latest render.
func (s *Session) DeleteMessage(ctx context.Context, index int) error {
	return s.log.DeleteAt(ctx, index)
}

// ClearAll empties the conversation. A reply already in flight still lands
// unless CancelReplyOnClear is set, in which case replies still waiting out
// their jitter are dropped too.
func (s *Session) ClearAll(ctx context.Context) error {
	if s.cfg.CancelReplyOnClear {
		s.stopJitters()
		s.responder.Cancel()
	}
	return s.log.Clear(ctx)
}

// Theme returns the current theme.
func (s *Session) Theme() store.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetTheme changes and saves the theme.
func (s *Session) SetTheme(ctx context.Context, t store.Theme) error {
	s.mu.Lock()
	s.theme = t
	s.mu.Unlock()

	var err error
	if s.prefs != nil {
		err = s.prefs.SetTheme(ctx, t)
	}
	s.publishCurrent()
	return err
}

// ActivePersona returns the selected persona.
func (s *Session) ActivePersona() models.Persona {
	s.mu.RLock()
	id := s.active
	s.mu.RUnlock()
	p, _ := s.catalog.Lookup(id)
	return p
}

// Personas lists the catalog.
func (s *Session) Personas() []models.Persona {
	return s.catalog.List()
}

// Messages returns a copy of the conversation log.
func (s *Session) Messages() []models.Message {
	return s.log.Messages()
}

// MaxImageBytes is the upload limit enforced by UploadImage.
func (s *Session) MaxImageBytes() int64 {
	return s.cfg.MaxImageBytes
}

// ResponderState reports whether a reply is pending.
func (s *Session) ResponderState() responder.State {
	return s.responder.State()
}

// Screen renders the current state as a full frame.
func (s *Session) Screen() view.Screen {
	return s.render(s.log.Snapshot())
}

// Subscribe registers fn for render and cue events and returns a function
// that removes it.
func (s *Session) Subscribe(fn Subscriber) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// jitterTimer is a reply waiting out its jitter. timer is nil until
// AfterFunc returns.
type jitterTimer struct {
	timer clock.Timer
}

// scheduleReply triggers the responder after a jitter, using the persona
// active at that moment. The trigger is skipped if stopJitters ran first.
func (s *Session) scheduleReply(j Jitter) {
	jt := &jitterTimer{}
	s.mu.Lock()
	key := s.nextJitter
	s.nextJitter++
	s.jitters[key] = jt
	s.mu.Unlock()

	t := s.clock.AfterFunc(s.jitter(j), func() {
		s.mu.Lock()
		_, live := s.jitters[key]
		delete(s.jitters, key)
		id := s.active
		s.mu.Unlock()
		if live {
			s.responder.Trigger(id)
		}
	})

	s.mu.Lock()
	jt.timer = t
	s.mu.Unlock()
}

// stopJitters drops every reply that has not reached the responder yet.
func (s *Session) stopJitters() {
	s.mu.Lock()
	pending := s.jitters
	s.jitters = make(map[uint64]*jitterTimer)
	s.mu.Unlock()

	for _, jt := range pending {
		s.mu.RLock()
		t := jt.timer
		s.mu.RUnlock()
		if t != nil {
			t.Stop()
		}
	}
}

func (s *Session) jitter(j Jitter) time.Duration {
	span := int64(j.Max - j.Min)
	if span <= 0 {
		return j.Min
	}
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return j.Min + time.Duration(s.rnd.Int64N(span+1))
}

// avatarFor runs inside the chatlog lock; it only takes s.mu briefly.
func (s *Session) avatarFor(sender models.Sender) string {
	if sender == models.SenderUser {
		return s.cfg.UserAvatar
	}
	return s.ActivePersona().AvatarRef
}

func (s *Session) render(snap chatlog.Snapshot) view.Screen {
	in := view.ScreenInput{
		Version:  snap.Version,
		Theme:    string(s.Theme()),
		Active:   s.ActivePersona(),
		Messages: snap.Messages,
	}
	if p, ok := s.responder.Typing(); ok {
		in.Typing = &p
	}
	return view.Render(in)
}

func (s *Session) publishSnapshot(snap chatlog.Snapshot) {
	if !s.hasSubscribers() {
		return
	}
	screen := s.render(snap)
	s.emit(Event{Type: EventRender, Screen: &screen})
}

func (s *Session) publishCurrent() {
	if !s.hasSubscribers() {
		return
	}
	screen := s.Screen()
	s.emit(Event{Type: EventRender, Screen: &screen})
}

func (s *Session) hasSubscribers() bool {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs) > 0
}

func (s *Session) emit(e Event) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, fn := range s.subs {
		fn(e)
	}
}

// lockedRandom shares one random source between the session and the responder.
type lockedRandom struct {
	mu *sync.Mutex
	r  responder.Random
}

func (l *lockedRandom) Int64N(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int64N(n)
}

func (l *lockedRandom) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}
