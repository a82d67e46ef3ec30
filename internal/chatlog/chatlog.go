// Package chatlog owns the in-memory conversation log and applies every
// mutation to it: each one is persisted in full and then published as a
// snapshot to the registered listener.
package chatlog

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatsim/internal/clock"
	"github.com/eldtechnologies/chatsim/internal/metrics"
	"github.com/eldtechnologies/chatsim/internal/models"
)

// DefaultTimeFormat renders createdAt as hours and minutes.
const DefaultTimeFormat = "15:04"

var (
	// ErrIndexOutOfRange is returned by DeleteAt for positions outside the log.
	ErrIndexOutOfRange = errors.New("message index out of range")
	// ErrEmptyLog is returned by AddReaction when there is no message to react to.
	ErrEmptyLog = errors.New("conversation log is empty")
	// ErrEmptyReaction is returned by AddReaction for a blank token.
	ErrEmptyReaction = errors.New("reaction token is empty")
)

// Persister loads and saves the whole log. *store.MessageStore implements it.
type Persister interface {
	Load(ctx context.Context) []models.Message
	Persist(ctx context.Context, msgs []models.Message) error
}

// AvatarResolver returns the avatar to stamp for a sender at append time.
type AvatarResolver func(models.Sender) string

// Snapshot is the log as it stood after one mutation.
type Snapshot struct {
	Version  uint64
	Messages []models.Message
}

// Listener receives a snapshot after every mutation. It runs while the log
// is locked and must not call back into the Log.
type Listener func(Snapshot)

// Options configures a Log.
type Options struct {
	Clock      clock.Clock
	TimeFormat string
	Avatars    AvatarResolver
	Entropy    io.Reader
	Logger     zerolog.Logger
}

// Log is the conversation log and its mutation API.
type Log struct {
	mu       sync.Mutex
	msgs     []models.Message
	version  uint64
	store    Persister
	clock    clock.Clock
	layout   string
	avatars  AvatarResolver
	entropy  io.Reader
	listener Listener
	logger   zerolog.Logger
}

// New creates an empty Log backed by store. Call Load to restore state.
func New(store Persister, opts Options) *Log {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = DefaultTimeFormat
	}
	if opts.Avatars == nil {
		opts.Avatars = func(models.Sender) string { return "" }
	}
	if opts.Entropy == nil {
		opts.Entropy = rand.Reader
	}
	return &Log{
		msgs:    []models.Message{},
		store:   store,
		clock:   opts.Clock,
		layout:  opts.TimeFormat,
		avatars: opts.Avatars,
		entropy: ulid.Monotonic(opts.Entropy, 0),
		logger:  opts.Logger.With().Str("component", "chatlog").Logger(),
	}
}

// SetListener registers the snapshot listener, replacing any previous one.
func (l *Log) SetListener(fn Listener) {
	l.mu.Lock()
	l.listener = fn
	l.mu.Unlock()
}

// Load replaces the in-memory log with the persisted one and publishes it.
// It returns the number of restored messages.
func (l *Log) Load(ctx context.Context) int {
	msgs := l.store.Load(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = msgs
	l.publish()
	l.logger.Info().Int("messages", len(msgs)).Msg("conversation log loaded")
	return len(msgs)
}

// Append stamps a message from d, adds it to the end of the log and
// persists. Malformed drafts return models.ErrInvalidDraft and change nothing.
func (l *Log) Append(ctx context.Context, d models.Draft) (models.Message, error) {
	if err := d.Validate(); err != nil {
		metrics.RejectedCommands.WithLabelValues("invalid_draft").Inc()
		return models.Message{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	avatar := d.AvatarRef
	if avatar == "" {
		avatar = l.avatars(d.Sender)
	}

	msg := models.Message{
		ID:        l.newID(now),
		Sender:    d.Sender,
		Kind:      d.Kind,
		Text:      d.Text,
		ImageData: d.ImageData,
		CreatedAt: now.Format(l.layout),
		AvatarRef: avatar,
		Reactions: []string{},
	}
	l.msgs = append(l.msgs, msg)
	metrics.MessagesAppended.WithLabelValues(string(msg.Sender), string(msg.Kind)).Inc()

	return msg.Clone(), l.commit(ctx)
}

// DeleteAt removes the message at index. Positions outside [0, len)
// return ErrIndexOutOfRange and change nothing.
func (l *Log) DeleteAt(ctx context.Context, index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.msgs) {
		metrics.RejectedCommands.WithLabelValues("index_out_of_range").Inc()
		return ErrIndexOutOfRange
	}
	l.msgs = append(l.msgs[:index:index], l.msgs[index+1:]...)
	metrics.MessagesDeleted.Inc()

	return l.commit(ctx)
}

// AddReaction appends token to the reactions of the last message and
// returns that message as it stands after the change.
func (l *Log) AddReaction(ctx context.Context, token string) (models.Message, error) {
	if strings.TrimSpace(token) == "" {
		metrics.RejectedCommands.WithLabelValues("empty_reaction").Inc()
		return models.Message{}, ErrEmptyReaction
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.msgs) == 0 {
		metrics.RejectedCommands.WithLabelValues("empty_log").Inc()
		return models.Message{}, ErrEmptyLog
	}
	last := &l.msgs[len(l.msgs)-1]
	last.Reactions = append(last.Reactions, token)
	metrics.ReactionsAdded.Inc()

	return last.Clone(), l.commit(ctx)
}

// Clear empties the log and persists the empty state.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.msgs = []models.Message{}
	metrics.LogClears.Inc()

	return l.commit(ctx)
}

// Messages returns a deep copy of the log.
func (l *Log) Messages() []models.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.copyMessages()
}

// Snapshot returns the current log with its version.
func (l *Log) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{Version: l.version, Messages: l.copyMessages()}
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

// commit persists the log and publishes it. A persistence failure is
// returned but the in-memory change stands. Caller holds l.mu.
func (l *Log) commit(ctx context.Context) error {
	err := l.store.Persist(ctx, l.msgs)
	l.publish()
	return err
}

// publish bumps the version and notifies the listener. Caller holds l.mu.
func (l *Log) publish() {
	l.version++
	if l.listener != nil {
		l.listener(Snapshot{Version: l.version, Messages: l.copyMessages()})
	}
}

func (l *Log) copyMessages() []models.Message {
	out := make([]models.Message, len(l.msgs))
	for i, m := range l.msgs {
		out[i] = m.Clone()
	}
	return out
}

func (l *Log) newID(now time.Time) string {
	id, err := ulid.New(ulid.Timestamp(now), l.entropy)
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}
