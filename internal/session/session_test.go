package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/chatsim/internal/chatlog"
	"github.com/eldtechnologies/chatsim/internal/clock"
	"github.com/eldtechnologies/chatsim/internal/models"
	"github.com/eldtechnologies/chatsim/internal/persona"
	"github.com/eldtechnologies/chatsim/internal/responder"
	"github.com/eldtechnologies/chatsim/internal/store"
	"github.com/eldtechnologies/chatsim/internal/view"
)

type fixture struct {
	s       *Session
	clock   *clock.Manual
	backend *store.MemoryStore
	events  *eventLog
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) cues() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.events {
		if e.Type == EventCue {
			out = append(out, e.Cue.Name)
		}
	}
	return out
}

func (l *eventLog) lastScreen() *view.Screen {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Type == EventRender {
			return l.events[i].Screen
		}
	}
	return nil
}

func newFixture(t *testing.T, backend *store.MemoryStore, mutate func(*Config)) *fixture {
	t.Helper()
	if backend == nil {
		backend = store.NewMemoryStore(0)
	}
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	c := clock.NewManual(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	logger := zerolog.Nop()
	s := New(Deps{
		Messages:    store.NewMessageStore(backend, logger),
		Preferences: store.NewPreferences(backend, logger),
		Catalog:     persona.Builtin(),
		Clock:       c,
		Random:      rand.New(rand.NewPCG(1, 2)),
		Logger:      logger,
	}, cfg)

	events := &eventLog{}
	s.Subscribe(events.add)
	s.Start(context.Background())
	return &fixture{s: s, clock: c, backend: backend, events: events}
}

// settle runs every pending jitter and reply timer.
func (f *fixture) settle() {
	for i := 0; i < 10 && f.clock.Pending() > 0; i++ {
		f.clock.Advance(5 * time.Second)
	}
}

func TestStartSeedsWelcome(t *testing.T) {
	f := newFixture(t, nil, nil)

	msgs := f.s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SenderBot, msgs[0].Sender)
	assert.Equal(t, WelcomeText, msgs[0].Text)
	assert.Equal(t, "09:30", msgs[0].CreatedAt)
}

func TestStartRestoresPersistedLog(t *testing.T) {
	backend := store.NewMemoryStore(0)
	f := newFixture(t, backend, nil)
	_, ok, err := f.s.SubmitText(context.Background(), "hello")
	require.NoError(t, err)
	require.True(t, ok)

	restored := newFixture(t, backend, nil)
	msgs := restored.s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[1].Text)
}

func TestSubmitTextFlow(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	msg, ok, err := f.s.SubmitText(ctx, "  Hello there  ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hello there", msg.Text)
	assert.Equal(t, models.SenderUser, msg.Sender)
	assert.Equal(t, persona.DefaultUserAvatar, msg.AvatarRef)
	assert.Equal(t, []string{"send"}, f.events.cues())

	// Jitter has not elapsed yet, so nothing is typing.
	assert.Equal(t, responder.Idle, f.s.ResponderState())
	f.clock.Advance(550 * time.Millisecond)
	assert.Equal(t, responder.Pending, f.s.ResponderState())

	screen := f.s.Screen()
	require.NotNil(t, screen.Typing)
	assert.Equal(t, "Helper is typing...", screen.Typing.Text)

	f.settle()
	msgs := f.s.Messages()
	require.Len(t, msgs, 3)
	helper, _ := persona.Builtin().Lookup("helper")
	assert.Contains(t, helper.ReplyPool, msgs[2].Text)
	assert.Equal(t, helper.AvatarRef, msgs[2].AvatarRef)
	assert.Equal(t, []string{"send", "reply"}, f.events.cues())
	assert.Nil(t, f.s.Screen().Typing)
}

func TestSubmitBlankIsNoop(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, ok, err := f.s.SubmitText(context.Background(), "   \n\t ")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, f.s.Messages(), 1)
	assert.Zero(t, f.clock.Pending())
	assert.Empty(t, f.events.cues())
}

func TestReplyUsesPersonaActiveWhenTriggered(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, _, err := f.s.SubmitText(context.Background(), "hi")
	require.NoError(t, err)
	require.True(t, f.s.SelectPersona("funny"))
	f.settle()

	funny, _ := persona.Builtin().Lookup("funny")
	msgs := f.s.Messages()
	assert.Contains(t, funny.ReplyPool, msgs[len(msgs)-1].Text)
}

func TestSelectPersona(t *testing.T) {
	f := newFixture(t, nil, nil)

	assert.Equal(t, "helper", f.s.ActivePersona().ID)
	assert.False(t, f.s.SelectPersona("ghost"))
	assert.Equal(t, "helper", f.s.ActivePersona().ID)

	require.True(t, f.s.SelectPersona("info"))
	screen := f.events.lastScreen()
	require.NotNil(t, screen)
	assert.Equal(t, "info", screen.Header.PersonaID)
	assert.Equal(t, "Info", screen.Header.Name)
}

func TestPersonaSwitchKeepsStampedAvatars(t *testing.T) {
	f := newFixture(t, nil, nil)
	helper, _ := persona.Builtin().Lookup("helper")

	require.True(t, f.s.SelectPersona("info"))
	screen := f.s.Screen()
	require.Len(t, screen.Messages, 1)
	assert.Equal(t, helper.AvatarRef, screen.Messages[0].Avatar, "welcome keeps the avatar it was stamped with")
}

func TestUploadImage(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	msg, err := f.s.UploadImage(ctx, "data:image/png;base64,AAAA", 1024)
	require.NoError(t, err)
	assert.Equal(t, models.KindImage, msg.Kind)

	f.clock.Advance(799 * time.Millisecond)
	assert.Equal(t, responder.Idle, f.s.ResponderState(), "image jitter is longer than text jitter")
	f.clock.Advance(501 * time.Millisecond)
	assert.Equal(t, responder.Pending, f.s.ResponderState())

	f.settle()
	assert.Len(t, f.s.Messages(), 3)
}

func TestUploadImageOversized(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.s.UploadImage(context.Background(), "data:image/png;base64,AAAA", 3*1024*1024)
	require.ErrorIs(t, err, ErrOversizedPayload)
	assert.Contains(t, err.Error(), "3.0 MiB")
	assert.Len(t, f.s.Messages(), 1)
	assert.Zero(t, f.clock.Pending())
}

func TestUploadImageNegativeSize(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.s.UploadImage(context.Background(), "data:image/png;base64,AAAA", -1)
	require.ErrorIs(t, err, models.ErrInvalidDraft)
	assert.Len(t, f.s.Messages(), 1)
	assert.Zero(t, f.clock.Pending())
	assert.Empty(t, f.events.cues())
}

func TestUploadImageAtLimit(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.s.UploadImage(context.Background(), "data:image/png;base64,AAAA", DefaultMaxImageBytes)
	require.NoError(t, err)
}

func TestAddReactionToLast(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	_, err := f.s.AddReactionToLast(ctx, "👍")
	require.NoError(t, err)
	reacted, err := f.s.AddReactionToLast(ctx, "👍")
	require.NoError(t, err)
	msgs := f.s.Messages()
	assert.Equal(t, []string{"👍", "👍"}, msgs[0].Reactions)
	assert.Equal(t, msgs[0], reacted)
}

func TestDeleteMessage(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	_, _, err := f.s.SubmitText(ctx, "first")
	require.NoError(t, err)
	require.NoError(t, f.s.DeleteMessage(ctx, 0))

	msgs := f.s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "first", msgs[0].Text)

	assert.ErrorIs(t, f.s.DeleteMessage(ctx, 5), chatlog.ErrIndexOutOfRange)
}

func TestClearAllLetsPendingReplyLand(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	_, _, err := f.s.SubmitText(ctx, "hi")
	require.NoError(t, err)
	f.clock.Advance(600 * time.Millisecond)
	require.Equal(t, responder.Pending, f.s.ResponderState())
	require.NoError(t, f.s.ClearAll(ctx))
	assert.Empty(t, f.s.Messages())

	f.settle()
	msgs := f.s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SenderBot, msgs[0].Sender)
}

func TestClearAllCancelsWhenConfigured(t *testing.T) {
	f := newFixture(t, nil, func(c *Config) { c.CancelReplyOnClear = true })
	ctx := context.Background()

	_, _, err := f.s.SubmitText(ctx, "hi")
	require.NoError(t, err)
	f.clock.Advance(600 * time.Millisecond)
	require.Equal(t, responder.Pending, f.s.ResponderState())
	require.NoError(t, f.s.ClearAll(ctx))

	f.settle()
	assert.Empty(t, f.s.Messages())
	assert.Equal(t, responder.Idle, f.s.ResponderState())
}

func TestClearAllDuringJitterCancelsWhenConfigured(t *testing.T) {
	f := newFixture(t, nil, func(c *Config) { c.CancelReplyOnClear = true })
	ctx := context.Background()

	_, _, err := f.s.SubmitText(ctx, "hi")
	require.NoError(t, err)
	_, err = f.s.UploadImage(ctx, "data:image/png;base64,AAAA", 1024)
	require.NoError(t, err)
	f.clock.Advance(100 * time.Millisecond)
	require.Equal(t, responder.Idle, f.s.ResponderState())
	require.NoError(t, f.s.ClearAll(ctx))
	assert.Zero(t, f.clock.Pending())

	f.settle()
	assert.Empty(t, f.s.Messages())
	assert.Equal(t, responder.Idle, f.s.ResponderState())
}

func TestClearAllKeepsLaterReplies(t *testing.T) {
	f := newFixture(t, nil, func(c *Config) { c.CancelReplyOnClear = true })
	ctx := context.Background()

	_, _, err := f.s.SubmitText(ctx, "before")
	require.NoError(t, err)
	require.NoError(t, f.s.ClearAll(ctx))
	_, _, err = f.s.SubmitText(ctx, "after")
	require.NoError(t, err)

	f.settle()
	msgs := f.s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "after", msgs[0].Text)
	assert.Equal(t, models.SenderBot, msgs[1].Sender)
}

func TestPersistenceFailureKeepsMemoryState(t *testing.T) {
	backend := store.NewMemoryStore(0)
	f := newFixture(t, backend, nil)
	backend.SetQuota(10)

	msg, ok, err := f.s.SubmitText(context.Background(), strings.Repeat("x", 64))
	require.True(t, ok)
	require.Error(t, err)
	assert.True(t, store.IsPersistenceFailure(err))
	assert.True(t, errors.Is(err, store.ErrQuotaExceeded))
	assert.NotEmpty(t, msg.ID)
	assert.Len(t, f.s.Messages(), 2)
	assert.Equal(t, []string{"send"}, f.events.cues())
}

func TestTheme(t *testing.T) {
	backend := store.NewMemoryStore(0)
	f := newFixture(t, backend, nil)

	assert.Equal(t, store.ThemeLight, f.s.Theme())
	require.NoError(t, f.s.SetTheme(context.Background(), store.ThemeDark))
	assert.Equal(t, "dark", f.events.lastScreen().Theme)

	restored := newFixture(t, backend, nil)
	assert.Equal(t, store.ThemeDark, restored.s.Theme())
}

func TestRenderVersionsIncrease(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	_, _, err := f.s.SubmitText(ctx, "a")
	require.NoError(t, err)
	v1 := f.events.lastScreen().Version
	_, err = f.s.AddReactionToLast(ctx, "🎉")
	require.NoError(t, err)
	v2 := f.events.lastScreen().Version
	assert.Greater(t, v2, v1)
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture(t, nil, nil)

	var n int
	cancel := f.s.Subscribe(func(Event) { n++ })
	_, _, err := f.s.SubmitText(context.Background(), "a")
	require.NoError(t, err)
	seen := n
	require.Positive(t, seen)

	cancel()
	_, err = f.s.AddReactionToLast(context.Background(), "👍")
	require.NoError(t, err)
	assert.Equal(t, seen, n)
}
