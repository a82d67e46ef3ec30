package responder

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/chatsim/internal/clock"
	"github.com/eldtechnologies/chatsim/internal/models"
	"github.com/eldtechnologies/chatsim/internal/persona"
	"github.com/eldtechnologies/chatsim/internal/store"
)

type recordingAppender struct {
	mu     sync.Mutex
	drafts []models.Draft
	err    error
}

func (a *recordingAppender) Append(ctx context.Context, d models.Draft) (models.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.drafts = append(a.drafts, d)
	return models.Message{ID: "m", Sender: d.Sender, Kind: d.Kind, Text: d.Text, AvatarRef: d.AvatarRef}, a.err
}

func (a *recordingAppender) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.drafts)
}

func newResponder(t *testing.T, app Appender, opts Options) (*Responder, *clock.Manual) {
	t.Helper()
	c := clock.NewManual(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	opts.Clock = c
	if opts.Random == nil {
		opts.Random = rand.New(rand.NewPCG(1, 2))
	}
	opts.Logger = zerolog.Nop()
	return New(persona.Builtin(), app, opts), c
}

func TestTriggerRepliesAfterDelay(t *testing.T) {
	app := &recordingAppender{}
	r, c := newResponder(t, app, Options{})

	require.Equal(t, Idle, r.State())
	require.True(t, r.Trigger("helper"))
	assert.Equal(t, Pending, r.State())

	c.Advance(DefaultMinDelay - time.Millisecond)
	assert.Zero(t, app.count(), "no reply before the minimum delay")

	c.Advance(DefaultMaxDelay)
	require.Equal(t, 1, app.count())
	assert.Equal(t, Idle, r.State())

	helper, _ := persona.Builtin().Lookup("helper")
	d := app.drafts[0]
	assert.Equal(t, models.SenderBot, d.Sender)
	assert.Equal(t, models.KindText, d.Kind)
	assert.Contains(t, helper.ReplyPool, d.Text)
	assert.Equal(t, helper.AvatarRef, d.AvatarRef)
}

func TestTriggerUnknownPersona(t *testing.T) {
	app := &recordingAppender{}
	r, c := newResponder(t, app, Options{})

	assert.False(t, r.Trigger("nobody"))
	assert.Equal(t, Idle, r.State())
	assert.Zero(t, c.Pending())

	c.Advance(time.Minute)
	assert.Zero(t, app.count())
}

func TestDelayWithinBounds(t *testing.T) {
	app := &recordingAppender{}
	r, c := newResponder(t, app, Options{MinDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond})

	for i := 0; i < 50; i++ {
		require.True(t, r.Trigger("info"))
		c.Advance(99 * time.Millisecond)
		require.Zero(t, app.count()-i, "fired early on round %d", i)
		c.Advance(201 * time.Millisecond)
		require.Equal(t, i+1, app.count(), "not fired by max delay on round %d", i)
	}
}

func TestRepliesDrawnFromPool(t *testing.T) {
	app := &recordingAppender{}
	r, c := newResponder(t, app, Options{})
	funny, _ := persona.Builtin().Lookup("funny")

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		r.Trigger("funny")
		c.Advance(DefaultMaxDelay)
	}
	for _, d := range app.drafts {
		assert.Contains(t, funny.ReplyPool, d.Text)
		seen[d.Text] = true
	}
	assert.Len(t, seen, len(funny.ReplyPool), "uniform selection should reach every reply")
}

func TestOverlappingTriggersBothReply(t *testing.T) {
	app := &recordingAppender{}
	r, c := newResponder(t, app, Options{MinDelay: time.Second, MaxDelay: time.Second})

	r.Trigger("helper")
	c.Advance(500 * time.Millisecond)
	r.Trigger("info")

	typing, ok := r.Typing()
	require.True(t, ok)
	assert.Equal(t, "info", typing.ID)

	c.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, app.count())
	assert.Equal(t, Pending, r.State(), "second reply still outstanding")

	c.Advance(500 * time.Millisecond)
	assert.Equal(t, 2, app.count())
	assert.Equal(t, Idle, r.State())
	_, ok = r.Typing()
	assert.False(t, ok)
}

func TestCancelStopsTrackedReply(t *testing.T) {
	app := &recordingAppender{}
	var changes int
	r, c := newResponder(t, app, Options{OnChange: func() { changes++ }})

	r.Trigger("helper")
	assert.True(t, r.Cancel())
	assert.False(t, r.Cancel())
	assert.Equal(t, Idle, r.State())

	c.Advance(time.Minute)
	assert.Zero(t, app.count())
	assert.Equal(t, 2, changes, "trigger and cancel")
}

func TestCancelOnlyTracksNewest(t *testing.T) {
	app := &recordingAppender{}
	r, c := newResponder(t, app, Options{MinDelay: time.Second, MaxDelay: time.Second})

	r.Trigger("helper")
	r.Trigger("funny")
	require.True(t, r.Cancel())

	c.Advance(2 * time.Second)
	require.Equal(t, 1, app.count(), "earlier untracked reply still lands")
	helper, _ := persona.Builtin().Lookup("helper")
	assert.Contains(t, helper.ReplyPool, app.drafts[0].Text)
}

func TestOnReplyAndPersistenceFailure(t *testing.T) {
	app := &recordingAppender{err: &store.PersistenceError{Op: "persist", Key: store.ConversationKey, Err: store.ErrQuotaExceeded}}
	var replied []string
	r, c := newResponder(t, app, Options{OnReply: func(p models.Persona, m models.Message) {
		replied = append(replied, p.ID)
	}})

	r.Trigger("info")
	c.Advance(DefaultMaxDelay)
	assert.Equal(t, []string{"info"}, replied, "reply is in memory even if not durable")
}

func TestOnReplySkippedOnRejectedAppend(t *testing.T) {
	app := &recordingAppender{err: models.ErrInvalidDraft}
	replied := false
	r, c := newResponder(t, app, Options{OnReply: func(models.Persona, models.Message) { replied = true }})

	r.Trigger("info")
	c.Advance(DefaultMaxDelay)
	assert.False(t, replied)
	assert.Equal(t, Idle, r.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "pending", Pending.String())
}
