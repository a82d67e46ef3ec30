package chatlog

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/chatsim/internal/clock"
	"github.com/eldtechnologies/chatsim/internal/models"
	"github.com/eldtechnologies/chatsim/internal/store"
)

var epoch = time.Date(2024, 5, 1, 14, 7, 0, 0, time.UTC)

type fixture struct {
	log     *Log
	backend *store.MemoryStore
	store   *store.MessageStore
	clock   *clock.Manual
	seen    []Snapshot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend: store.NewMemoryStore(0),
		clock:   clock.NewManual(epoch),
	}
	f.store = store.NewMessageStore(f.backend, zerolog.Nop())
	f.log = New(f.store, Options{
		Clock: f.clock,
		Avatars: func(s models.Sender) string {
			if s == models.SenderUser {
				return "me.png"
			}
			return "bot.png"
		},
		Logger: zerolog.Nop(),
	})
	f.log.SetListener(func(s Snapshot) { f.seen = append(f.seen, s) })
	return f
}

func (f *fixture) appendText(t *testing.T, sender models.Sender, text string) models.Message {
	t.Helper()
	m, err := f.log.Append(context.Background(), models.Draft{Sender: sender, Kind: models.KindText, Text: text})
	require.NoError(t, err)
	return m
}

func TestAppendStampsMetadata(t *testing.T) {
	f := newFixture(t)

	m := f.appendText(t, models.SenderUser, "hi")

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, models.SenderUser, m.Sender)
	assert.Equal(t, models.KindText, m.Kind)
	assert.Equal(t, "hi", m.Text)
	assert.Equal(t, "14:07", m.CreatedAt)
	assert.Equal(t, "me.png", m.AvatarRef)
	assert.NotNil(t, m.Reactions)
	assert.Empty(t, m.Reactions)
	assert.Equal(t, 1, f.log.Len())
}

func TestAppendIncreasesLengthByOne(t *testing.T) {
	f := newFixture(t)
	drafts := []models.Draft{
		{Sender: models.SenderUser, Kind: models.KindText, Text: "one"},
		{Sender: models.SenderBot, Kind: models.KindText, Text: "two"},
		{Sender: models.SenderUser, Kind: models.KindImage, ImageData: "data:image/png;base64,AA=="},
	}
	for i, d := range drafts {
		before := f.log.Len()
		m, err := f.log.Append(context.Background(), d)
		require.NoError(t, err)
		assert.Equal(t, before+1, f.log.Len(), "draft %d", i)
		assert.Equal(t, d.ImageData, m.ImageData)
		assert.Equal(t, d.Text, m.Text)
		assert.Equal(t, m, f.log.Messages()[f.log.Len()-1])
	}
}

func TestAppendAvatarOverride(t *testing.T) {
	f := newFixture(t)
	m, err := f.log.Append(context.Background(), models.Draft{
		Sender: models.SenderBot, Kind: models.KindText, Text: "hey", AvatarRef: "funny.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "funny.png", m.AvatarRef)
}

func TestAppendIDsAreOrderedAndUnique(t *testing.T) {
	f := newFixture(t)
	a := f.appendText(t, models.SenderUser, "a")
	b := f.appendText(t, models.SenderUser, "b")
	f.clock.Advance(time.Second)
	c := f.appendText(t, models.SenderUser, "c")

	assert.NotEqual(t, a.ID, b.ID)
	assert.Less(t, a.ID, b.ID)
	assert.Less(t, b.ID, c.ID)
}

func TestAppendInvalidDraftLeavesLog(t *testing.T) {
	f := newFixture(t)
	f.appendText(t, models.SenderUser, "keep")
	before := f.log.Messages()
	published := len(f.seen)

	_, err := f.log.Append(context.Background(), models.Draft{Sender: "ghost", Kind: models.KindText, Text: "x"})
	assert.ErrorIs(t, err, models.ErrInvalidDraft)

	_, err = f.log.Append(context.Background(), models.Draft{Sender: models.SenderUser, Kind: models.KindImage})
	assert.ErrorIs(t, err, models.ErrInvalidDraft)

	assert.Equal(t, before, f.log.Messages())
	assert.Len(t, f.seen, published, "rejections are not published")
}

func TestDeleteAt(t *testing.T) {
	f := newFixture(t)
	f.appendText(t, models.SenderUser, "a")
	b := f.appendText(t, models.SenderBot, "b")
	f.appendText(t, models.SenderUser, "c")

	require.NoError(t, f.log.DeleteAt(context.Background(), 0))

	msgs := f.log.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, b, msgs[0])
	assert.Equal(t, "c", msgs[1].Text)
	assert.Equal(t, msgs, f.store.Load(context.Background()))
}

func TestDeleteAtOutOfRangeLeavesLog(t *testing.T) {
	f := newFixture(t)
	f.appendText(t, models.SenderUser, "a")
	f.appendText(t, models.SenderUser, "b")
	before := f.log.Messages()

	for _, i := range []int{-1, 2, 99} {
		assert.ErrorIs(t, f.log.DeleteAt(context.Background(), i), ErrIndexOutOfRange, "index %d", i)
	}
	assert.Equal(t, before, f.log.Messages())
}

func TestAddReactionOnEmptyLog(t *testing.T) {
	f := newFixture(t)
	_, err := f.log.AddReaction(context.Background(), "👍")
	assert.ErrorIs(t, err, ErrEmptyLog)
	assert.Zero(t, f.log.Len())
}

func TestAddReactionTouchesOnlyLastMessage(t *testing.T) {
	f := newFixture(t)
	f.appendText(t, models.SenderUser, "a")
	f.appendText(t, models.SenderBot, "b")
	before := f.log.Messages()

	_, err := f.log.AddReaction(context.Background(), "👍")
	require.NoError(t, err)
	_, err = f.log.AddReaction(context.Background(), "👍")
	require.NoError(t, err)
	reacted, err := f.log.AddReaction(context.Background(), "😂")
	require.NoError(t, err)

	after := f.log.Messages()
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, []string{"👍", "👍", "😂"}, after[1].Reactions)
	assert.Equal(t, after[1], reacted)
	assert.Equal(t, after, f.store.Load(context.Background()))
}

func TestAddReactionBlankToken(t *testing.T) {
	f := newFixture(t)
	f.appendText(t, models.SenderUser, "a")
	_, err := f.log.AddReaction(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyReaction)
	assert.Empty(t, f.log.Messages()[0].Reactions)
}

func TestClearThenReload(t *testing.T) {
	f := newFixture(t)
	f.appendText(t, models.SenderUser, "a")
	f.appendText(t, models.SenderBot, "b")

	require.NoError(t, f.log.Clear(context.Background()))
	assert.Zero(t, f.log.Len())

	reloaded := New(f.store, Options{Logger: zerolog.Nop()})
	assert.Zero(t, reloaded.Load(context.Background()))
}

func TestPersistRoundTripThroughOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.appendText(t, models.SenderBot, "welcome")
	f.appendText(t, models.SenderUser, "hi")
	_, err := f.log.Append(ctx, models.Draft{Sender: models.SenderUser, Kind: models.KindImage, ImageData: "data:image/gif;base64,R0lG"})
	require.NoError(t, err)
	_, err = f.log.AddReaction(ctx, "❤️")
	require.NoError(t, err)
	require.NoError(t, f.log.DeleteAt(ctx, 1))

	reloaded := New(f.store, Options{Logger: zerolog.Nop()})
	reloaded.Load(ctx)
	assert.Equal(t, f.log.Messages(), reloaded.Messages())
}

func TestPersistenceFailureStillAdvancesMemory(t *testing.T) {
	f := newFixture(t)
	f.backend.SetQuota(10)

	m, err := f.log.Append(context.Background(), models.Draft{Sender: models.SenderUser, Kind: models.KindText, Text: "hello"})
	require.Error(t, err)
	assert.True(t, store.IsPersistenceFailure(err))
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, 1, f.log.Len())
	require.NotEmpty(t, f.seen)
	assert.Len(t, f.seen[len(f.seen)-1].Messages, 1)

	f.backend.SetQuota(0)
	_, err = f.log.AddReaction(context.Background(), "👍")
	require.NoError(t, err)
	assert.Len(t, f.store.Load(context.Background()), 1)
}

func TestSnapshotsAreVersionedAndDetached(t *testing.T) {
	f := newFixture(t)
	f.appendText(t, models.SenderUser, "a")
	f.appendText(t, models.SenderUser, "b")
	_, err := f.log.AddReaction(context.Background(), "👍")
	require.NoError(t, err)

	require.Len(t, f.seen, 3)
	for i := 1; i < len(f.seen); i++ {
		assert.Greater(t, f.seen[i].Version, f.seen[i-1].Version)
	}
	assert.Len(t, f.seen[0].Messages, 1)
	assert.Empty(t, f.seen[1].Messages[1].Reactions, "earlier snapshot unaffected by later reaction")
	assert.Equal(t, f.seen[2].Version, f.log.Snapshot().Version)
}

func TestLoadPublishes(t *testing.T) {
	f := newFixture(t)
	f.appendText(t, models.SenderUser, "a")

	other := New(f.store, Options{Logger: zerolog.Nop()})
	var got []Snapshot
	other.SetListener(func(s Snapshot) { got = append(got, s) })

	assert.Equal(t, 1, other.Load(context.Background()))
	require.Len(t, got, 1)
	assert.Len(t, got[0].Messages, 1)
}

func TestMessagesReturnsCopy(t *testing.T) {
	f := newFixture(t)
	f.appendText(t, models.SenderUser, "a")

	msgs := f.log.Messages()
	msgs[0].Text = "changed"
	msgs[0].Reactions = append(msgs[0].Reactions, "x")

	assert.Equal(t, "a", f.log.Messages()[0].Text)
	assert.Empty(t, f.log.Messages()[0].Reactions)
}
