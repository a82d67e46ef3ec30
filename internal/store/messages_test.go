package store

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/chatsim/internal/models"
)

func sampleLog() []models.Message {
	return []models.Message{
		{ID: "01A", Sender: models.SenderBot, Kind: models.KindText, Text: "Welcome", CreatedAt: "09:30", AvatarRef: "bot.png", Reactions: []string{}},
		{ID: "01B", Sender: models.SenderUser, Kind: models.KindText, Text: "hi", CreatedAt: "09:31", AvatarRef: "me.png", Reactions: []string{"👍", "👍"}},
		{ID: "01C", Sender: models.SenderUser, Kind: models.KindImage, ImageData: "data:image/png;base64,AAAA", CreatedAt: "09:32", AvatarRef: "me.png", Reactions: []string{}},
	}
}

func TestMessageStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore(NewMemoryStore(0), zerolog.Nop())

	want := sampleLog()
	require.NoError(t, s.Persist(ctx, want))
	assert.Equal(t, want, s.Load(ctx))
}

func TestMessageStoreLoadMissingIsEmpty(t *testing.T) {
	s := NewMessageStore(NewMemoryStore(0), zerolog.Nop())
	got := s.Load(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMessageStoreLoadCorruptIsEmpty(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryStore(0)
	require.NoError(t, b.Set(ctx, ConversationKey, []byte(`{not json`)))

	s := NewMessageStore(b, zerolog.Nop())
	assert.Empty(t, s.Load(ctx))
}

func TestMessageStoreLoadNullIsEmpty(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryStore(0)
	require.NoError(t, b.Set(ctx, ConversationKey, []byte(`null`)))

	got := NewMessageStore(b, zerolog.Nop()).Load(ctx)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMessageStoreLoadReadFailureIsEmpty(t *testing.T) {
	b := NewMemoryStore(0)
	b.FailReads(errors.New("disk on fire"))

	assert.Empty(t, NewMessageStore(b, zerolog.Nop()).Load(context.Background()))
}

func TestMessageStoreLoadNormalisesReactions(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryStore(0)
	require.NoError(t, b.Set(ctx, ConversationKey, []byte(`[{"id":"1","sender":"user","kind":"text","text":"x","createdAt":"10:00","avatarRef":"a"}]`)))

	got := NewMessageStore(b, zerolog.Nop()).Load(ctx)
	require.Len(t, got, 1)
	assert.NotNil(t, got[0].Reactions)
}

func TestMessageStorePersistFailure(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryStore(16)
	s := NewMessageStore(b, zerolog.Nop())

	err := s.Persist(ctx, sampleLog())
	require.Error(t, err)
	assert.True(t, IsPersistenceFailure(err))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestMessageStorePersistEmptyEncodesArray(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryStore(0)
	s := NewMessageStore(b, zerolog.Nop())

	require.NoError(t, s.Persist(ctx, nil))
	raw, err := b.Get(ctx, ConversationKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestPreferencesTheme(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryStore(0)
	p := NewPreferences(b, zerolog.Nop())

	assert.Equal(t, ThemeLight, p.Theme(ctx))
	require.NoError(t, p.SetTheme(ctx, ThemeDark))
	assert.Equal(t, ThemeDark, p.Theme(ctx))

	require.NoError(t, b.Set(ctx, ThemeKey, []byte("purple")))
	assert.Equal(t, ThemeLight, p.Theme(ctx))
}

func TestParseTheme(t *testing.T) {
	th, ok := ParseTheme(" Dark ")
	assert.True(t, ok)
	assert.Equal(t, ThemeDark, th)

	_, ok = ParseTheme("sepia")
	assert.False(t, ok)
}
