package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatsim/internal/metrics"
	"github.com/eldtechnologies/chatsim/internal/models"
)

// MessageStore persists the whole conversation log as one JSON array.
type MessageStore struct {
	backend Backend
	logger  zerolog.Logger
}

// NewMessageStore creates a MessageStore on top of backend.
func NewMessageStore(backend Backend, logger zerolog.Logger) *MessageStore {
	return &MessageStore{
		backend: backend,
		logger:  logger.With().Str("component", "message_store").Logger(),
	}
}

// Load returns the persisted log. Missing, unreadable or corrupt data
// yields an empty log; the cause is logged and counted.
func (s *MessageStore) Load(ctx context.Context) []models.Message {
	start := time.Now()
	data, err := s.backend.Get(ctx, ConversationKey)
	metrics.StoreLatency.WithLabelValues("load").Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.PersistenceFailures.WithLabelValues("load").Inc()
			s.logger.Warn().Err(err).Msg("conversation log unreadable, starting empty")
		}
		return []models.Message{}
	}

	var msgs []models.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		metrics.PersistenceFailures.WithLabelValues("decode").Inc()
		s.logger.Warn().Err(err).Int("bytes", len(data)).Msg("conversation log corrupt, starting empty")
		return []models.Message{}
	}

	for i := range msgs {
		if msgs[i].Reactions == nil {
			msgs[i].Reactions = []string{}
		}
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs
}

// Persist writes the full log. On failure the error is logged, counted and
// returned as a *PersistenceError.
func (s *MessageStore) Persist(ctx context.Context, msgs []models.Message) error {
	if msgs == nil {
		msgs = []models.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return s.fail(&PersistenceError{Op: "persist", Key: ConversationKey, Err: err})
	}

	start := time.Now()
	err = s.backend.Set(ctx, ConversationKey, data)
	metrics.StoreLatency.WithLabelValues("persist").Observe(time.Since(start).Seconds())
	if err != nil {
		return s.fail(&PersistenceError{Op: "persist", Key: ConversationKey, Err: err})
	}
	return nil
}

func (s *MessageStore) fail(err *PersistenceError) error {
	metrics.PersistenceFailures.WithLabelValues(err.Op).Inc()
	s.logger.Warn().Err(err.Err).Str("key", err.Key).Msg("persistence unavailable, continuing in memory")
	return err
}
