package testkit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/fanzone/go/internal/models"
)

// ChatStore is an in-memory chat.Store. Timestamps are strictly increasing
// per channel even when the clock stands still.
type ChatStore struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	logs       map[uuid.UUID][]models.ChatMessage
	appendErrs []error
}

func NewChatStore(clock clockwork.Clock) *ChatStore {
	return &ChatStore{
		clock: clock,
		logs:  make(map[uuid.UUID][]models.ChatMessage),
	}
}

// FailNextAppend queues err for the next Append call.
func (s *ChatStore) FailNextAppend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErrs = append(s.appendErrs, err)
}

// Len returns the number of stored messages in a channel.
func (s *ChatStore) Len(gameID *uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs[channelKey(gameID)])
}

func (s *ChatStore) Append(_ context.Context, msg models.ChatMessage) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.appendErrs) > 0 {
		err := s.appendErrs[0]
		s.appendErrs = s.appendErrs[1:]
		return nil, err
	}
	key := channelKey(msg.GameID)
	log := s.logs[key]
	msg.CreatedAt = s.clock.Now().UTC()
	if n := len(log); n > 0 && !msg.CreatedAt.After(log[n-1].CreatedAt) {
		msg.CreatedAt = log[n-1].CreatedAt.Add(time.Microsecond)
	}
	s.logs[key] = append(log, msg)
	return &msg, nil
}

func (s *ChatStore) Recent(_ context.Context, gameID *uuid.UUID, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[channelKey(gameID)]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]models.ChatMessage, len(log))
	copy(out, log)
	return out, nil
}

func channelKey(gameID *uuid.UUID) uuid.UUID {
	if gameID == nil {
		return uuid.Nil
	}
	return *gameID
}
