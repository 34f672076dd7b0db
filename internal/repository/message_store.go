package repository

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"project_supportbot/internal/entities"

	"github.com/oklog/ulid/v2"
)

// MessageStore is the append-only, in-memory history of one conversation.
// Messages are never persisted; Reset is the only way history disappears.
type MessageStore struct {
	mu       sync.RWMutex
	messages []entities.Message
	epoch    uint64
	greeting string
	entropy  *ulid.MonotonicEntropy
	lastMs   uint64
	now      func() time.Time
}

// NewMessageStore creates a store seeded with the greeting message
func NewMessageStore(greeting string) *MessageStore {
	return newMessageStore(greeting, time.Now)
}

func newMessageStore(greeting string, now func() time.Time) *MessageStore {
	if strings.TrimSpace(greeting) == "" {
		greeting = entities.GreetingContent
	}
	s := &MessageStore{
		greeting: greeting,
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		now:      now,
	}
	s.messages = []entities.Message{s.newGreeting()}
	return s
}

// Append validates and stores a message, returning the stored value
func (s *MessageStore) Append(role entities.Role, content, intent string) (entities.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return entities.Message{}, fmt.Errorf("%w: empty content", entities.ErrInvalidMessage)
	}

	switch role {
	case entities.RoleUser:
		if intent != "" {
			return entities.Message{}, fmt.Errorf("%w: user message cannot carry intent %q", entities.ErrInvalidMessage, intent)
		}
	case entities.RoleAgent:
		if intent == "" {
			return entities.Message{}, fmt.Errorf("%w: agent message requires an intent", entities.ErrInvalidMessage)
		}
	default:
		return entities.Message{}, fmt.Errorf("%w: unknown role %q", entities.ErrInvalidMessage, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.build(role, content, intent)
	s.messages = append(s.messages, msg)
	return msg, nil
}

// Snapshot returns a copy of the history in append order
func (s *MessageStore) Snapshot() []entities.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Reset clears history, bumps the epoch and reseeds the greeting
func (s *MessageStore) Reset() entities.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	greeting := s.newGreeting()
	s.messages = []entities.Message{greeting}
	return greeting
}

// SetGreeting changes the greeting used by the next Reset; blank restores the default
func (s *MessageStore) SetGreeting(greeting string) {
	greeting = strings.TrimSpace(greeting)
	if greeting == "" {
		greeting = entities.GreetingContent
	}
	s.mu.Lock()
	s.greeting = greeting
	s.mu.Unlock()
}

// Epoch returns the number of resets so far
func (s *MessageStore) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// newGreeting must be called with mu held (or during construction)
func (s *MessageStore) newGreeting() entities.Message {
	return s.build(entities.RoleAgent, s.greeting, entities.IntentGreeting)
}

// build must be called with mu held (or during construction).
// The id timestamp never moves backwards, even when the wall clock does.
func (s *MessageStore) build(role entities.Role, content, intent string) entities.Message {
	now := s.now()
	ms := max(s.lastMs, ulid.Timestamp(now))
	s.lastMs = ms
	return entities.Message{
		ID:        ulid.MustNew(ms, s.entropy).String(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
		Intent:    intent,
	}
}
