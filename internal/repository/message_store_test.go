package repository

import (
	"testing"
	"time"

	"project_supportbot/internal/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageStoreSeedsGreeting(t *testing.T) {
	s := NewMessageStore("")

	msgs := s.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, entities.RoleAgent, msgs[0].Role)
	assert.Equal(t, entities.IntentGreeting, msgs[0].Intent)
	assert.Equal(t, entities.GreetingContent, msgs[0].Content)
	assert.NotEmpty(t, msgs[0].ID)
	assert.Equal(t, uint64(0), s.Epoch())
}

func TestAppendValidation(t *testing.T) {
	tests := []struct {
		name    string
		role    entities.Role
		content string
		intent  string
	}{
		{"empty content", entities.RoleUser, "", ""},
		{"blank content", entities.RoleUser, "   \t\n", ""},
		{"user with intent", entities.RoleUser, "hi", entities.IntentBilling},
		{"agent without intent", entities.RoleAgent, "hi", ""},
		{"unknown role", entities.Role("system"), "hi", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMessageStore("")
			_, err := s.Append(tt.role, tt.content, tt.intent)
			require.ErrorIs(t, err, entities.ErrInvalidMessage)
			assert.Equal(t, 1, s.Len(), "store must not change on invalid append")
		})
	}
}

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	s := NewMessageStore("")

	first, err := s.Append(entities.RoleUser, "  where is my order?  ", "")
	require.NoError(t, err)
	second, err := s.Append(entities.RoleAgent, "tracking", entities.IntentOrderTracking)
	require.NoError(t, err)

	assert.Equal(t, "where is my order?", first.Content)
	assert.Empty(t, first.Intent)
	assert.NotEqual(t, first.ID, second.ID)

	msgs := s.Snapshot()
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.Less(t, msgs[i-1].ID, msgs[i].ID, "ids must increase in append order")
	}
	assert.Equal(t, second, msgs[2])
}

func TestIDsIncreaseWhenClockRepeatsOrStepsBack(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newMessageStore("", func() time.Time { return clock })

	steps := []time.Duration{0, 0, -2 * time.Second, time.Millisecond, -time.Hour, 3 * time.Hour}
	for i, step := range steps {
		clock = clock.Add(step)
		msg, err := s.Append(entities.RoleUser, "message", "")
		require.NoError(t, err, "append %d", i)
		assert.Equal(t, clock, msg.CreatedAt, "created at keeps the wall clock")
	}

	msgs := s.Snapshot()
	require.Len(t, msgs, len(steps)+1)
	for i := 1; i < len(msgs); i++ {
		assert.Less(t, msgs[i-1].ID, msgs[i].ID, "id %d must sort after id %d", i, i-1)
	}

	// a reset after the clock stepped back still sorts after the old history
	last := msgs[len(msgs)-1].ID
	clock = clock.Add(-24 * time.Hour)
	greeting := s.Reset()
	assert.Less(t, last, greeting.ID)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewMessageStore("")
	_, err := s.Append(entities.RoleUser, "hello", "")
	require.NoError(t, err)

	snap := s.Snapshot()
	snap[0].Content = "tampered"
	snap = append(snap, entities.Message{ID: "x"})

	fresh := s.Snapshot()
	require.Len(t, fresh, 2)
	assert.Equal(t, entities.GreetingContent, fresh[0].Content)
}

func TestResetReseedsAndBumpsEpoch(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newMessageStore("Welcome!", func() time.Time { return clock })
	original := s.Snapshot()[0]

	_, err := s.Append(entities.RoleUser, "refund please", "")
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	greeting := s.Reset()

	assert.Equal(t, uint64(1), s.Epoch())
	assert.Equal(t, "Welcome!", greeting.Content)
	assert.Equal(t, entities.IntentGreeting, greeting.Intent)
	assert.NotEqual(t, original.ID, greeting.ID)
	assert.True(t, greeting.CreatedAt.After(original.CreatedAt))

	msgs := s.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, greeting, msgs[0])
}

func TestSetGreetingAppliesOnReset(t *testing.T) {
	s := NewMessageStore("")
	s.SetGreeting("  Hi there  ")
	assert.Equal(t, entities.GreetingContent, s.Snapshot()[0].Content)

	assert.Equal(t, "Hi there", s.Reset().Content)

	s.SetGreeting(" ")
	assert.Equal(t, entities.GreetingContent, s.Reset().Content)
}
