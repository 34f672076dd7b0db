package usecases

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"project_supportbot/internal/entities"
	"project_supportbot/internal/observability"
	"project_supportbot/internal/repository"

	"github.com/google/uuid"
)

// DefaultReplyDelay is the simulated latency between a user message and the reply
const DefaultReplyDelay = 1500 * time.Millisecond

// DefaultQuickReplies are the canned phrases offered by renderers
var DefaultQuickReplies = []string{
	"Track my order",
	"Return policy",
	"Product information",
	"Contact support",
	"Billing questions",
}

type ConversationOptions struct {
	ReplyDelay   time.Duration
	QuickReplies []string
	Scheduler    Scheduler
	// Performance supplies the static figures attached to analytics reports
	Performance func() PerformanceFigures
	Logger      *slog.Logger
}

type subscriber struct {
	id uint64
	fn entities.Listener
}

// ConversationService owns one conversation: its store, its Idle/AwaitingResponse
// status and the single pending reply. At most one exchange is in flight; a
// submission while a reply is pending is rejected with ErrConversationBusy.
type ConversationService struct {
	id           string
	store        *repository.MessageStore
	classifier   *IntentClassifier
	scheduler    Scheduler
	replyDelay   time.Duration
	quickReplies []string
	performance  func() PerformanceFigures
	log          *slog.Logger

	mu            sync.Mutex
	status        entities.Status
	cancelPending func()
	subscribers   []subscriber
	nextSubID     uint64
	queue         []entities.Event

	// held by whichever goroutine is delivering queued events
	dispatchMu sync.Mutex
}

// NewConversationService creates a conversation around an existing store
func NewConversationService(store *repository.MessageStore, classifier *IntentClassifier, opts ConversationOptions) *ConversationService {
	if opts.ReplyDelay <= 0 {
		opts.ReplyDelay = DefaultReplyDelay
	}
	if opts.QuickReplies == nil {
		opts.QuickReplies = DefaultQuickReplies
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewTimerScheduler()
	}
	if opts.Performance == nil {
		opts.Performance = DefaultPerformanceFigures
	}
	if opts.Logger == nil {
		opts.Logger = observability.Component("conversation")
	}

	id := uuid.NewString()
	return &ConversationService{
		id:           id,
		store:        store,
		classifier:   classifier,
		scheduler:    opts.Scheduler,
		replyDelay:   opts.ReplyDelay,
		quickReplies: append([]string(nil), opts.QuickReplies...),
		performance:  opts.Performance,
		log:          opts.Logger.With("session_id", id),
		status:       entities.StatusIdle,
	}
}

// ID identifies this conversation for the lifetime of the process
func (s *ConversationService) ID() string {
	return s.id
}

// Submit appends a user message and schedules the agent reply.
// Blank text is a no-op and returns (nil, nil).
func (s *ConversationService) Submit(text string) (*entities.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	s.mu.Lock()
	if s.status != entities.StatusIdle {
		s.mu.Unlock()
		return nil, entities.ErrConversationBusy
	}

	userMsg, err := s.store.Append(entities.RoleUser, text, "")
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("append user message: %w", err)
	}

	s.status = entities.StatusAwaitingResponse
	epoch := s.store.Epoch()
	s.cancelPending = s.scheduler.AfterFunc(s.replyDelay, func() {
		s.complete(epoch, text)
	})

	s.enqueue(
		entities.Event{Type: entities.EventMessageAppended, Message: &userMsg, Epoch: epoch},
		entities.Event{Type: entities.EventStatusChanged, Status: entities.StatusAwaitingResponse, Epoch: epoch},
	)
	s.mu.Unlock()

	s.log.Info("received message", "message_id", userMsg.ID, "epoch", epoch)
	s.dispatch()
	return &userMsg, nil
}

// QuickReplies returns the canned phrases in display order
func (s *ConversationService) QuickReplies() []string {
	return append([]string(nil), s.quickReplies...)
}

// SubmitQuickReply submits the phrase at index through the same path as typed text
func (s *ConversationService) SubmitQuickReply(index int) (*entities.Message, error) {
	if index < 0 || index >= len(s.quickReplies) {
		return nil, fmt.Errorf("%w: %d", entities.ErrUnknownQuickReply, index)
	}
	return s.Submit(s.quickReplies[index])
}

// complete runs when the scheduled delay elapses. A reset in the meantime
// bumped the epoch, in which case the reply is dropped without error.
func (s *ConversationService) complete(epoch uint64, text string) {
	s.mu.Lock()
	if s.store.Epoch() != epoch {
		s.mu.Unlock()
		s.log.Debug("reply abandoned after reset", "epoch", epoch)
		return
	}

	intent, reply := s.classifier.Classify(text)
	agentMsg, err := s.store.Append(entities.RoleAgent, reply, intent)
	s.status = entities.StatusIdle
	s.cancelPending = nil
	if err != nil {
		// only reachable with a rule whose reply trims to nothing, which NewIntentClassifier rejects
		s.enqueue(entities.Event{Type: entities.EventStatusChanged, Status: entities.StatusIdle, Epoch: epoch})
		s.mu.Unlock()
		s.log.Error("failed to append agent message", "intent", intent, "error", err)
		s.dispatch()
		return
	}

	s.enqueue(
		entities.Event{Type: entities.EventMessageAppended, Message: &agentMsg, Epoch: epoch},
		entities.Event{Type: entities.EventStatusChanged, Status: entities.StatusIdle, Epoch: epoch},
	)
	s.mu.Unlock()

	s.log.Info("replied", "message_id", agentMsg.ID, "intent", intent)
	s.dispatch()
}

// ResetConversation cancels any pending reply, reseeds the greeting and forces Idle
func (s *ConversationService) ResetConversation() entities.Message {
	s.mu.Lock()
	if s.cancelPending != nil {
		s.cancelPending()
		s.cancelPending = nil
	}
	greeting := s.store.Reset()
	epoch := s.store.Epoch()
	previous := s.status
	s.status = entities.StatusIdle

	s.enqueue(
		entities.Event{Type: entities.EventReset, Epoch: epoch},
		entities.Event{Type: entities.EventMessageAppended, Message: &greeting, Epoch: epoch},
	)
	if previous != entities.StatusIdle {
		s.enqueue(entities.Event{Type: entities.EventStatusChanged, Status: entities.StatusIdle, Epoch: epoch})
	}
	s.mu.Unlock()

	s.log.Info("conversation reset", "epoch", epoch, "was", previous)
	s.dispatch()
	return greeting
}

// SetGreeting changes the greeting seeded by the next reset
func (s *ConversationService) SetGreeting(greeting string) {
	s.store.SetGreeting(greeting)
}

func (s *ConversationService) Snapshot() []entities.Message {
	return s.store.Snapshot()
}

func (s *ConversationService) Status() entities.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *ConversationService) Epoch() uint64 {
	return s.store.Epoch()
}

// Analytics summarises the current history; topK <= 0 means DefaultTopK
func (s *ConversationService) Analytics(topK int) AnalyticsReport {
	return ComputeAnalytics(s.store.Snapshot(), topK, s.performance())
}

// Subscribe registers a listener for message and status events.
// Listeners run outside the state lock and may read Snapshot or Status.
func (s *ConversationService) Subscribe(listener entities.Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: listener})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// enqueue must be called with mu held
func (s *ConversationService) enqueue(events ...entities.Event) {
	s.queue = append(s.queue, events...)
}

// dispatch delivers queued events in order. If another goroutine is already
// delivering, it picks our events up before it lets go of dispatchMu.
func (s *ConversationService) dispatch() {
	if !s.dispatchMu.TryLock() {
		return
	}
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.dispatchMu.Unlock()
			s.mu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		subs := append([]subscriber(nil), s.subscribers...)
		s.mu.Unlock()

		for _, ev := range batch {
			for _, sub := range subs {
				sub.fn(ev)
			}
		}
	}
}
