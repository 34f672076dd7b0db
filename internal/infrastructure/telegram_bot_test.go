package infrastructure

import (
	"sync"
	"testing"
	"time"

	"project_supportbot/internal/entities"
	"project_supportbot/internal/observability"
	"project_supportbot/internal/repository"
	"project_supportbot/internal/usecases"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable

	// when set, every API call waits for it to close
	gate chan struct{}
}

func (f *fakeSender) wait() {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

func (f *fakeSender) lastSent() tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) typingActions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if a, ok := r.(tgbotapi.ChatActionConfig); ok && a.Action == tgbotapi.ChatTyping {
			n++
		}
	}
	return n
}

// stepScheduler holds delayed replies until step is called
type stepScheduler struct {
	mu      sync.Mutex
	pending []func()
}

func (s *stepScheduler) AfterFunc(_ time.Duration, f func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	canceled := false
	s.pending = append(s.pending, func() {
		if !canceled {
			f()
		}
	})
	return func() {
		s.mu.Lock()
		canceled = true
		s.mu.Unlock()
	}
}

func (s *stepScheduler) step() {
	s.mu.Lock()
	due := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, f := range due {
		f()
	}
}

type botFixture struct {
	bot        *TelegramBot
	sender     *fakeSender
	sched      *stepScheduler
	conv       *usecases.ConversationService
	classifier *usecases.IntentClassifier
}

func newBotFixture(t *testing.T, limiter *MessageRateLimiter) *botFixture {
	t.Helper()
	if limiter == nil {
		limiter = NewMessageRateLimiter(100, 100)
	}
	classifier := usecases.NewDefaultIntentClassifier()
	sched := &stepScheduler{}
	conv := usecases.NewConversationService(repository.NewMessageStore(""), classifier, usecases.ConversationOptions{
		Scheduler: sched,
		Logger:    observability.Discard(),
	})
	sender := &fakeSender{}
	bot := newTelegramBot(sender, "support_test_bot", conv, limiter)
	t.Cleanup(bot.Close)
	return &botFixture{bot: bot, sender: sender, sched: sched, conv: conv, classifier: classifier}
}

// handle feeds one update and waits for the replies it queued
func (f *botFixture) handle(update tgbotapi.Update) {
	f.bot.HandleUpdate(update)
	f.bot.flush()
}

// step fires the pending delayed replies and waits for them to be sent
func (f *botFixture) step() {
	f.sched.step()
	f.bot.flush()
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
	if len(text) > 0 && text[0] == '/' {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		Data:    data,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func TestTelegramBotRequiresStart(t *testing.T) {
	f := newBotFixture(t, nil)

	f.handle(textUpdate(10, "where is my order"))
	assert.Equal(t, []string{startText}, f.sender.texts())
	assert.Len(t, f.conv.Snapshot(), 1)
}

func TestTelegramBotStartSendsGreetingWithKeyboard(t *testing.T) {
	f := newBotFixture(t, nil)

	f.handle(textUpdate(10, "/start"))
	assert.Equal(t, int64(10), f.bot.BoundChat())

	require.Equal(t, []string{entities.GreetingContent}, f.sender.texts())
	kb, ok := f.sender.lastSent().ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 3)
	assert.Equal(t, "Track my order", kb.InlineKeyboard[0][0].Text)
	require.NotNil(t, kb.InlineKeyboard[2][0].CallbackData)
	assert.Equal(t, "qr:4", *kb.InlineKeyboard[2][0].CallbackData)
}

func TestTelegramBotExchange(t *testing.T) {
	f := newBotFixture(t, nil)
	f.handle(textUpdate(10, "/start"))

	f.handle(textUpdate(10, "I want a refund"))
	assert.Equal(t, 1, f.sender.typingActions())
	assert.Equal(t, entities.StatusAwaitingResponse, f.conv.Status())

	f.handle(textUpdate(10, "hello?"))
	assert.Equal(t, busyText, f.sender.lastSent().Text)

	f.step()
	_, wantReply := f.classifier.Classify("I want a refund")
	assert.Equal(t, wantReply, f.sender.lastSent().Text)
	assert.Equal(t, entities.StatusIdle, f.conv.Status())
	assert.Len(t, f.conv.Snapshot(), 3)
}

func TestTelegramBotQuickReplyCallback(t *testing.T) {
	f := newBotFixture(t, nil)
	f.handle(textUpdate(10, "/start"))

	f.handle(callbackUpdate(10, "qr:1"))
	f.step()

	snap := f.conv.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "Return policy", snap[1].Content)
	assert.Equal(t, entities.IntentReturns, snap[2].Intent)

	f.handle(callbackUpdate(10, "qr:9"))
	assert.Equal(t, unknownQRText, f.sender.lastSent().Text)

	before := len(f.sender.texts())
	f.handle(callbackUpdate(10, "something-else"))
	assert.Len(t, f.sender.texts(), before)
}

func TestTelegramBotOtherChatIsTurnedAway(t *testing.T) {
	f := newBotFixture(t, nil)
	f.handle(textUpdate(10, "/start"))

	f.handle(textUpdate(20, "hi"))
	assert.Equal(t, otherChatText, f.sender.lastSent().Text)
	assert.Len(t, f.conv.Snapshot(), 1)

	// a new /start moves the conversation and resets it
	f.handle(textUpdate(10, "track my order"))
	f.handle(textUpdate(20, "/start"))
	assert.Equal(t, int64(20), f.bot.BoundChat())
	assert.Equal(t, entities.StatusIdle, f.conv.Status())
	assert.Len(t, f.conv.Snapshot(), 1)

	f.step()
	assert.Len(t, f.conv.Snapshot(), 1)
}

func TestTelegramBotSlowAPIDoesNotBlockConversation(t *testing.T) {
	f := newBotFixture(t, nil)
	f.handle(textUpdate(10, "/start"))

	gate := make(chan struct{})
	f.sender.mu.Lock()
	f.sender.gate = gate
	f.sender.mu.Unlock()

	submitted := make(chan error, 1)
	go func() {
		_, err := f.conv.Submit("where is my order")
		submitted <- err
	}()
	select {
	case err := <-submitted:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("submit waited on the telegram api")
	}

	done := make(chan struct{})
	go func() {
		f.sched.step()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed reply waited on the telegram api")
	}
	assert.Equal(t, entities.StatusIdle, f.conv.Status())

	close(gate)
	f.bot.flush()
	assert.Equal(t, 1, f.sender.typingActions())
	_, wantReply := f.classifier.Classify("where is my order")
	assert.Equal(t, wantReply, f.sender.lastSent().Text)
}

func TestTelegramBotCloseDrainsOutbox(t *testing.T) {
	f := newBotFixture(t, nil)
	f.bot.HandleUpdate(textUpdate(10, "/start"))
	f.bot.Close()

	assert.Equal(t, []string{entities.GreetingContent}, f.sender.texts())

	// detached: later events are not mirrored
	f.conv.ResetConversation()
	assert.Len(t, f.sender.texts(), 1)
}

func TestTelegramBotRateLimited(t *testing.T) {
	f := newBotFixture(t, NewMessageRateLimiter(0.01, 1))

	f.handle(textUpdate(10, "/start"))
	f.handle(textUpdate(10, "hello"))

	assert.Contains(t, f.sender.lastSent().Text, "too quickly")
	assert.Len(t, f.conv.Snapshot(), 1)
}

func TestQuickReplyKeyboardLayout(t *testing.T) {
	kb := QuickReplyKeyboard([]string{"a", "b", "c"})
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Len(t, kb.InlineKeyboard[0], 2)
	assert.Len(t, kb.InlineKeyboard[1], 1)

	i, ok := parseQuickReplyData("qr:2")
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	_, ok = parseQuickReplyData("qr:x")
	assert.False(t, ok)
}
