package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"project_supportbot/internal/entities"
	"project_supportbot/internal/interfaces"
	"project_supportbot/internal/observability"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	quickReplyPrefix = "qr:"

	busyText       = "Please wait…"
	startText      = "Send /start to begin a conversation."
	otherChatText  = "Sorry, I'm busy with another conversation right now."
	rateLimitText  = "You're sending messages too quickly. Try again in %s."
	unknownQRText  = "That option is no longer available."
	cleanupEvery   = 5 * time.Minute
	updatesTimeout = 60
	outboxSize     = 64
)

// TelegramSender is the subset of *tgbotapi.BotAPI used to talk back to Telegram
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramBot renders the conversation into a single Telegram chat.
// The chat that last sent /start owns the conversation.
type TelegramBot struct {
	bot     *tgbotapi.BotAPI
	api     TelegramSender
	botName string
	conv    interfaces.Conversation
	limiter *MessageRateLimiter
	log     *slog.Logger

	mu          sync.Mutex
	chatID      int64
	running     bool
	unsubscribe func()

	// outgoing API calls, in order, run by sendLoop
	outbox    chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewTelegramBot validates the token against the Bot API
func NewTelegramBot(token string, conv interfaces.Conversation, limiter *MessageRateLimiter) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram token: %w", err)
	}
	tb := newTelegramBot(bot, bot.Self.UserName, conv, limiter)
	tb.bot = bot
	return tb, nil
}

func newTelegramBot(api TelegramSender, name string, conv interfaces.Conversation, limiter *MessageRateLimiter) *TelegramBot {
	tb := &TelegramBot{
		api:     api,
		botName: name,
		conv:    conv,
		limiter: limiter,
		log:     observability.WithFields("component", "telegram", "bot", name),
		outbox:  make(chan func(), outboxSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go tb.sendLoop()
	tb.unsubscribe = conv.Subscribe(tb.onEvent)
	return tb
}

// Close detaches from the conversation and stops the sender once queued calls are done
func (b *TelegramBot) Close() {
	b.closeOnce.Do(func() {
		b.unsubscribe()
		close(b.done)
	})
	<-b.stopped
}

func (b *TelegramBot) sendLoop() {
	defer close(b.stopped)
	for {
		select {
		case call := <-b.outbox:
			call()
		case <-b.done:
			for {
				select {
				case call := <-b.outbox:
					call()
				default:
					return
				}
			}
		}
	}
}

// enqueue hands an API call to sendLoop. Conversation listeners must not
// block, so when wait is false a full outbox drops the call.
func (b *TelegramBot) enqueue(call func(), wait bool) {
	if !wait {
		select {
		case b.outbox <- call:
		case <-b.done:
		default:
			b.log.Warn("outbox full, dropping telegram call")
		}
		return
	}
	select {
	case b.outbox <- call:
	case <-b.done:
	}
}

// flush blocks until every call queued so far has run
func (b *TelegramBot) flush() {
	ran := make(chan struct{})
	b.enqueue(func() { close(ran) }, true)
	select {
	case <-ran:
	case <-b.stopped:
	}
}

// Run polls for updates until ctx is cancelled
func (b *TelegramBot) Run(ctx context.Context) error {
	if b.bot == nil {
		return errors.New("telegram bot has no API client")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = updatesTimeout
	updates := b.bot.GetUpdatesChan(u)

	stopCleanup := make(chan struct{})
	go b.limiter.RunCleanup(cleanupEvery, stopCleanup)

	b.setRunning(true)
	b.log.Info("started polling")
	defer func() {
		b.bot.StopReceivingUpdates()
		close(stopCleanup)
		b.Close()
		b.setRunning(false)
		b.log.Info("stopped polling")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(update)
		}
	}
}

func (b *TelegramBot) setRunning(v bool) {
	b.mu.Lock()
	b.running = v
	b.mu.Unlock()
}

func (b *TelegramBot) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *TelegramBot) BotName() string { return b.botName }

// BoundChat returns the chat owning the conversation, or 0
func (b *TelegramBot) BoundChat() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chatID
}

// HandleUpdate processes one update from Telegram
func (b *TelegramBot) HandleUpdate(update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}

	msg := update.Message
	chatID := msg.Chat.ID

	if !b.limiter.Allow(chatID) {
		wait := b.limiter.WaitTime(chatID).Round(time.Second)
		if wait < time.Second {
			wait = time.Second
		}
		b.sendText(chatID, fmt.Sprintf(rateLimitText, wait))
		return
	}

	if msg.IsCommand() && msg.Command() == "start" {
		b.mu.Lock()
		b.chatID = chatID
		b.mu.Unlock()
		b.log.Info("chat bound", "chat_id", chatID)
		// the greeting reaches the chat through the reset events
		b.conv.ResetConversation()
		return
	}

	if !b.owns(chatID) {
		if b.BoundChat() == 0 {
			b.sendText(chatID, startText)
		} else {
			b.sendText(chatID, otherChatText)
		}
		return
	}

	b.submit(chatID, func() (*entities.Message, error) { return b.conv.Submit(msg.Text) })
}

func (b *TelegramBot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn("callback ack failed", "error", err)
	}
	if cb.Message == nil {
		return
	}

	chatID := cb.Message.Chat.ID
	if !b.owns(chatID) {
		b.sendText(chatID, otherChatText)
		return
	}

	index, ok := parseQuickReplyData(cb.Data)
	if !ok {
		b.log.Debug("ignoring callback", "data", cb.Data)
		return
	}
	b.submit(chatID, func() (*entities.Message, error) { return b.conv.SubmitQuickReply(index) })
}

func (b *TelegramBot) submit(chatID int64, fn func() (*entities.Message, error)) {
	_, err := fn()
	switch {
	case err == nil:
	case errors.Is(err, entities.ErrConversationBusy):
		b.sendText(chatID, busyText)
	case errors.Is(err, entities.ErrUnknownQuickReply):
		b.sendText(chatID, unknownQRText)
	default:
		b.log.Error("submit failed", "chat_id", chatID, "error", err)
	}
}

func (b *TelegramBot) owns(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chatID != 0 && b.chatID == chatID
}

// onEvent mirrors conversation events into the bound chat.
// It runs on the dispatching goroutine, so it only queues API calls.
func (b *TelegramBot) onEvent(ev entities.Event) {
	chatID := b.BoundChat()
	if chatID == 0 {
		return
	}

	switch ev.Type {
	case entities.EventMessageAppended:
		if ev.Message == nil || !ev.Message.IsAgent() {
			return
		}
		out := tgbotapi.NewMessage(chatID, ev.Message.Content)
		out.ReplyMarkup = QuickReplyKeyboard(b.conv.QuickReplies())
		b.enqueue(func() { b.send(out) }, false)
	case entities.EventStatusChanged:
		if ev.Status != entities.StatusAwaitingResponse {
			return
		}
		action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
		b.enqueue(func() {
			if _, err := b.api.Request(action); err != nil {
				b.log.Warn("typing action failed", "error", err)
			}
		}, false)
	}
}

func (b *TelegramBot) sendText(chatID int64, text string) {
	out := tgbotapi.NewMessage(chatID, text)
	b.enqueue(func() { b.send(out) }, true)
}

func (b *TelegramBot) send(out tgbotapi.MessageConfig) {
	if _, err := b.api.Send(out); err != nil {
		b.log.Error("send failed", "chat_id", out.ChatID, "error", err)
	}
}

// QuickReplyKeyboard lays the quick replies out two per row
func QuickReplyKeyboard(labels []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for i, label := range labels {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, quickReplyPrefix+strconv.Itoa(i)))
		if (i+1)%2 == 0 {
			rows = append(rows, row)
			row = []tgbotapi.InlineKeyboardButton{}
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func parseQuickReplyData(data string) (int, bool) {
	raw, ok := strings.CutPrefix(data, quickReplyPrefix)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return i, true
}
