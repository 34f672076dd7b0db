package interfaces

import "project_supportbot/internal/entities"

// Conversation is what a renderer drives: submit input, read history, follow events
type Conversation interface {
	Submit(text string) (*entities.Message, error)
	SubmitQuickReply(index int) (*entities.Message, error)
	QuickReplies() []string
	ResetConversation() entities.Message
	Snapshot() []entities.Message
	Status() entities.Status
	Subscribe(listener entities.Listener) (unsubscribe func())
}

// BotStatus is reported by transports connected to an external messenger
type BotStatus interface {
	Connected() bool
	BotName() string
	BoundChat() int64
}
