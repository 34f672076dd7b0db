package entities

import "errors"

var (
	// ErrInvalidMessage is returned when content is blank or the role/intent pairing is wrong
	ErrInvalidMessage = errors.New("invalid message")

	// ErrConversationBusy is returned when a submission arrives while a reply is pending
	ErrConversationBusy = errors.New("conversation busy")

	ErrUnknownQuickReply = errors.New("unknown quick reply")
	ErrInvalidRules      = errors.New("invalid intent rules")
)
