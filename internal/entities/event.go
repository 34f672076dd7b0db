package entities

type EventType string

const (
	EventMessageAppended EventType = "message"
	EventStatusChanged   EventType = "status"
	EventReset           EventType = "reset"
)

// Event is what renderers receive from a subscribed conversation
type Event struct {
	Type    EventType `json:"type"`
	Message *Message  `json:"message,omitempty"`
	Status  Status    `json:"status,omitempty"`
	Epoch   uint64    `json:"epoch"`
}

// Listener receives conversation events in mutation order
type Listener func(Event)
