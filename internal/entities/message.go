package entities

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Intent labels produced by the classifier, plus the seed greeting
const (
	IntentGreeting       = "greeting"
	IntentOrderTracking  = "order_tracking"
	IntentReturns        = "returns"
	IntentProductInfo    = "product_info"
	IntentContactSupport = "contact_support"
	IntentBilling        = "billing"
	IntentFallback       = "fallback"
)

// GreetingContent is the seed agent message of every conversation
const GreetingContent = "Hello! 👋 I'm your AI support assistant. How can I help you today?"

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Intent    string    `json:"intent,omitempty"` // agent messages only
}

// IsAgent reports whether the message was produced by the assistant
func (m Message) IsAgent() bool {
	return m.Role == RoleAgent
}

type Status string

const (
	StatusIdle             Status = "idle"
	StatusAwaitingResponse Status = "awaiting_response"
)
