package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author side of a transcript message.
type Role string

const (
	// RoleUser marks messages authored by the human (or simulated) user.
	RoleUser Role = "user"
	// RoleAssistant marks messages authored by an agent.
	RoleAssistant Role = "assistant"
)

// Message is one entry of the caller-facing conversation transcript. It is
// the unit of the invocation contract: callers hand the engine an ordered
// history of Messages plus a new user message and receive the agent
// contribution back as rendered text.
type Message struct {
	Role      Role          `json:"role"`
	Sender    string        `json:"sender,omitempty"` // Agent name for assistant messages
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Latency   time.Duration `json:"latency,omitempty"` // Time taken to produce the message
}

// NewUserMessage builds a user-authored message stamped with the current time.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now().UTC()}
}

// NewAssistantMessage builds an agent-authored message stamped with the
// current time.
func NewAssistantMessage(sender, content string) Message {
	return Message{Role: RoleAssistant, Sender: sender, Content: content, Timestamp: time.Now().UTC()}
}

// NewID generates a new unique identifier used to correlate function calls
// with their responses and turns with their metrics.
func NewID() string { return uuid.NewString() }
