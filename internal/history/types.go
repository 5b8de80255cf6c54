package history

import (
	"time"

	"github.com/MrPeterss/infosci-spark-client/spark"
)

// History represents all conversation sessions
type History struct {
	Sessions []Session `json:"sessions"`
}

// Session represents a single conversation session
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Message represents a single message in a conversation
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// Metadata contains additional information about an assistant reply
type Metadata struct {
	Reasoning      string        `json:"reasoning,omitempty"`
	ReasoningLevel string        `json:"reasoning_level,omitempty"`
	Streamed       bool          `json:"streamed"`
	Duration       time.Duration `json:"duration_ns,omitempty"`
}

// ToSpark converts stored messages into the wire form, oldest first.
// Reasoning is never replayed to the server.
func ToSpark(messages []Message) []spark.Message {
	out := make([]spark.Message, len(messages))
	for i, m := range messages {
		out[i] = spark.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
