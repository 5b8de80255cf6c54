package spark

// Role constants for chat messages
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents one turn of the conversation sent to the API
type Message struct {
	Role    string `json:"role"` // "user", "assistant", or "system"
	Content string `json:"content"`
}

// ReasoningLevel controls how much effort the model spends thinking
type ReasoningLevel string

const (
	ReasoningLow    ReasoningLevel = "low"
	ReasoningMedium ReasoningLevel = "medium"
	ReasoningHigh   ReasoningLevel = "high"
)

// Valid reports whether l is one of the levels the API accepts.
// The client itself never rejects a level; it forwards whatever it is given.
func (l ReasoningLevel) Valid() bool {
	switch l {
	case ReasoningLow, ReasoningMedium, ReasoningHigh:
		return true
	}
	return false
}

// ChatOptions holds per-call options. The zero value asks for no reasoning
// and leaves the reasoning level to the server default.
type ChatOptions struct {
	ShowThinking   bool
	ReasoningLevel ReasoningLevel
}

// ChatResult is a complete, non-streamed reply
type ChatResult struct {
	Content   string `json:"content"`
	Reasoning string `json:"reasoning"`
}

// ChatChunk carries the delta of a single stream event
type ChatChunk struct {
	Content   string `json:"content"`
	Reasoning string `json:"reasoning"`
}

// chatRequest is the wire body of POST /api/chat
type chatRequest struct {
	Messages       []Message       `json:"messages"`
	Stream         bool            `json:"stream"`
	ShowThinking   bool            `json:"show_thinking"`
	ReasoningLevel *ReasoningLevel `json:"reasoning_level"`
}

func newChatRequest(messages []Message, stream bool, opts ChatOptions) chatRequest {
	req := chatRequest{
		Messages:     messages,
		Stream:       stream,
		ShowThinking: opts.ShowThinking,
	}
	if messages == nil {
		req.Messages = []Message{}
	}
	if opts.ReasoningLevel != "" {
		level := opts.ReasoningLevel
		req.ReasoningLevel = &level
	}
	return req
}

// chatResponse accepts both the flat reply shape and the OpenAI-compatible
// one the production server returns.
type chatResponse struct {
	Content   *string `json:"content"`
	Reasoning string  `json:"reasoning"`
	Choices   *[]struct {
		Message struct {
			Content          string `json:"content"`
			Reasoning        string `json:"reasoning"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
}

// streamEvent is one decoded data payload of the event stream
type streamEvent struct {
	Content   string `json:"content"`
	Reasoning string `json:"reasoning"`
	Done      bool   `json:"done"`
	Choices   []struct {
		Delta struct {
			Content          string `json:"content"`
			Reasoning        string `json:"reasoning"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// delta flattens the event into its content and reasoning deltas and
// reports whether it terminates the stream.
func (e *streamEvent) delta() (content, reasoning string, final bool) {
	content, reasoning, final = e.Content, e.Reasoning, e.Done
	if len(e.Choices) > 0 {
		c := e.Choices[0]
		content += c.Delta.Content
		reasoning += firstNonEmpty(c.Delta.ReasoningContent, c.Delta.Reasoning)
		if c.FinishReason != nil && *c.FinishReason != "" {
			final = true
		}
	}
	return content, reasoning, final
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
