package domain

// Role identifies who produced a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Known reports whether the role is one this system stores.
func (r Role) Known() bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ContentBlock is one unit of message content. A text block carries Text;
// a structured block (tool output, attachments) carries Data.
type ContentBlock struct {
	Text string         `json:"text,omitempty" firestore:"text,omitempty" dynamodbav:"text,omitempty"`
	Data map[string]any `json:"data,omitempty" firestore:"data,omitempty" dynamodbav:"data,omitempty"`
}

// Message is a single chat turn. Values are treated as immutable once
// constructed; anything that rewrites content works on a copy.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// NewTextMessage normalizes plain text to a one-element block sequence.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Text: text}}}
}

// TimestampedMessage is a Message plus the moment it was accepted for
// storage, in milliseconds since the epoch. The timestamp orders turns
// during cross-agent aggregation and is never exposed to callers.
type TimestampedMessage struct {
	Message
	Timestamp int64
}
