package domain

import "fmt"

// Record is the persisted form of one conversation turn. Every storage
// backend marshals this shape with its native codec (firestore tags,
// dynamodb attributevalue, plain JSON for sqlite).
type Record struct {
	Role      string         `json:"role" firestore:"role" dynamodbav:"role"`
	Content   []ContentBlock `json:"content" firestore:"content" dynamodbav:"content"`
	Timestamp int64          `json:"timestamp" firestore:"timestamp" dynamodbav:"timestamp"`
}

// EncodeConversation converts a conversation to its persisted form.
func EncodeConversation(conv []TimestampedMessage) []Record {
	records := make([]Record, 0, len(conv))
	for _, m := range conv {
		records = append(records, Record{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return records
}

// DecodeConversation is the inverse of EncodeConversation. A nil or empty
// record list decodes to an empty conversation; a record missing its role,
// content or timestamp, or carrying an unknown role, fails with an error
// wrapping ErrMalformedRecord.
func DecodeConversation(records []Record) ([]TimestampedMessage, error) {
	if len(records) == 0 {
		return nil, nil
	}
	conv := make([]TimestampedMessage, 0, len(records))
	for i, rec := range records {
		role := Role(rec.Role)
		switch {
		case rec.Role == "":
			return nil, fmt.Errorf("record %d has no role: %w", i, ErrMalformedRecord)
		case !role.Known():
			return nil, fmt.Errorf("record %d has unknown role %q: %w", i, rec.Role, ErrMalformedRecord)
		case len(rec.Content) == 0:
			return nil, fmt.Errorf("record %d has no content: %w", i, ErrMalformedRecord)
		case rec.Timestamp <= 0:
			return nil, fmt.Errorf("record %d has no timestamp: %w", i, ErrMalformedRecord)
		}
		conv = append(conv, TimestampedMessage{
			Message:   Message{Role: role, Content: rec.Content},
			Timestamp: rec.Timestamp,
		})
	}
	return conv, nil
}

// StripTimestamps projects away the ordering metadata. All results handed
// to callers outside this core go through here.
func StripTimestamps(conv []TimestampedMessage) []Message {
	msgs := make([]Message, 0, len(conv))
	for _, m := range conv {
		msgs = append(msgs, m.Message)
	}
	return msgs
}
