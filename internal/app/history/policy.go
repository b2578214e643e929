package history

import "github.com/mparedes/chatstore/internal/domain"

// shouldSuppress reports whether appending incoming would persist two
// consecutive turns with the same role (a retried reply, typically).
// Only the single-message save path applies it.
func shouldSuppress(existing []domain.TimestampedMessage, incoming domain.Message) bool {
	if len(existing) == 0 {
		return false
	}
	return existing[len(existing)-1].Role == incoming.Role
}

// trimConversation keeps the last maxSize entries in original order.
// A nil maxSize keeps everything; zero or negative drops everything.
// This runs as the final step before every persisted write.
func trimConversation(conv []domain.TimestampedMessage, maxSize *int) []domain.TimestampedMessage {
	if maxSize == nil {
		return conv
	}
	n := *maxSize
	if n <= 0 {
		return nil
	}
	if len(conv) <= n {
		return conv
	}
	return conv[len(conv)-n:]
}
