package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable wraps any I/O or transport failure from the
	// backing store. The core never retries; it propagates these as-is.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrMalformedRecord wraps a persisted payload that fails to decode.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInvalidArgument wraps caller mistakes such as an empty batch.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Item is one stored conversation returned by a prefix query.
type Item struct {
	Secondary    string
	Conversation []Record
}

// Repository is the port to the persistent key-value store. Items are
// addressed by a two-part key: primary is the user id, secondary is
// "session#agent". Implementations must wrap transport failures with
// ErrStoreUnavailable and may return query results in any order.
type Repository interface {
	// Get returns the stored conversation, or nil when no item exists.
	Get(ctx context.Context, primary, secondary string) ([]Record, error)

	// Put overwrites one item in full. A non-zero expiresAt is an
	// absolute time after which the store may discard the item.
	Put(ctx context.Context, primary, secondary string, conversation []Record, expiresAt time.Time) error

	// QueryByPrefix returns every item whose secondary key starts with
	// the prefix. Items whose stored payload is not a record list are
	// logged and skipped, not fatal to the query.
	QueryByPrefix(ctx context.Context, primary, secondaryPrefix string) ([]Item, error)
}
