package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mparedes/chatstore/internal/domain"
	"github.com/mparedes/chatstore/internal/observability"
)

// Past the last code point: "prefix" <= id < "prefix" covers every
// document id starting with the prefix.
const prefixUpperBound = ""

// Repository stores conversations in Firestore: one document per primary
// key under "conversations", one item per secondary key in its "items"
// subcollection.
type Repository struct {
	client *firestore.Client
}

// NewRepository creates a Firestore-backed repository in the given project.
func NewRepository(ctx context.Context, projectID string) (*Repository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore repository")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Repository{client: client}, nil
}

func (r *Repository) Close() error {
	return r.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (r *Repository) itemsCol(primary string) *firestore.CollectionRef {
	return r.client.Collection("conversations").Doc(primary).Collection("items")
}

func (r *Repository) itemDocRef(primary, secondary string) *firestore.DocumentRef {
	return r.itemsCol(primary).Doc(secondary)
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type itemDoc struct {
	Conversation []domain.Record `firestore:"conversation"`
	// ExpiresAt backs a Firestore TTL policy on the collection; until one
	// is configured the field is advisory.
	ExpiresAt *time.Time `firestore:"expires_at,omitempty"`
}

// ─────────────────────────────────────────
// Repository implementation
// ─────────────────────────────────────────

func (r *Repository) Get(ctx context.Context, primary, secondary string) ([]domain.Record, error) {
	snap, err := r.itemDocRef(primary, secondary).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("firestore get: %v: %w", err, domain.ErrStoreUnavailable)
	}

	var doc itemDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore get decode: %v: %w", err, domain.ErrMalformedRecord)
	}
	return doc.Conversation, nil
}

func (r *Repository) Put(ctx context.Context, primary, secondary string, conversation []domain.Record, expiresAt time.Time) error {
	doc := itemDoc{Conversation: conversation}
	if !expiresAt.IsZero() {
		doc.ExpiresAt = &expiresAt
	}

	if _, err := r.itemDocRef(primary, secondary).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore put: %v: %w", err, domain.ErrStoreUnavailable)
	}
	return nil
}

func (r *Repository) QueryByPrefix(ctx context.Context, primary, secondaryPrefix string) ([]domain.Item, error) {
	q := r.itemsCol(primary).
		Where(firestore.DocumentID, ">=", secondaryPrefix).
		Where(firestore.DocumentID, "<", secondaryPrefix+prefixUpperBound)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []domain.Item
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore query: %v: %w", err, domain.ErrStoreUnavailable)
		}

		var doc itemDoc
		if err := snap.DataTo(&doc); err != nil {
			observability.Logger().Error("skipping item with unexpected structure",
				"secondary_key", snap.Ref.ID,
				"error", err)
			continue
		}

		out = append(out, domain.Item{Secondary: snap.Ref.ID, Conversation: doc.Conversation})
	}
	return out, nil
}
