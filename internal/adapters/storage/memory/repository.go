package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mparedes/chatstore/internal/domain"
)

type storedItem struct {
	conversation []domain.Record
	expiresAt    time.Time
}

// Repository is an in-memory implementation of domain.Repository for
// local runs and tests.
type Repository struct {
	mu    sync.RWMutex
	items map[string]map[string]storedItem // primary -> secondary -> item
	now   func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		items: make(map[string]map[string]storedItem),
		now:   time.Now,
	}
}

func (r *Repository) expired(it storedItem) bool {
	return !it.expiresAt.IsZero() && r.now().After(it.expiresAt)
}

func (r *Repository) Get(_ context.Context, primary, secondary string) ([]domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[primary][secondary]
	if !ok || r.expired(it) {
		return nil, nil
	}

	conversation := make([]domain.Record, len(it.conversation))
	copy(conversation, it.conversation)
	return conversation, nil
}

func (r *Repository) Put(_ context.Context, primary, secondary string, conversation []domain.Record, expiresAt time.Time) error {
	stored := make([]domain.Record, len(conversation))
	copy(stored, conversation)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.items[primary] == nil {
		r.items[primary] = make(map[string]storedItem)
	}
	r.items[primary][secondary] = storedItem{conversation: stored, expiresAt: expiresAt}
	return nil
}

// QueryByPrefix returns matching items in map-iteration order, which is
// deliberately unspecified; callers sort by timestamp themselves.
func (r *Repository) QueryByPrefix(_ context.Context, primary, secondaryPrefix string) ([]domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Item
	for secondary, it := range r.items[primary] {
		if !strings.HasPrefix(secondary, secondaryPrefix) || r.expired(it) {
			continue
		}
		conversation := make([]domain.Record, len(it.conversation))
		copy(conversation, it.conversation)
		out = append(out, domain.Item{Secondary: secondary, Conversation: conversation})
	}
	return out, nil
}
