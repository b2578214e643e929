package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mparedes/chatstore/internal/domain"
	"github.com/mparedes/chatstore/internal/observability"
)

const defaultCacheTTL = 10 * time.Second

// Service stores per-agent conversations in a Repository and serves a
// cached, chronologically merged view of every agent in a session.
type Service struct {
	repo    domain.Repository
	cache   *aggregateCache
	now     func() time.Time
	itemTTL time.Duration
}

type Options struct {
	// CacheTTL bounds how long a merged session view may be served
	// without consulting the store. Defaults to 10s.
	CacheTTL time.Duration

	// ItemTTL, when positive, attaches an absolute expiry to every
	// stored item so the backing store can discard idle conversations.
	ItemTTL time.Duration

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

func NewService(repo domain.Repository, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	return &Service{
		repo:    repo,
		cache:   newAggregateCache(opts.CacheTTL, opts.Clock),
		now:     opts.Clock,
		itemTTL: opts.ItemTTL,
	}
}

// sortKey builds the secondary key "session#agent". The "session#" prefix
// groups every agent's conversation for one session under a single
// prefix query.
func sortKey(sessionID, agentID string) string {
	return sessionID + "#" + agentID
}

func cacheKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

func agentFromSortKey(secondary string) string {
	parts := strings.SplitN(secondary, "#", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func (s *Service) expiresAt() time.Time {
	if s.itemTTL <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.itemTTL)
}

// SaveMessage appends one message to the agent's conversation. A message
// carrying no timestamp is stamped with the current time; a pre-stamped
// one (replayed or imported history) keeps its own. A message whose role
// matches the last stored turn is suppressed: the stored conversation is
// returned unchanged and nothing is written. Otherwise the conversation
// is trimmed to maxHistorySize (nil = unlimited, oldest entries dropped
// first), written in full, and the merged-view cache for the session is
// invalidated.
func (s *Service) SaveMessage(ctx context.Context, userID, sessionID, agentID string, msg domain.TimestampedMessage, maxHistorySize *int) ([]domain.Message, error) {
	log := observability.LoggerFromContext(ctx).With(
		"user_id", userID,
		"session_id", sessionID,
		"agent_id", agentID,
	)

	existing, err := s.FetchConversationWithTimestamps(ctx, userID, sessionID, agentID)
	if err != nil {
		return nil, err
	}

	if shouldSuppress(existing, msg.Message) {
		log.Debug("consecutive same-role message suppressed", "role", msg.Role)
		return domain.StripTimestamps(existing), nil
	}

	if msg.Timestamp <= 0 {
		msg.Timestamp = s.now().UnixMilli()
	}
	conv := trimConversation(append(existing, msg), maxHistorySize)

	if err := s.repo.Put(ctx, userID, sortKey(sessionID, agentID), domain.EncodeConversation(conv), s.expiresAt()); err != nil {
		log.Error("failed to write conversation", "operation", "put", "error", err)
		return nil, err
	}

	s.cache.invalidate(cacheKey(userID, sessionID))

	return domain.StripTimestamps(conv), nil
}

// SaveMessages appends a whole batch in one write. Messages carrying no
// timestamp are stamped with the current time; pre-stamped ones keep
// their own, so imported history retains its chronology. The batch is
// appended as-is: no duplicate-turn suppression runs here, callers own
// the shape of a bulk import. Unlike SaveMessage this path does not
// invalidate the merged-view cache, so FetchAllConversations may serve a
// view up to one cache TTL old after a bulk write.
func (s *Service) SaveMessages(ctx context.Context, userID, sessionID, agentID string, msgs []domain.TimestampedMessage, maxHistorySize *int) ([]domain.Message, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("empty message batch: %w", domain.ErrInvalidArgument)
	}

	log := observability.LoggerFromContext(ctx).With(
		"user_id", userID,
		"session_id", sessionID,
		"agent_id", agentID,
	)

	existing, err := s.FetchConversationWithTimestamps(ctx, userID, sessionID, agentID)
	if err != nil {
		return nil, err
	}

	now := s.now().UnixMilli()
	conv := existing
	for _, m := range msgs {
		if m.Timestamp <= 0 {
			m.Timestamp = now
		}
		conv = append(conv, m)
	}
	conv = trimConversation(conv, maxHistorySize)

	if err := s.repo.Put(ctx, userID, sortKey(sessionID, agentID), domain.EncodeConversation(conv), s.expiresAt()); err != nil {
		log.Error("failed to write conversation batch", "operation", "put", "batch_size", len(msgs), "error", err)
		return nil, err
	}

	return domain.StripTimestamps(conv), nil
}

// FetchConversation returns one agent's conversation with timestamps
// stripped. A missing item yields an empty result, not an error.
func (s *Service) FetchConversation(ctx context.Context, userID, sessionID, agentID string) ([]domain.Message, error) {
	conv, err := s.FetchConversationWithTimestamps(ctx, userID, sessionID, agentID)
	if err != nil {
		return nil, err
	}
	return domain.StripTimestamps(conv), nil
}

// FetchConversationWithTimestamps is the same read with ordering metadata
// retained, for merge use.
func (s *Service) FetchConversationWithTimestamps(ctx context.Context, userID, sessionID, agentID string) ([]domain.TimestampedMessage, error) {
	log := observability.LoggerFromContext(ctx).With(
		"user_id", userID,
		"session_id", sessionID,
		"agent_id", agentID,
	)

	records, err := s.repo.Get(ctx, userID, sortKey(sessionID, agentID))
	if err != nil {
		log.Error("failed to read conversation", "operation", "get", "error", err)
		return nil, err
	}

	conv, err := domain.DecodeConversation(records)
	if err != nil {
		log.Error("failed to decode conversation", "operation", "get", "error", err)
		return nil, err
	}
	return conv, nil
}

// FetchAllConversations returns every agent's turns for the session,
// interleaved by timestamp, with assistant turns labeled "[agent] " so
// the merged transcript stays attributable. Results are served from the
// cache while fresh; on a miss the store is queried once and the result,
// including an empty one, is cached. An item one agent wrote that fails
// to decode is skipped, not fatal to the merge. A store error leaves the
// cache untouched so the next call retries the store.
func (s *Service) FetchAllConversations(ctx context.Context, userID, sessionID string) ([]domain.Message, error) {
	key := cacheKey(userID, sessionID)
	if data, ok := s.cache.get(key); ok {
		return data, nil
	}

	log := observability.LoggerFromContext(ctx).With(
		"user_id", userID,
		"session_id", sessionID,
	)

	items, err := s.repo.QueryByPrefix(ctx, userID, sessionID+"#")
	if err != nil {
		log.Error("failed to query session conversations", "operation", "query_by_prefix", "error", err)
		return nil, err
	}

	total := 0
	for _, it := range items {
		total += len(it.Conversation)
	}
	merged := make([]domain.TimestampedMessage, 0, total)

	for _, it := range items {
		agentID := agentFromSortKey(it.Secondary)

		conv, err := domain.DecodeConversation(it.Conversation)
		if err != nil {
			log.Error("skipping undecodable conversation", "secondary_key", it.Secondary, "error", err)
			continue
		}
		for _, m := range conv {
			merged = append(merged, tagAssistantTurn(m, agentID))
		}
	}

	// Millisecond timestamps collide across agents; stable keeps input
	// order for ties.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})

	result := domain.StripTimestamps(merged)
	s.cache.put(key, result)
	return result, nil
}

// tagAssistantTurn prefixes the first text block of an assistant turn
// with the producing agent's id. A turn with only structured blocks gets
// a label block prepended instead. Content is copied, never mutated in
// place; stored values are shared.
func tagAssistantTurn(m domain.TimestampedMessage, agentID string) domain.TimestampedMessage {
	if m.Role != domain.RoleAssistant || len(m.Content) == 0 {
		return m
	}

	content := make([]domain.ContentBlock, len(m.Content))
	copy(content, m.Content)

	for i := range content {
		if content[i].Text != "" {
			content[i].Text = "[" + agentID + "] " + content[i].Text
			m.Content = content
			return m
		}
	}

	m.Content = append([]domain.ContentBlock{{Text: "[" + agentID + "]"}}, content...)
	return m
}
