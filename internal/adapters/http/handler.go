package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mparedes/chatstore/internal/app/history"
	"github.com/mparedes/chatstore/internal/domain"
)

type Server struct {
	svc               *history.Service
	defaultMaxHistory int
}

// NewServer builds the REST surface over the history service.
// defaultMaxHistory is the trim applied when a request carries no
// max_history_size parameter; zero means unlimited.
func NewServer(svc *history.Service, defaultMaxHistory int) http.Handler {
	s := &Server{svc: svc, defaultMaxHistory: defaultMaxHistory}
	mux := http.NewServeMux()

	// /conversations/{user}/{session}                        → GET: merged session view
	// /conversations/{user}/{session}/{agent}                → GET: one agent's conversation
	// /conversations/{user}/{session}/{agent}/messages       → POST: save one message
	// /conversations/{user}/{session}/{agent}/messages:batch → POST: save a batch
	mux.HandleFunc("/conversations/", s.handleConversations)

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type contentBlockDTO struct {
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

type messageDTO struct {
	Role    string            `json:"role"`
	Content []contentBlockDTO `json:"content,omitempty"`
	// Text is shorthand for a single text block.
	Text string `json:"text,omitempty"`
	// Timestamp, when set on a save, preserves replayed history's
	// chronology; absent means "stamp with the current time".
	Timestamp int64 `json:"timestamp,omitempty"`
}

type saveMessagesRequest struct {
	Messages []messageDTO `json:"messages"`
}

type conversationResponse struct {
	Messages []messageDTO `json:"messages"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/conversations/")
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if p == "" {
			http.NotFound(w, r)
			return
		}
	}

	switch len(parts) {
	case 2:
		userID, sessionID := parts[0], parts[1]
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleFetchAll(w, r, userID, sessionID)
	case 3:
		userID, sessionID, agentID := parts[0], parts[1], parts[2]
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleFetch(w, r, userID, sessionID, agentID)
	case 4:
		userID, sessionID, agentID := parts[0], parts[1], parts[2]
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		switch parts[3] {
		case "messages":
			s.handleSave(w, r, userID, sessionID, agentID)
		case "messages:batch":
			s.handleSaveBatch(w, r, userID, sessionID, agentID)
		default:
			http.NotFound(w, r)
		}
	default:
		http.NotFound(w, r)
	}
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, userID, sessionID, agentID string) {
	var req messageDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	msg, ok := toDomainMessage(req)
	if !ok {
		badRequest(w, "message needs a known role and either text or content")
		return
	}

	maxSize, ok := s.maxHistorySize(r)
	if !ok {
		badRequest(w, "max_history_size must be an integer")
		return
	}

	msgs, err := s.svc.SaveMessage(r.Context(), userID, sessionID, agentID, msg, maxSize)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conversationResponse{Messages: toMessageDTOs(msgs)})
}

func (s *Server) handleSaveBatch(w http.ResponseWriter, r *http.Request, userID, sessionID, agentID string) {
	var req saveMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	msgs := make([]domain.TimestampedMessage, 0, len(req.Messages))
	for _, dto := range req.Messages {
		msg, ok := toDomainMessage(dto)
		if !ok {
			badRequest(w, "every message needs a known role and either text or content")
			return
		}
		msgs = append(msgs, msg)
	}

	maxSize, ok := s.maxHistorySize(r)
	if !ok {
		badRequest(w, "max_history_size must be an integer")
		return
	}

	saved, err := s.svc.SaveMessages(r.Context(), userID, sessionID, agentID, msgs, maxSize)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conversationResponse{Messages: toMessageDTOs(saved)})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request, userID, sessionID, agentID string) {
	if r.URL.Query().Get("with_timestamps") == "1" {
		conv, err := s.svc.FetchConversationWithTimestamps(r.Context(), userID, sessionID, agentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conversationResponse{Messages: toTimestampedDTOs(conv)})
		return
	}

	msgs, err := s.svc.FetchConversation(r.Context(), userID, sessionID, agentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversationResponse{Messages: toMessageDTOs(msgs)})
}

func (s *Server) handleFetchAll(w http.ResponseWriter, r *http.Request, userID, sessionID string) {
	msgs, err := s.svc.FetchAllConversations(r.Context(), userID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversationResponse{Messages: toMessageDTOs(msgs)})
}

// ─────────────────────────────────────────────
// Conversion Helpers
// ─────────────────────────────────────────────

func (s *Server) maxHistorySize(r *http.Request) (*int, bool) {
	if v := r.URL.Query().Get("max_history_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, false
		}
		return &n, true
	}
	if s.defaultMaxHistory > 0 {
		n := s.defaultMaxHistory
		return &n, true
	}
	return nil, true
}

func toDomainMessage(dto messageDTO) (domain.TimestampedMessage, bool) {
	role := domain.Role(dto.Role)
	if !role.Known() {
		return domain.TimestampedMessage{}, false
	}

	if len(dto.Content) == 0 {
		if dto.Text == "" {
			return domain.TimestampedMessage{}, false
		}
		return domain.TimestampedMessage{
			Message:   domain.NewTextMessage(role, dto.Text),
			Timestamp: dto.Timestamp,
		}, true
	}

	content := make([]domain.ContentBlock, 0, len(dto.Content))
	for _, b := range dto.Content {
		content = append(content, domain.ContentBlock{Text: b.Text, Data: b.Data})
	}
	return domain.TimestampedMessage{
		Message:   domain.Message{Role: role, Content: content},
		Timestamp: dto.Timestamp,
	}, true
}

func toMessageDTO(m domain.Message) messageDTO {
	content := make([]contentBlockDTO, 0, len(m.Content))
	for _, b := range m.Content {
		content = append(content, contentBlockDTO{Text: b.Text, Data: b.Data})
	}
	return messageDTO{Role: string(m.Role), Content: content}
}

func toMessageDTOs(msgs []domain.Message) []messageDTO {
	out := make([]messageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageDTO(m))
	}
	return out
}

func toTimestampedDTOs(conv []domain.TimestampedMessage) []messageDTO {
	out := make([]messageDTO, 0, len(conv))
	for _, m := range conv {
		dto := toMessageDTO(m.Message)
		dto.Timestamp = m.Timestamp
		out = append(out, dto)
	}
	return out
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrMalformedRecord):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "stored conversation is malformed"})
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage backend unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
