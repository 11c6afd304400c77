package conversation

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/medassist/internal/apperr"
	"github.com/wolfman30/medassist/internal/triage"
	"github.com/wolfman30/medassist/pkg/logging"
)

// maxHistoryTurns bounds the turns replayed to the model.
const maxHistoryTurns = 20

var chatTracer = otel.Tracer("medassist.internal.conversation")

// Service answers chat messages and reads back a user's conversations.
type Service struct {
	store  MessageStore
	cache  *HistoryCache
	llm    LLMClient
	logger *logging.Logger
	now    func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithHistoryCache enables the Redis turn cache.
func WithHistoryCache(cache *HistoryCache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store MessageStore, llm LLMClient, logger *logging.Logger, opts ...ServiceOption) *Service {
	if store == nil {
		panic("conversation: message store required")
	}
	if llm == nil {
		llm = StubLLMClient{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{store: store, llm: llm, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init opens a new session for email, which may be empty for guests.
func (s *Service) Init(email string) (sessionID, userEmail string) {
	return uuid.New().String(), emailOrAnonymous(email)
}

// Send stores the user's message with the assistant's answer and returns the answer.
// A model failure yields the fallback reply rather than an error.
func (s *Service) Send(ctx context.Context, req SendRequest, email string) (*Reply, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	ctx, span := chatTracer.Start(ctx, "conversation.send")
	defer span.End()
	span.SetAttributes(attribute.String("chat.session_id", req.SessionID))

	content := strings.TrimSpace(req.Content)
	msg := &Message{
		SessionID:    req.SessionID,
		UserEmail:    emailOrAnonymous(email),
		UserQuestion: content,
		CreatedAt:    s.now().UTC(),
	}

	if strings.ToLower(content) == bookingPhrase {
		msg.BotResponse = bookingReply
		if err := s.store.Save(ctx, msg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return &Reply{Role: ChatRoleAssistant, Content: bookingReply, Redirect: true, RedirectTo: bookingRedirect}, nil
	}

	history := s.loadHistory(ctx, req.SessionID)
	history = append(history, ChatMessage{Role: ChatRoleUser, Content: content})

	answer := fallbackReply
	resp, err := s.llm.Complete(ctx, LLMRequest{
		System:      []string{systemPrompt},
		Messages:    history,
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
		TopP:        replyTopP,
	})
	switch {
	case err != nil:
		span.RecordError(err)
		s.logger.Warn("chat completion failed", "session_id", req.SessionID, "error", err)
	case strings.TrimSpace(resp.Text) == "":
		s.logger.Warn("chat completion returned no text", "session_id", req.SessionID)
	default:
		answer = strings.TrimSpace(resp.Text)
	}

	msg.BotResponse = answer
	if err := s.store.Save(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	history = append(history, ChatMessage{Role: ChatRoleAssistant, Content: answer})
	if err := s.cache.Save(ctx, req.SessionID, trimHistory(history)); err != nil {
		s.logger.Warn("chat history cache write failed", "session_id", req.SessionID, "error", err)
	}
	return &Reply{Role: ChatRoleAssistant, Content: answer}, nil
}

func (s *Service) loadHistory(ctx context.Context, sessionID string) []ChatMessage {
	cached, ok, err := s.cache.Load(ctx, sessionID)
	if err != nil {
		s.logger.Warn("chat history cache read failed", "session_id", sessionID, "error", err)
	}
	if ok {
		return trimHistory(cached)
	}
	msgs, err := s.store.ListBySession(ctx, sessionID)
	if err != nil {
		s.logger.Warn("chat history load failed", "session_id", sessionID, "error", err)
		return nil
	}
	history := make([]ChatMessage, 0, len(msgs)*2)
	for _, m := range msgs {
		history = append(history,
			ChatMessage{Role: ChatRoleUser, Content: m.UserQuestion},
			ChatMessage{Role: ChatRoleAssistant, Content: m.BotResponse},
		)
	}
	return trimHistory(history)
}

func trimHistory(h []ChatMessage) []ChatMessage {
	if len(h) <= maxHistoryTurns {
		return h
	}
	return h[len(h)-maxHistoryTurns:]
}

// History returns the session's messages as alternating user and assistant
// entries ordered by time. Answers are stamped one second after their question.
func (s *Service) History(ctx context.Context, sessionID string) ([]HistoryEntry, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperr.E(apperr.InvalidInput, "session id is required")
	}
	msgs, err := s.store.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(msgs)*2)
	for _, m := range msgs {
		entries = append(entries,
			HistoryEntry{ID: m.ID, Role: ChatRoleUser, Content: m.UserQuestion, Timestamp: m.CreatedAt},
			HistoryEntry{ID: m.ID + "-response", Role: ChatRoleAssistant, Content: m.BotResponse, Timestamp: m.CreatedAt.Add(time.Second)},
		)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	return entries, nil
}

// MedicalHistory groups the user's exchanges by session, oldest session first.
func (s *Service) MedicalHistory(ctx context.Context, email string) ([]MedicalHistorySession, error) {
	groups, err := s.sessionsFor(ctx, email)
	if err != nil {
		return nil, err
	}
	out := make([]MedicalHistorySession, 0, len(groups))
	for _, g := range groups {
		session := MedicalHistorySession{
			SessionID:    g.id,
			StartDate:    g.messages[0].CreatedAt,
			ContextTitle: triage.SessionTitle(g.questions()),
		}
		for _, m := range g.messages {
			session.Conversations = append(session.Conversations, Exchange{
				Question:  m.UserQuestion,
				Response:  m.BotResponse,
				Timestamp: m.CreatedAt,
			})
		}
		out = append(out, session)
	}
	return out, nil
}

// Sessions summarises each of the user's sessions, most recent first.
func (s *Service) Sessions(ctx context.Context, email string) ([]SessionSummary, error) {
	groups, err := s.sessionsFor(ctx, email)
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(groups))
	for _, g := range groups {
		last := g.messages[0].CreatedAt
		for _, m := range g.messages[1:] {
			if m.CreatedAt.After(last) {
				last = m.CreatedAt
			}
		}
		out = append(out, SessionSummary{
			SessionID:       g.id,
			LastMessageDate: last,
			MessageCount:    len(g.messages),
			FirstQuestion:   g.messages[0].UserQuestion,
			ContextTitle:    triage.SessionTitle(g.questions()),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastMessageDate.After(out[j].LastMessageDate) })
	return out, nil
}

type sessionGroup struct {
	id       string
	messages []*Message
}

func (g sessionGroup) questions() []string {
	qs := make([]string, len(g.messages))
	for i, m := range g.messages {
		qs[i] = m.UserQuestion
	}
	return qs
}

// sessionsFor groups the user's messages by session in order of first appearance.
func (s *Service) sessionsFor(ctx context.Context, email string) ([]sessionGroup, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || email == AnonymousEmail {
		return nil, apperr.E(apperr.Unauthenticated, "authentication required")
	}
	msgs, err := s.store.ListByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int)
	var groups []sessionGroup
	for _, m := range msgs {
		i, ok := index[m.SessionID]
		if !ok {
			i = len(groups)
			index[m.SessionID] = i
			groups = append(groups, sessionGroup{id: m.SessionID})
		}
		groups[i].messages = append(groups[i].messages, m)
	}
	return groups, nil
}

func emailOrAnonymous(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return AnonymousEmail
	}
	return email
}
