package webchat

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/medassist/internal/conversation"
	"github.com/wolfman30/medassist/internal/identity"
	"github.com/wolfman30/medassist/pkg/logging"
)

// Chat is the conversation surface the socket drives.
type Chat interface {
	Init(email string) (sessionID, userEmail string)
	Send(ctx context.Context, req conversation.SendRequest, email string) (*conversation.Reply, error)
	History(ctx context.Context, sessionID string) ([]conversation.HistoryEntry, error)
}

// Handler serves the live chat socket.
type Handler struct {
	chat   Chat
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*websocket.Conn
}

// InboundMessage is what the client sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what the client receives.
type OutboundMessage struct {
	Type       string                      `json:"type"` // "session", "history", "typing", "message", "pong", "error"
	Text       string                      `json:"text,omitempty"`
	Role       string                      `json:"role,omitempty"`
	SessionID  string                      `json:"session_id,omitempty"`
	Timestamp  string                      `json:"timestamp,omitempty"`
	RedirectTo string                      `json:"redirect_to,omitempty"`
	Messages   []conversation.HistoryEntry `json:"messages,omitempty"`
}

func NewHandler(chat Chat, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		chat:     chat,
		logger:   logger,
		sessions: make(map[string]*websocket.Conn),
	}
}

// HandleWebSocket upgrades GET /chat/ws. ?session= resumes an existing session.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	// The server's write timeout would otherwise close long sessions.
	_ = conn.SetDeadline(time.Time{})
	ctx := r.Context()
	var email string
	if p, ok := identity.PrincipalFrom(ctx); ok {
		email = p.Email
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID, _ = h.chat.Init(email)
	} else if entries, err := h.chat.History(ctx, sessionID); err == nil && len(entries) > 0 {
		h.send(conn, OutboundMessage{Type: "history", SessionID: sessionID, Messages: entries})
	}
	h.send(conn, OutboundMessage{Type: "session", SessionID: sessionID})

	h.mu.Lock()
	h.sessions[sessionID] = conn
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[sessionID] == conn {
			delete(h.sessions, sessionID)
		}
		h.mu.Unlock()
	}()

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}
		if msg.Type == "ping" {
			h.send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}
		h.processMessage(ctx, conn, sessionID, email, msg.Text)
	}
}

func (h *Handler) processMessage(ctx context.Context, conn *websocket.Conn, sessionID, email, text string) {
	h.send(conn, OutboundMessage{Type: "typing"})

	reply, err := h.chat.Send(ctx, conversation.SendRequest{SessionID: sessionID, Content: text}, email)
	if err != nil {
		h.logger.Error("webchat: send failed", "session_id", sessionID, "error", err)
		h.send(conn, OutboundMessage{Type: "error", Text: "عذراً، حدث خطأ. يرجى المحاولة مرة أخرى."})
		return
	}
	h.send(conn, OutboundMessage{
		Type:       "message",
		Role:       reply.Role,
		Text:       reply.Content,
		SessionID:  sessionID,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RedirectTo: reply.RedirectTo,
	})
}

func (h *Handler) send(conn *websocket.Conn, msg OutboundMessage) {
	if err := websocket.JSON.Send(conn, msg); err != nil {
		h.logger.Debug("webchat: write failed", "error", err)
	}
}

// ActiveSessions reports how many sockets are open.
func (h *Handler) ActiveSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
