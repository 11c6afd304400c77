package conversation

import (
	"strings"
	"time"

	"github.com/wolfman30/medassist/internal/apperr"
)

// AnonymousEmail is stored on messages sent without a login.
const AnonymousEmail = "not logged"

// Message is one question/answer pair of a chat session.
type Message struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	UserEmail    string    `json:"user_email"`
	UserQuestion string    `json:"user_question"`
	BotResponse  string    `json:"bot_response"`
	CreatedAt    time.Time `json:"created_at"`
}

// SendRequest is the body of POST /chat/send.
type SendRequest struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

func (r *SendRequest) validate() error {
	r.SessionID = strings.TrimSpace(r.SessionID)
	if r.SessionID == "" || strings.TrimSpace(r.Content) == "" {
		return apperr.E(apperr.InvalidInput, "session_id and content are required")
	}
	return nil
}

// Reply is the assistant answer to a sent message.
type Reply struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	Redirect   bool   `json:"redirect,omitempty"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// HistoryEntry is one side of an exchange as shown to the client.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Exchange is a question with its answer inside a medical-history session.
type Exchange struct {
	Question  string    `json:"question"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// MedicalHistorySession groups a user's exchanges by session.
type MedicalHistorySession struct {
	SessionID     string     `json:"session_id"`
	StartDate     time.Time  `json:"start_date"`
	ContextTitle  string     `json:"context_title"`
	Conversations []Exchange `json:"conversations"`
}

// SessionSummary is one entry of GET /chat/sessions.
type SessionSummary struct {
	SessionID       string    `json:"session_id"`
	LastMessageDate time.Time `json:"last_message_date"`
	MessageCount    int       `json:"message_count"`
	FirstQuestion   string    `json:"first_question"`
	ContextTitle    string    `json:"context_title"`
}
