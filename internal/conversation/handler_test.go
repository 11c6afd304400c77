package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medassist/internal/appointments"
	"github.com/wolfman30/medassist/internal/apperr"
	"github.com/wolfman30/medassist/internal/http/respond"
	"github.com/wolfman30/medassist/internal/identity"
	"github.com/wolfman30/medassist/internal/triage"
)

type fakeBookings struct {
	actor *identity.Principal
	req   appointments.BookingRequest
}

func (f *fakeBookings) RequestBooking(ctx context.Context, actor *identity.Principal, req appointments.BookingRequest) (*appointments.Appointment, error) {
	if actor == nil {
		return nil, apperr.E(apperr.Unauthenticated, "authentication required")
	}
	f.actor, f.req = actor, req
	return &appointments.Appointment{ID: "a1", Status: appointments.StatusPending}, nil
}

func newChatRouter(t *testing.T, principal *identity.Principal) (http.Handler, *fakeBookings) {
	t.Helper()
	svc, _, _ := newTestService(t, &scriptedLLM{reply: "ألف سلامة"})
	bookings := &fakeBookings{}
	h := NewHandler(svc, bookings, respond.New(nil, false))

	r := chi.NewRouter()
	if principal != nil {
		p := *principal
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(identity.WithPrincipal(req.Context(), p)))
			})
		})
	}
	r.Route("/chat", func(r chi.Router) {
		h.Routes(r)
		h.AuthRoutes(r)
	})
	return r, bookings
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

func TestHandlerSendAndHistory(t *testing.T) {
	h, _ := newChatRouter(t, nil)

	w, body := doJSON(t, h, http.MethodPost, "/chat/send", `{"session_id":"s1","content":"عندي صداع"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	msg := body["message"].(map[string]any)
	assert.Equal(t, "ألف سلامة", msg["content"])

	w, body = doJSON(t, h, http.MethodGet, "/chat/history/s1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["messages"], 2)
}

func TestHandlerSendRedirect(t *testing.T) {
	h, _ := newChatRouter(t, nil)
	_, body := doJSON(t, h, http.MethodPost, "/chat/send", `{"session_id":"s1","content":"اه احجزلي"}`)
	assert.Equal(t, true, body["redirect"])
	assert.Equal(t, "/booking", body["redirect_to"])
}

func TestHandlerClassify(t *testing.T) {
	h, _ := newChatRouter(t, nil)

	w, body := doJSON(t, h, http.MethodPost, "/chat/classify", `{"messages":["مرحبا"]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, triage.DefaultSpecialty, body["specialty"])

	w, _ = doJSON(t, h, http.MethodPost, "/chat/classify", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerInitUsesPrincipalEmail(t *testing.T) {
	h, _ := newChatRouter(t, &identity.Principal{UserID: "u1", Email: "mona@example.com"})
	_, body := doJSON(t, h, http.MethodPost, "/chat/init", "")
	assert.Equal(t, "mona@example.com", body["user_email"])
	assert.NotEmpty(t, body["session_id"])
}

func TestHandlerSessionsRequiresUser(t *testing.T) {
	h, _ := newChatRouter(t, nil)
	w, body := doJSON(t, h, http.MethodGet, "/chat/sessions", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestHandlerBookingSMS(t *testing.T) {
	h, bookings := newChatRouter(t, &identity.Principal{UserID: "u1", Email: "mona@example.com"})
	w, body := doJSON(t, h, http.MethodPost, "/chat/booking-sms",
		`{"name":"Mona","phone":"01012345678","specialty":"عظام","message":"وجع في الركبة"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])
	require.NotNil(t, bookings.actor)
	assert.Equal(t, "u1", bookings.actor.UserID)
	assert.Equal(t, "عظام", bookings.req.Specialty)
}
