package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/medassist/internal/phone"
	"github.com/wolfman30/medassist/pkg/logging"
)

var twilioSendTracer = otel.Tracer("medassist.internal.notify.twilio_send")

const (
	twilioAPIBase  = "https://api.twilio.com/2010-04-01"
	twilioAttempts = 3
	smsMaxRunes    = 140
)

// SMSSender delivers one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// TwilioSender posts SMS messages using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	sleep      func(time.Duration)
	logger     *logging.Logger
}

func NewTwilioSender(accountSID, authToken, from string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		sleep:      time.Sleep,
		logger:     logger,
	}
}

// SendSMS normalizes the destination to +20 form, trims the body to the SMS
// limit and retries transient failures.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	if s.accountSID == "" || s.authToken == "" {
		return errors.New("notify: twilio credentials missing")
	}
	if s.from == "" {
		return errors.New("notify: twilio from number required")
	}
	to = phone.Normalize(to)
	if to == "" {
		return errors.New("notify: sms recipient required")
	}
	body = truncateSMS(body)
	if strings.TrimSpace(body) == "" {
		return errors.New("notify: sms body required")
	}

	ctx, span := twilioSendTracer.Start(ctx, "notify.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("medassist.to", phone.Obscure(to)))

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", s.from)
	payload.Set("Body", body)
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimRight(s.baseURL, "/"), s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= twilioAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				s.logger.Info("twilio sms sent", "to", phone.Obscure(to), "attempt", attempt)
				return nil
			}
			lastErr = fmt.Errorf("twilio send failed: %s", formatTwilioError(resp.StatusCode, respBody))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				break
			}
		}
		if attempt < twilioAttempts {
			s.sleep(time.Duration(200+rand.Intn(300)) * time.Millisecond)
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return lastErr
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}

// SimulatedSender logs messages instead of sending them.
type SimulatedSender struct {
	logger *logging.Logger
}

func NewSimulatedSender(logger *logging.Logger) *SimulatedSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SimulatedSender{logger: logger}
}

func (s *SimulatedSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info("simulated sms", "to", phone.Obscure(phone.Normalize(to)), "body", truncateSMS(body))
	return nil
}

// NewSMSSender picks Twilio when credentials are present and simulation is off.
func NewSMSSender(accountSID, authToken, from string, simulate bool, logger *logging.Logger) SMSSender {
	if simulate || accountSID == "" || authToken == "" || from == "" {
		return NewSimulatedSender(logger)
	}
	return NewTwilioSender(accountSID, authToken, from, logger)
}

func truncateSMS(body string) string {
	r := []rune(body)
	if len(r) <= smsMaxRunes {
		return body
	}
	return string(r[:smsMaxRunes-3]) + "..."
}
