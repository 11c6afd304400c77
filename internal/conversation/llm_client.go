package conversation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/medassist/internal/observability/metrics"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

var llmTracer = otel.Tracer("medassist.internal.conversation.llm")

// ChatMessage is one turn sent to the model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// StubLLMClient answers with a fixed reply when no provider is configured.
type StubLLMClient struct {
	Reply string
}

func (c StubLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	reply := c.Reply
	if reply == "" {
		reply = stubReply
	}
	return LLMResponse{Text: reply, StopReason: "stub"}, nil
}

// instrumentedClient records a span and the latency histogram per call.
type instrumentedClient struct {
	provider string
	next     LLMClient
	metrics  *metrics.Metrics
}

// Instrument wraps client so each completion is traced and timed under provider.
func Instrument(provider string, client LLMClient, m *metrics.Metrics) LLMClient {
	if client == nil {
		return nil
	}
	return &instrumentedClient{provider: provider, next: client, metrics: m}
}

func (c *instrumentedClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	ctx, span := llmTracer.Start(ctx, "conversation.llm.complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.provider", c.provider), attribute.Int("llm.messages", len(req.Messages)))

	start := time.Now()
	resp, err := c.next.Complete(ctx, req)
	c.metrics.ObserveLLMLatency(c.provider, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return LLMResponse{}, err
	}
	span.SetAttributes(attribute.Int("llm.output_tokens", int(resp.Usage.OutputTokens)))
	return resp, nil
}
