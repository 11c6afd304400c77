package bootstrap

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/medassist/internal/config"
	"github.com/wolfman30/medassist/internal/conversation"
	"github.com/wolfman30/medassist/internal/observability/metrics"
	"github.com/wolfman30/medassist/pkg/logging"
)

// BuildLLMClient wires Gemini as the primary model and Bedrock as the
// fallback. Whatever is not configured is skipped; with neither the stub
// client answers. awsCfg may be nil.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, m *metrics.Metrics, logger *logging.Logger) conversation.LLMClient {
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var primary, fallback conversation.LLMClient
	if key := strings.TrimSpace(cfg.GeminiAPIKey); key != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, key, cfg.GeminiModel)
		if err != nil {
			logger.Warn("gemini client unavailable", "error", err)
		} else {
			primary = conversation.Instrument("gemini", gemini, m)
		}
	}
	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" && awsCfg != nil {
		bedrock := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg), model)
		fallback = conversation.Instrument("bedrock", bedrock, m)
	}

	switch {
	case primary != nil && fallback != nil:
		logger.Info("chat model configured", "primary", "gemini", "fallback", "bedrock")
		return conversation.NewFallbackLLMClient(primary, fallback, logger)
	case primary != nil:
		logger.Info("chat model configured", "primary", "gemini")
		return primary
	case fallback != nil:
		logger.Info("chat model configured", "primary", "bedrock")
		return fallback
	default:
		logger.Warn("no chat model configured; using stub replies")
		return conversation.StubLLMClient{}
	}
}
