package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/erdincayar/klinik-asistan-sub000/internal/config"
	"github.com/erdincayar/klinik-asistan-sub000/internal/llm"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// offlineReply keeps the pipeline answering when no model is configured:
// every free-text message comes back as a polite ERROR variant.
const offlineReply = `{"type":"ERROR","message":"Asistan şu anda yapay zeka servisine bağlı değil. Komutlar için /yardim yazın."}`

// BuildOracle wires the language model client from config. Bedrock is the
// primary when a model id is set, Gemini the fallback (or the primary when
// Bedrock is absent). Every client is wrapped in the configured timeout.
func BuildOracle(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, observer llm.LatencyObserver, logger *logging.Logger) (llm.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var primary, fallback llm.Client
	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" {
		if awsCfg == nil {
			return nil, fmt.Errorf("bootstrap: aws config required for bedrock")
		}
		primary = llm.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), model)
		logger.Info("oracle: bedrock enabled", "model", model)
	}
	if key := strings.TrimSpace(cfg.GeminiAPIKey); key != "" {
		gemini, err := llm.NewGeminiClient(ctx, key, cfg.GeminiModelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		logger.Info("oracle: gemini enabled", "model", cfg.GeminiModelID)
		if primary == nil {
			primary = gemini
		} else {
			fallback = gemini
		}
	}

	var client llm.Client
	switch {
	case primary == nil:
		logger.Warn("no oracle configured; free-text messages will not be classified")
		return llm.StaticClient{Text: offlineReply}, nil
	case fallback != nil:
		client = llm.NewFallbackClient(primary, fallback, logger)
	default:
		client = primary
	}
	return llm.NewBoundedClient(client, cfg.LLMTimeout, observer), nil
}
