package backend

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kgstore/internal/util"
	"github.com/OFFIS-RIT/kgstore/pkg/ai"
	oai "github.com/OFFIS-RIT/kgstore/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/kgstore/pkg/ai/openai"
)

type AIConfig struct {
	Adapter      string
	ChatURL      string
	ChatKey      string
	ExtractModel string
	AnalystModel string
	ParallelReq  int
}

func AIConfigFromEnv() AIConfig {
	return AIConfig{
		Adapter:      strings.ToLower(util.GetEnv("AI_ADAPTER")),
		ChatURL:      util.GetEnv("AI_CHAT_URL"),
		ChatKey:      util.GetEnv("AI_CHAT_KEY"),
		ExtractModel: util.GetEnvString("AI_EXTRACT_MODEL", "gpt-4o-mini"),
		AnalystModel: util.GetEnvString("AI_ANALYST_MODEL", "gpt-4o-mini"),
		ParallelReq:  util.GetEnvInt("AI_PARALLEL_REQ", 4),
	}
}

// Enabled reports whether a provider is configured. The OpenAI adapter
// needs a key; Ollama runs without one.
func (c AIConfig) Enabled() bool {
	switch c.Adapter {
	case "ollama":
		return true
	case "openai", "":
		return c.ChatKey != ""
	default:
		return false
	}
}

// NewAIClient creates a client for model. It returns nil without error when
// no provider is configured.
func NewAIClient(cfg AIConfig, model string) (ai.GraphAIClient, error) {
	if !cfg.Enabled() {
		if cfg.Adapter != "" && cfg.Adapter != "openai" {
			return nil, fmt.Errorf("unknown AI_ADAPTER %q", cfg.Adapter)
		}
		return nil, nil
	}

	switch cfg.Adapter {
	case "ollama":
		return oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			Model:                 model,
			BaseURL:               cfg.ChatURL,
			ApiKey:                cfg.ChatKey,
			MaxConcurrentRequests: int64(max(cfg.ParallelReq, 1)),
		})
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			Model:      model,
			ChatURL:    cfg.ChatURL,
			ChatKey:    cfg.ChatKey,
			MaxRetries: 3,
		})
	}
}
