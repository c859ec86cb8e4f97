// Package provider builds the configured ai.Client from the environment.
package provider

import (
	"fmt"
	"time"

	"github.com/rd-agent/backend/internal/util"
	"github.com/rd-agent/backend/pkg/ai"
	oai "github.com/rd-agent/backend/pkg/ai/ollama"
	gai "github.com/rd-agent/backend/pkg/ai/openai"
)

// FromEnv returns an Ollama client when AI_ADAPTER=ollama and an
// OpenAI-compatible client otherwise.
func FromEnv() (ai.Client, error) {
	timeout := util.GetEnvSeconds("AI_TIMEOUT_SEC", 2*time.Minute)
	parallel := int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15))
	embedDim := util.GetEnvInt("AI_EMBED_DIM", 1536)

	switch adapter := util.GetEnvString("AI_ADAPTER", "openai"); adapter {
	case "ollama":
		client, err := oai.NewOllamaClient(oai.NewOllamaClientParams{
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			EmbeddingDim:   embedDim,

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			Timeout:               timeout,
			MaxConcurrentRequests: parallel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return client, nil
	case "openai":
		return gai.NewOpenAIClient(gai.NewOpenAIClientParams{
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			EmbeddingDim:   embedDim,

			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),
			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),

			Timeout:               timeout,
			MaxConcurrentRequests: parallel,
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", adapter)
	}
}
