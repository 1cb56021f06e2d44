package analyst

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"

	"github.com/finsightlab/finsight/internal/config"
)

// NewChatModel builds the chat model from config. The default backend is
// Google's OpenAI-compatible Gemini endpoint, so the same client works
// for any OpenAI-compatible provider by changing backend_url and
// llm_model.
func NewChatModel(ctx context.Context, cfg *config.Config) (model.BaseChatModel, error) {
	if cfg.GoogleAPIKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY not configured")
	}

	maxTokens := cfg.MaxTokens
	chatModel, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
		BaseURL:   cfg.BackendURL,
		APIKey:    cfg.GoogleAPIKey,
		Model:     cfg.LLMModel,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return chatModel, nil
}
