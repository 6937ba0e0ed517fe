package llm

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"

	"github.com/xhad/askdocs/internal/models"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

// ChatEngine sends an ordered message list to a chat model and returns the
// first completion.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine for the configured provider.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	client, err := newProviderClient(providerOptions{
		Provider: config.Provider,
		BaseURL:  config.BaseURL,
		APIKey:   config.APIKey,
		Model:    config.Model,
	})
	if err != nil {
		return nil, err
	}
	return NewChatEngine(client, config)
}

// NewChatEngine wraps an existing model.
func NewChatEngine(model llms.Model, config ChatConfig) (*ChatEngine, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, models.ConfigError("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, models.ConfigError("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Provider == "" {
		config.Provider = ProviderOpenAI
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

func messageType(role models.Role) llms.ChatMessageType {
	switch role {
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// Generate returns the text of the first completion choice.
func (ce *ChatEngine) Generate(ctx context.Context, messages []models.Message) (string, error) {
	if len(messages) == 0 {
		return "", models.ConfigError("no messages to send")
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(messageType(m.Role), m.Content))
	}

	response, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		return "", classify(ce.config.Provider, "chat", ce.config.BaseURL, err)
	}

	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", &models.ProviderError{
			Provider: ce.config.Provider,
			Op:       "chat",
			Err:      errors.New("no completion choices returned"),
		}
	}

	return response.Choices[0].Content, nil
}
