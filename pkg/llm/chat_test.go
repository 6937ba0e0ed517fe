package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/llm"
)

type fakeModel struct {
	response *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	options  llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.options)
	}
	return f.response, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func answer(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func TestGenerate(t *testing.T) {
	model := &fakeModel{response: answer("Use the installer.")}
	engine, err := llm.NewChatEngine(model, llm.ChatConfig{Temperature: 0.3, MaxTokens: 512})
	require.NoError(t, err)

	got, err := engine.Generate(context.Background(), []models.Message{
		{Role: models.RoleSystem, Content: "You answer from docs."},
		{Role: models.RoleUser, Content: "earlier question"},
		{Role: models.RoleAssistant, Content: "earlier answer"},
		{Role: models.RoleUser, Content: "How do I install?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Use the installer.", got)

	require.Len(t, model.messages, 4)
	wantRoles := []llms.ChatMessageType{
		llms.ChatMessageTypeSystem,
		llms.ChatMessageTypeHuman,
		llms.ChatMessageTypeAI,
		llms.ChatMessageTypeHuman,
	}
	for i, m := range model.messages {
		assert.Equal(t, wantRoles[i], m.Role)
	}
	assert.Equal(t, llms.TextContent{Text: "How do I install?"}, model.messages[3].Parts[0])
	assert.Equal(t, 0.3, model.options.Temperature)
	assert.Equal(t, 512, model.options.MaxTokens)
}

func TestGenerateDefaultsMaxTokens(t *testing.T) {
	model := &fakeModel{response: answer("ok")}
	engine, err := llm.NewChatEngine(model, llm.ChatConfig{Temperature: 0.7})
	require.NoError(t, err)

	_, err = engine.Generate(context.Background(), []models.Message{{Role: models.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, 2000, model.options.MaxTokens)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name     string
		model    *fakeModel
		messages []models.Message
		target   error
	}{
		{
			name:     "no messages",
			model:    &fakeModel{response: answer("x")},
			messages: nil,
			target:   models.ErrConfiguration,
		},
		{
			name:     "no choices",
			model:    &fakeModel{response: &llms.ContentResponse{}},
			messages: []models.Message{{Role: models.RoleUser, Content: "q"}},
			target:   models.ErrProvider,
		},
		{
			name:     "provider failure",
			model:    &fakeModel{err: errors.New("rate limited")},
			messages: []models.Message{{Role: models.RoleUser, Content: "q"}},
			target:   models.ErrProvider,
		},
		{
			name:     "deadline",
			model:    &fakeModel{err: context.DeadlineExceeded},
			messages: []models.Message{{Role: models.RoleUser, Content: "q"}},
			target:   context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := llm.NewChatEngine(tt.model, llm.ChatConfig{Temperature: 0.7})
			require.NoError(t, err)

			_, err = engine.Generate(context.Background(), tt.messages)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestNewChatEngineValidation(t *testing.T) {
	_, err := llm.NewChatEngine(&fakeModel{}, llm.ChatConfig{Temperature: 3})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = llm.NewChatEngine(&fakeModel{}, llm.ChatConfig{Temperature: 0.5, MaxTokens: -1})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestNewWithConfigProviders(t *testing.T) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    "ollama",
		Model:       "mistral",
		BaseURL:     "http://localhost:11434",
		Temperature: 0.5,
	})
	require.NoError(t, err)
	assert.NotNil(t, engine)

	_, err = llm.NewWithConfig(llm.ChatConfig{Provider: "nope", Temperature: 0.5})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}
