package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/studyplanner/ai"
	"github.com/poiesic/studyplanner/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Answerer implements ai.Answerer against an OpenAI-compatible chat API.
type Answerer struct {
	llm    *openai.LLM
	model  string
	logger *slog.Logger
}

var _ ai.Answerer = (*Answerer)(nil)

// NewAnswerer creates an answerer for model served at baseURL.
func NewAnswerer(baseURL, token, model string) (*Answerer, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: %s", ai.ErrMissingAPIKey, model)
	}
	llm, err := openai.New(
		openai.WithBaseURL(strings.TrimSuffix(baseURL, "/")),
		openai.WithToken(token),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return &Answerer{
		llm:    llm,
		model:  model,
		logger: slog.Default().With("component", "openai-answerer", "model", model),
	}, nil
}

// Model returns the chat model name.
func (a *Answerer) Model() string {
	return a.model
}

// Answer sends the system prompt, history and question as one chat completion.
func (a *Answerer) Answer(ctx context.Context, req ai.AnswerRequest) (string, error) {
	messages := make([]llms.MessageContent, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, turn := range req.History {
		messages = append(messages, llms.TextParts(chatRole(turn.Role), turn.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Question))

	a.logger.Debug("requesting completion", "messages", len(messages))
	resp, err := a.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(req.Temperature),
		llms.WithMaxTokens(req.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", a.model, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ai.ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

func chatRole(role core.Role) llms.ChatMessageType {
	if role == core.RoleAssistant {
		return llms.ChatMessageTypeAI
	}
	return llms.ChatMessageTypeHuman
}
