// Package gemini implements ai.Answerer on the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/studyplanner/ai"
	"github.com/poiesic/studyplanner/core"
	"google.golang.org/api/option"
)

// Answerer answers tutoring questions with a Gemini model.
type Answerer struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

var _ ai.Answerer = (*Answerer)(nil)

// New creates an Answerer using config.GeminiAPIKey and config.GeminiModel.
func New(ctx context.Context, config *ai.Config) (*Answerer, error) {
	if err := config.CheckProvider(ai.ProviderGemini); err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Answerer{
		client: client,
		model:  config.GeminiModel,
		logger: slog.Default().With("component", "gemini-answerer", "model", config.GeminiModel),
	}, nil
}

// Model returns the Gemini model name.
func (a *Answerer) Model() string {
	return a.model
}

// Answer replays the history into a chat session and sends the question.
func (a *Answerer) Answer(ctx context.Context, req ai.AnswerRequest) (string, error) {
	model := a.client.GenerativeModel(a.model)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}
	model.SetTemperature(float32(req.Temperature))
	model.SetMaxOutputTokens(int32(req.MaxTokens))

	cs := model.StartChat()
	cs.History = toHistory(req.History)

	a.logger.Debug("sending message", "history", len(cs.History))
	resp, err := cs.SendMessage(ctx, genai.Text(req.Question))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return responseText(resp)
}

// Close releases the client connection.
func (a *Answerer) Close() error {
	return a.client.Close()
}

func toHistory(turns []core.ConversationTurn) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		role := "user"
		if turn.Role == core.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}
	return history
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ai.ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ai.ErrEmptyResponse
	}
	return sb.String(), nil
}
