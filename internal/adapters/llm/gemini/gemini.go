package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/enrule/langbot/internal/adapters/llm"
)

type API struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *log.Entry
}

const DefaultModel = "gemini-2.5-flash-lite"

func NewGemini(ctx context.Context, apiKey, model string, logger *log.Entry) (*API, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}
	api := &API{
		client: client,
		logger: logger,
	}
	api.WithModel(model)
	return api, nil
}

func (g *API) WithModel(modelName string) *API {
	if modelName == "" {
		modelName = DefaultModel
	}
	g.model = g.client.GenerativeModel(modelName)
	g.WithParameters(nil)
	return g
}

func (g *API) WithParameters(parameters *llm.GenerationParameters) *API {
	if parameters == nil {
		parameters = &llm.GenerationParameters{
			Temperature:      0.02,
			TopK:             40,
			TopP:             0.9,
			MaxOutputTokens:  64,
			ResponseMIMEType: "application/json",
		}
	}
	g.model.SetTemperature(parameters.Temperature)
	g.model.SetTopK(parameters.TopK)
	g.model.SetTopP(parameters.TopP)
	g.model.SetMaxOutputTokens(int32(parameters.MaxOutputTokens))
	g.model.ResponseMIMEType = parameters.ResponseMIMEType
	return g
}

func (g *API) Close() error {
	return g.client.Close()
}

func (g *API) ChatCompletion(ctx context.Context, messages []llm.ChatCompletionMessage) (llm.ChatCompletionResponse, error) {
	if len(messages) == 0 {
		return llm.ChatCompletionResponse{}, errors.New("no messages")
	}

	// The model is shared, so the per-request system instruction goes on a copy.
	model := *g.model
	session := model.StartChat()
	session.History = []*genai.Content{}

	last, history := messages[len(messages)-1], messages[:len(messages)-1]
	for _, message := range history {
		if message.Role == llm.RoleSystem {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(message.Content)}}
			continue
		}
		role := "user"
		if message.Role == llm.RoleAssistant {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(message.Content)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		g.logger.WithField("error", err.Error()).Debug("gemini request failed")
		return llm.ChatCompletionResponse{}, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return llm.ChatCompletionResponse{}, nil
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(fmt.Sprintf("%v", part))
	}
	return llm.ChatCompletionResponse{
		Choices: []llm.ChatCompletionChoice{{Message: llm.ChatCompletionMessage{Role: llm.RoleAssistant, Content: b.String()}}},
	}, nil
}
