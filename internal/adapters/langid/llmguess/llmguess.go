package llmguess

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/enrule/langbot/internal/adapters"
	"github.com/enrule/langbot/internal/adapters/langid"
	"github.com/enrule/langbot/internal/adapters/llm"
)

const systemPrompt = `You identify the language of chat messages.
Reply with a single JSON object and nothing else: {"language":"<ISO 639-1 code>","confidence":<0..1>}.
Use "und" when the message has no identifiable language.`

// Guesser asks a chat model for the language of a text.
type Guesser struct {
	llm    adapters.LLM
	logger *log.Entry
}

func New(model adapters.LLM, logger *log.Entry) *Guesser {
	return &Guesser{llm: model, logger: logger}
}

func (g *Guesser) Guess(ctx context.Context, text string) (*langid.Guess, error) {
	resp, err := g.llm.ChatCompletion(ctx, []llm.ChatCompletionMessage{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: text},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to guess language with llm")
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}
	return parseGuess(resp.Choices[0].Message.Content)
}

func parseGuess(content string) (*langid.Guess, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var guess langid.Guess
	if err := json.Unmarshal([]byte(content), &guess); err != nil {
		return nil, errors.Wrapf(err, "malformed llm reply %q", content)
	}
	guess.Language = strings.ToLower(strings.TrimSpace(guess.Language))
	if guess.Language == "" || guess.Language == "und" || len(guess.Language) != 2 {
		return nil, nil
	}
	if guess.Confidence < 0 {
		guess.Confidence = 0
	}
	if guess.Confidence > 1 {
		guess.Confidence = 1
	}
	return &guess, nil
}
