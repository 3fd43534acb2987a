package whatlang

import (
	"context"

	"github.com/abadojack/whatlanggo"

	"github.com/enrule/langbot/internal/adapters/langid"
)

// Guesser is a trigram based best-guess backend. Unreliable detections are
// reported as no guess.
type Guesser struct{}

func New() *Guesser {
	return &Guesser{}
}

func (g *Guesser) Guess(ctx context.Context, text string) (*langid.Guess, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" || !info.IsReliable() {
		return nil, nil
	}
	confidence := info.Confidence
	if confidence > 1 {
		confidence = 1
	}
	return &langid.Guess{Language: code, Confidence: confidence}, nil
}
