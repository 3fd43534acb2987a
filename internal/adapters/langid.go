package adapters

import (
	"context"

	"github.com/enrule/langbot/internal/adapters/langid"
)

// LanguageGuesser returns the most likely language of a text. A nil guess
// means the backend could not decide.
type LanguageGuesser interface {
	Guess(ctx context.Context, text string) (*langid.Guess, error)
}

// SpanDetector splits a text into English and Russian fragments.
type SpanDetector interface {
	DetectSpans(ctx context.Context, text string) ([]langid.Span, error)
}
