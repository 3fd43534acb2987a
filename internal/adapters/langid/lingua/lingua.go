package lingua

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"

	"github.com/enrule/langbot/internal/adapters/langid"
)

// Languages whose models misfire on short chat messages.
var excluded = []lingua.Language{lingua.Tagalog, lingua.Sotho, lingua.Latin}

// Detector wraps two lingua detectors: a low accuracy one over all languages
// for best guesses and an English/Russian one for span detection.
type Detector struct {
	once      sync.Once
	all       lingua.LanguageDetector
	bilingual lingua.LanguageDetector
	preload   bool
}

func New(preload bool) *Detector {
	return &Detector{preload: preload}
}

func (d *Detector) init() {
	d.once.Do(func() {
		all := lingua.NewLanguageDetectorBuilder().
			FromAllLanguagesWithout(excluded...).
			WithLowAccuracyMode()
		bilingual := lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.English, lingua.Russian)
		if d.preload {
			all = all.WithPreloadedLanguageModels()
			bilingual = bilingual.WithPreloadedLanguageModels()
		}
		d.all = all.Build()
		d.bilingual = bilingual.Build()
	})
}

func isoCode(lang lingua.Language) string {
	return strings.ToLower(lang.IsoCode639_1().String())
}

func (d *Detector) Guess(ctx context.Context, text string) (*langid.Guess, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.init()
	lang, ok := d.all.DetectLanguageOf(text)
	if !ok {
		return nil, nil
	}
	return &langid.Guess{
		Language:   isoCode(lang),
		Confidence: d.all.ComputeLanguageConfidence(text, lang),
	}, nil
}

func (d *Detector) DetectSpans(ctx context.Context, text string) ([]langid.Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.init()
	results := d.bilingual.DetectMultipleLanguagesOf(text)
	spans := make([]langid.Span, 0, len(results))
	for _, r := range results {
		span := langid.Span{
			Language: isoCode(r.Language()),
			Start:    r.StartIndex(),
			End:      r.EndIndex(),
		}
		if span.Start >= 0 && span.Start <= span.End && span.End <= len(text) {
			fragment := text[span.Start:span.End]
			span.Chars = utf8.RuneCountInString(fragment)
			span.WordCount = len(strings.Fields(fragment))
		}
		spans = append(spans, span)
	}
	return spans, nil
}
