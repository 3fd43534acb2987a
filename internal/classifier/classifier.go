package classifier

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/enrule/langbot/internal/adapters"
	"github.com/enrule/langbot/internal/adapters/langid"
	"github.com/enrule/langbot/internal/langday"
)

type Stage string

const (
	StageAdmin     Stage = "admin"
	StageAge       Stage = "age"
	StageLength    Stage = "length"
	StageCharset   Stage = "charset"
	StageML        Stage = "ml"
	StageDay       Stage = "day"
	StageBilingual Stage = "bilingual"
)

type Mechanism string

const (
	MechanismCharset Mechanism = "charset"
	MechanismML      Mechanism = "ml"
)

type Config struct {
	MinLength         int
	MLMinLength       int
	MaxAge            time.Duration
	Confidence        float64
	UnknownWordsRatio float64
	DominanceRatio    float64
	CharsetGoodRate   float64
	CharsetBadCount   int
}

func DefaultConfig() Config {
	return Config{
		MinLength:         5,
		MLMinLength:       10,
		MaxAge:            5 * time.Minute,
		Confidence:        0.7,
		UnknownWordsRatio: 0.6,
		DominanceRatio:    1.7,
		CharsetGoodRate:   0.9,
		CharsetBadCount:   5,
	}
}

// DetectionResult explains why a text was flagged as foreign.
type DetectionResult struct {
	Mechanism             Mechanism
	Charset               *CharsetResult
	Guess                 *langid.Guess
	NonRecognizedWords    []string
	HasPlentyUnknownWords bool
	TotalWords            int
	TotalUnrecognized     int
	CleanedTextLength     int
}

// Message is the classifier input.
type Message struct {
	Text      string
	SentAt    time.Time
	FromAdmin bool
}

// Verdict is the classifier output. Language is Foreign, a managed language
// or NoLang when no decision was made.
type Verdict struct {
	Language   langday.Lang
	Stage      Stage
	Reason     string
	Normalized string
	Detection  *DetectionResult
}

// Decided reports whether the verdict carries a language.
func (v Verdict) Decided() bool {
	return v.Language != langday.NoLang
}

type Classifier struct {
	cfg     Config
	guesser adapters.LanguageGuesser
	spans   adapters.SpanDetector
	words   *WordList
	charset CharsetGate
	now     func() time.Time
}

func New(cfg Config, guesser adapters.LanguageGuesser, spans adapters.SpanDetector, words *WordList) *Classifier {
	if words == nil {
		words = NewWordList()
	}
	return &Classifier{
		cfg:     cfg,
		guesser: guesser,
		spans:   spans,
		words:   words,
		charset: CharsetGate{GoodRate: cfg.CharsetGoodRate, BadCount: cfg.CharsetBadCount},
		now:     time.Now,
	}
}

func (c *Classifier) getLogEntry() *log.Entry {
	return log.WithField("object", "Classifier")
}

// Classify runs the whole decision chain for m against the day setting.
// otherLangChecks enables the foreign-language layer.
func (c *Classifier) Classify(ctx context.Context, m Message, day langday.DaySetting, otherLangChecks bool) (Verdict, error) {
	if m.FromAdmin {
		return Verdict{Stage: StageAdmin, Reason: "sender is an admin"}, nil
	}
	if !m.SentAt.IsZero() {
		if age := c.now().Sub(m.SentAt); age > c.cfg.MaxAge {
			return Verdict{Stage: StageAge, Reason: fmt.Sprintf("message is %s old", age.Round(time.Second))}, nil
		}
	}

	normalized := Normalize(m.Text)
	if n := utf8.RuneCountInString(normalized); n < c.cfg.MinLength {
		return Verdict{Stage: StageLength, Reason: fmt.Sprintf("text too short: %d", n), Normalized: normalized}, nil
	}

	if otherLangChecks {
		detection, stage, err := c.DetectForeign(ctx, normalized, day.Language)
		if err != nil {
			return Verdict{Stage: stage, Normalized: normalized}, err
		}
		if detection != nil {
			return Verdict{
				Language:   langday.Foreign,
				Stage:      stage,
				Reason:     fmt.Sprintf("foreign text by %s", detection.Mechanism),
				Normalized: normalized,
				Detection:  detection,
			}, nil
		}
	}

	if !day.Enforced() {
		return Verdict{Stage: StageDay, Reason: "no language is enforced today", Normalized: normalized}, nil
	}

	lang, err := c.Resolve(ctx, normalized)
	if err != nil {
		return Verdict{Stage: StageBilingual, Normalized: normalized}, err
	}
	reason := "mixed or undetected language"
	if lang != langday.NoLang {
		reason = "detected " + lang.Name()
	}
	return Verdict{Language: lang, Stage: StageBilingual, Reason: reason, Normalized: normalized}, nil
}

// DetectForeign runs the charset and ML gates over normalized text. It
// returns nil when the text is not considered foreign.
func (c *Classifier) DetectForeign(ctx context.Context, normalized string, target langday.Lang) (*DetectionResult, Stage, error) {
	charset := c.charset.Check(normalized)
	if charset.Foreign {
		return &DetectionResult{
			Mechanism:         MechanismCharset,
			Charset:           &charset,
			CleanedTextLength: utf8.RuneCountInString(normalized),
		}, StageCharset, nil
	}

	// Russian morphology defeats the word lists, so the ML gate only runs
	// when Russian is not the target.
	if target == langday.Russian || c.guesser == nil {
		return nil, StageML, nil
	}
	length := utf8.RuneCountInString(normalized)
	if length < c.cfg.MLMinLength {
		return nil, StageML, nil
	}

	guess, err := c.guesser.Guess(ctx, normalized)
	if err != nil {
		c.getLogEntry().WithField("error", err.Error()).Warn("language guess failed, skipping ml gate")
		return nil, StageML, nil
	}
	if guess == nil || langday.Lang(guess.Language).Managed() || guess.Confidence < c.cfg.Confidence {
		return nil, StageML, nil
	}

	unknown, total := c.words.Unknown(normalized)
	plenty := total > 0 && float64(len(unknown))/float64(total) > c.cfg.UnknownWordsRatio
	c.getLogEntry().WithFields(log.Fields{
		"guess":      guess.Language,
		"confidence": guess.Confidence,
		"unknown":    len(unknown),
		"total":      total,
	}).Debug("ml gate")
	if !plenty {
		return nil, StageML, nil
	}
	return &DetectionResult{
		Mechanism:             MechanismML,
		Guess:                 guess,
		NonRecognizedWords:    unknown,
		HasPlentyUnknownWords: plenty,
		TotalWords:            total,
		TotalUnrecognized:     len(unknown),
		CleanedTextLength:     length,
	}, StageML, nil
}

// Resolve decides between English and Russian by summing the detected span
// lengths. Mixed text within the dominance band yields NoLang.
func (c *Classifier) Resolve(ctx context.Context, normalized string) (langday.Lang, error) {
	if c.spans == nil {
		return langday.NoLang, nil
	}
	spans, err := c.spans.DetectSpans(ctx, normalized)
	if err != nil {
		return langday.NoLang, fmt.Errorf("detect spans: %w", err)
	}
	return MainLanguage(spans, c.cfg.DominanceRatio), nil
}

// MainLanguage groups spans by language and picks the dominant one. When
// both languages are present one must exceed the other by ratio.
func MainLanguage(spans []langid.Span, ratio float64) langday.Lang {
	var ruLen, enLen int
	for _, span := range spans {
		switch langday.Lang(span.Language) {
		case langday.Russian:
			ruLen += span.Len()
		case langday.English:
			enLen += span.Len()
		}
	}

	switch {
	case ruLen == 0 && enLen == 0:
		return langday.NoLang
	case ruLen == 0:
		return langday.English
	case enLen == 0:
		return langday.Russian
	}

	rate := float64(ruLen) / float64(enLen)
	switch {
	case rate > ratio:
		return langday.Russian
	case rate < 1/ratio:
		return langday.English
	}
	return langday.NoLang
}
