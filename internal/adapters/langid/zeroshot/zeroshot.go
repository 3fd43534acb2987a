package zeroshot

import (
	"context"
	"sync"

	"github.com/nlpodyssey/cybertron/pkg/tasks"
	"github.com/nlpodyssey/cybertron/pkg/tasks/zeroshotclassifier"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/enrule/langbot/internal/adapters/langid"
)

const DefaultModel = "MoritzLaurer/mDeBERTa-v3-base-mnli-xnli"

// Candidate labels and the ISO 639-1 codes they stand for.
var labels = map[string]string{
	"English":    "en",
	"Russian":    "ru",
	"Ukrainian":  "uk",
	"Belarusian": "be",
	"German":     "de",
	"French":     "fr",
	"Spanish":    "es",
	"Italian":    "it",
	"Portuguese": "pt",
	"Polish":     "pl",
	"Turkish":    "tr",
	"Chinese":    "zh",
	"Japanese":   "ja",
	"Arabic":     "ar",
}

type classifier interface {
	Classify(ctx context.Context, text string, parameters zeroshotclassifier.Parameters) (zeroshotclassifier.Response, error)
}

// Guesser classifies text against language names with an NLI model.
// The model is loaded on first use.
type Guesser struct {
	modelsDir string
	modelName string

	once    sync.Once
	model   classifier
	loadErr error
	params  zeroshotclassifier.Parameters
}

func New(modelsDir, modelName string) *Guesser {
	if modelName == "" {
		modelName = DefaultModel
	}
	candidates := make([]string, 0, len(labels))
	for label := range labels {
		candidates = append(candidates, label)
	}
	return &Guesser{
		modelsDir: modelsDir,
		modelName: modelName,
		params: zeroshotclassifier.Parameters{
			CandidateLabels:    candidates,
			HypothesisTemplate: "This text is written in {}.",
			MultiLabel:         false,
		},
	}
}

func (g *Guesser) load() {
	g.once.Do(func() {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
		m, err := tasks.Load[zeroshotclassifier.Interface](&tasks.Config{
			ModelsDir:           g.modelsDir,
			ModelName:           g.modelName,
			DownloadPolicy:      tasks.DownloadMissing,
			ConversionPolicy:    tasks.ConvertMissing,
			ConversionPrecision: tasks.F32,
		})
		if err != nil {
			g.loadErr = errors.Wrapf(err, "load zero-shot model %s", g.modelName)
			return
		}
		g.model = m
	})
}

func (g *Guesser) Guess(ctx context.Context, text string) (*langid.Guess, error) {
	g.load()
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	return guess(ctx, g.model, text, g.params)
}

func guess(ctx context.Context, model classifier, text string, params zeroshotclassifier.Parameters) (*langid.Guess, error) {
	result, err := model.Classify(ctx, text, params)
	if err != nil {
		return nil, errors.Wrap(err, "zero-shot classify")
	}
	if len(result.Labels) == 0 || len(result.Scores) == 0 {
		return nil, nil
	}
	best := 0
	for i := range result.Scores {
		if result.Scores[i] > result.Scores[best] {
			best = i
		}
	}
	code, ok := labels[result.Labels[best]]
	if !ok {
		return nil, nil
	}
	return &langid.Guess{Language: code, Confidence: result.Scores[best]}, nil
}
