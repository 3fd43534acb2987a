package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/enrule/langbot/internal/adapters"
	"github.com/enrule/langbot/internal/adapters/langid"
	"github.com/enrule/langbot/internal/adapters/langid/lingua"
	"github.com/enrule/langbot/internal/adapters/langid/llmguess"
	"github.com/enrule/langbot/internal/adapters/langid/whatlang"
	"github.com/enrule/langbot/internal/adapters/langid/zeroshot"
	"github.com/enrule/langbot/internal/adapters/llm"
	"github.com/enrule/langbot/internal/adapters/llm/gemini"
	"github.com/enrule/langbot/internal/adapters/llm/openai"
	"github.com/enrule/langbot/internal/bot"
	"github.com/enrule/langbot/internal/classifier"
	"github.com/enrule/langbot/internal/config"
	"github.com/enrule/langbot/internal/cooldown"
	"github.com/enrule/langbot/internal/db"
	"github.com/enrule/langbot/internal/db/memory"
	"github.com/enrule/langbot/internal/db/redis"
	"github.com/enrule/langbot/internal/db/sqlite"
	handlers "github.com/enrule/langbot/internal/handlers/langday"
	"github.com/enrule/langbot/internal/infra"
	"github.com/enrule/langbot/internal/infrastructure/telegram"
	"github.com/enrule/langbot/internal/langday"
	"github.com/enrule/langbot/internal/lifecycle"
	"github.com/enrule/langbot/internal/observability"
	"github.com/enrule/langbot/internal/violations"
	"github.com/enrule/langbot/resources"
)

const (
	guessCacheSize = 4096
	guessCacheTTL  = time.Hour
	shutdownGrace  = 10 * time.Second
)

func main() {
	cfg := config.Get()
	log.SetFormatter(&config.NbFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	app := cli.App{
		Name:  "langbot",
		Usage: "keeps a Telegram chat on the language of the day",
	}
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "moderate the configured chat",
			Action: func(cctx *cli.Context) error { return runBot(cctx, cfg) },
		},
		{
			Name:   "classify",
			Usage:  "print the classifier verdict for every stdin line",
			Action: func(cctx *cli.Context) error { return runClassify(cctx, cfg) },
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "day",
					Usage: "target language: en, ru or empty for a free day",
				},
			},
		},
		{
			Name:   "today",
			Usage:  "print the effective day settings",
			Action: func(cctx *cli.Context) error { return runToday(cctx, cfg) },
		},
	}
	if len(os.Args) < 2 {
		os.Args = append(os.Args, "run")
	}
	app.RunAndExitOnError()
}

func newClassifier(ctx context.Context, cfg config.Config) (*classifier.Classifier, error) {
	words, err := classifier.LoadWordLists(resources.FS, "wordlists/en.txt", "wordlists/ru.txt")
	if err != nil {
		return nil, errors.WithMessage(err, "load word lists")
	}
	detector := lingua.New(false)

	var guesser adapters.LanguageGuesser
	switch cfg.Classifier.Oracle {
	case "", "lingua":
		guesser = detector
	case "whatlang":
		guesser = whatlang.New()
	case "llm":
		model, err := newLLM(ctx, cfg.LLM)
		if err != nil {
			return nil, err
		}
		guesser = langid.NewCachedGuesser(llmguess.New(model, log.WithField("object", "LLMGuesser")), guessCacheSize, guessCacheTTL)
	case "zeroshot":
		modelsDir, err := infra.WorkDir(cfg.DotPath, "models")
		if err != nil {
			return nil, err
		}
		guesser = langid.NewCachedGuesser(zeroshot.New(modelsDir, cfg.ZeroShot.Model), guessCacheSize, guessCacheTTL)
	default:
		return nil, fmt.Errorf("unknown classifier oracle %q", cfg.Classifier.Oracle)
	}

	return classifier.New(classifier.Config{
		MinLength:         cfg.Classifier.MinLength,
		MLMinLength:       cfg.Classifier.MLMinLength,
		MaxAge:            cfg.Classifier.MaxAge,
		Confidence:        cfg.Classifier.Confidence,
		UnknownWordsRatio: cfg.Classifier.UnknownWordsRatio,
		DominanceRatio:    cfg.Classifier.DominanceRatio,
		CharsetGoodRate:   cfg.Classifier.CharsetGoodRate,
		CharsetBadCount:   cfg.Classifier.CharsetBadCount,
	}, guesser, detector, words), nil
}

func newLLM(ctx context.Context, cfg config.LLM) (adapters.LLM, error) {
	logger := log.WithField("object", "LLM")
	params := &llm.GenerationParameters{
		Temperature:     cfg.Temperature,
		TopK:            40,
		TopP:            0.9,
		MaxOutputTokens: cfg.MaxTokens,
	}
	switch cfg.Type {
	case "", "openai":
		return openai.NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, logger).WithParameters(params), nil
	case "gemini":
		model, err := gemini.NewGemini(ctx, cfg.APIKey, cfg.Model, logger)
		if err != nil {
			return nil, errors.WithMessage(err, "init gemini")
		}
		params.ResponseMIMEType = "application/json"
		return model.WithParameters(params), nil
	}
	return nil, fmt.Errorf("unknown llm type %q", cfg.Type)
}

func newViolationStore(cfg config.Config) (db.ViolationStore, lifecycle.Component, error) {
	if cfg.RedisURL == "" {
		log.Info("no redis configured, keeping violations in memory")
		return memory.NewViolationStore(), nil, nil
	}
	store, err := redis.NewViolationStore(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

func runBot(cctx *cli.Context, cfg config.Config) error {
	if cfg.TelegramAPIToken == "" {
		return errors.New("NG_TOKEN is required")
	}
	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	workDir, err := infra.WorkDir(cfg.DotPath)
	if err != nil {
		return err
	}
	store, err := sqlite.NewSQLiteClient(ctx, workDir, cfg.DBFile)
	if err != nil {
		return errors.WithMessage(err, "open sqlite")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithField("error", err.Error()).Warn("failed to close sqlite")
		}
	}()

	violationStore, violationComponent, err := newViolationStore(cfg)
	if err != nil {
		return err
	}
	langClassifier, err := newClassifier(ctx, cfg)
	if err != nil {
		return err
	}

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		return errors.Wrap(err, "cant initialize bot api")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}

	gate := cooldown.NewGate(store)
	ledger := violations.NewLedger(violationStore, store)
	policy := langday.NewPolicy(store, time.Local)
	transport := telegram.NewOperations(botAPI, botAPI.Self.ID, cfg.TelegramRate)

	handlerCfg := handlers.DefaultConfig()
	handlerCfg.AdminsTTL = cfg.AdminsTTL
	moderator := handlers.NewModerator(handlerCfg, transport, store, langClassifier, policy, gate, ledger)

	components := lifecycle.NewRuntime(
		observability.NewServer(cfg.MetricsAddr),
		gate,
		violations.NewSweeper(store, 0),
	)
	components.Register(violationComponent)
	if err := components.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := components.Stop(stopCtx); err != nil {
			log.WithField("error", err.Error()).Error("failed to stop components")
		}
	}()

	updateProcessor := bot.NewUpdateProcessor(cfg.ChatID, moderator)
	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateConfig.AllowedUpdates = handlers.AllowedUpdates

	done := make(chan struct{})
	var closeDone sync.Once
	go infra.GoRecoverable(-1, "process_updates", func() {
		defer closeDone.Do(func() { close(done) })
		updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)
		for {
			select {
			case err, ok := <-errorChan:
				if ok && !errors.Is(err, context.Canceled) {
					log.WithField("error", err.Error()).Error("bot api get updates error")
				}
				return
			case update, ok := <-updateChan:
				if !ok {
					return
				}
				if err := updateProcessor.Process(ctx, &update); err != nil {
					log.WithField("error", err.Error()).Error("cant process update")
				}
			}
		}
	})

	log.WithField("chat_id", cfg.ChatID).Info("langbot started")
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case <-done:
		log.Warn("no more updates")
	case <-infra.MonitorExecutable(ctx):
		log.Warn("executable file was modified")
	}
	return nil
}

func runClassify(cctx *cli.Context, cfg config.Config) error {
	ctx := cctx.Context
	langClassifier, err := newClassifier(ctx, cfg)
	if err != nil {
		return err
	}
	day := langday.DaySetting{}
	if value := cctx.String("day"); value != "" {
		lang, ok := langday.ParseLang(value)
		if !ok {
			return fmt.Errorf("unknown language %q", value)
		}
		day.Language = lang
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		verdict, err := langClassifier.Classify(ctx, classifier.Message{Text: scanner.Text()}, day, true)
		if err != nil {
			return err
		}
		fmt.Println(tool.ExecTemplate(`{{ .language }}	{{ .stage }}	{{ .reason }}`, map[string]any{
			"language": verdict.Language.String(),
			"stage":    verdict.Stage,
			"reason":   verdict.Reason,
		}))
	}
	return scanner.Err()
}

func runToday(cctx *cli.Context, cfg config.Config) error {
	workDir, err := infra.WorkDir(cfg.DotPath)
	if err != nil {
		return err
	}
	store, err := sqlite.NewSQLiteClient(cctx.Context, workDir, cfg.DBFile)
	if err != nil {
		return errors.WithMessage(err, "open sqlite")
	}
	defer store.Close()

	policy := langday.NewPolicy(store, time.Local)
	day, err := policy.Today(cctx.Context, time.Now())
	if err != nil {
		return err
	}
	gate := cooldown.NewGate(store)
	if err := gate.Start(cctx.Context); err != nil {
		return err
	}
	settings, err := violations.NewLedger(memory.NewViolationStore(), store).Settings(cctx.Context)
	if err != nil {
		return err
	}

	fmt.Printf("language: %s (forced: %t)\n", day.Language.Name(), day.Forced)
	fmt.Printf("cooldown: %s\n", gate.Duration())
	fmt.Printf("mute: %t, max warnings: %d, mute duration: %s, warnings expiry: %s\n",
		settings.MuteEnabled, settings.MaxViolations, settings.MuteDuration, settings.WarningsExpiry)
	return nil
}
