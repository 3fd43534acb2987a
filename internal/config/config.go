package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string `env:"TOKEN"`
		ChatID           int64  `env:"CHAT_ID,default=0"`
		LogLevel         int    `env:"LOG_LEVEL,default=4"`
		DotPath          string `env:"DOT_PATH,default=~/.langbot"`
		DBFile           string `env:"DB_FILE,default=langbot.db"`
		RedisURL         string `env:"REDIS_URL"`
		MetricsAddr      string `env:"METRICS_ADDR,default=:2112"`
		TelegramRate     int    `env:"TELEGRAM_RATE,default=20"`

		AdminsTTL time.Duration `env:"ADMINS_TTL,default=3h"`

		Classifier Classifier
		LLM        LLM
		ZeroShot   ZeroShot
	}

	Classifier struct {
		Oracle            string        `env:"CLASSIFIER_ORACLE,default=lingua"`
		MinLength         int           `env:"CLASSIFIER_MIN_LENGTH,default=5"`
		MLMinLength       int           `env:"CLASSIFIER_ML_MIN_LENGTH,default=10"`
		MaxAge            time.Duration `env:"CLASSIFIER_MAX_AGE,default=5m"`
		Confidence        float64       `env:"CLASSIFIER_CONFIDENCE,default=0.7"`
		UnknownWordsRatio float64       `env:"CLASSIFIER_UNKNOWN_WORDS,default=0.6"`
		DominanceRatio    float64       `env:"CLASSIFIER_RATIO,default=1.7"`
		CharsetGoodRate   float64       `env:"CLASSIFIER_CHARSET_RATE,default=0.9"`
		CharsetBadCount   int           `env:"CLASSIFIER_CHARSET_BAD,default=5"`
	}

	LLM struct {
		APIKey  string `env:"LLM_API_KEY"`
		Model   string `env:"LLM_API_MODEL,default=gpt-4o-mini"`
		BaseURL string `env:"LLM_API_URL,default=https://api.openai.com/v1"`
		Type    string `env:"LLM_API_TYPE,default=openai"`

		Temperature float32 `env:"LLM_TEMPERATURE,default=0.02"`
		MaxTokens   int     `env:"LLM_MAX_TOKENS,default=64"`
	}

	ZeroShot struct {
		Model string `env:"ZEROSHOT_MODEL,default=MoritzLaurer/mDeBERTa-v3-base-mnli-xnli"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Traceln("no .env file loaded")
		}
		cfg, err := Process(context.Background(), envconfig.OsLookuper())
		if err != nil {
			globalErr = err
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

// Process reads the configuration from the given lookuper using the NG_ prefix.
func Process(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	envcfg := envconfig.Config{
		Lookuper: envconfig.PrefixLookuper("NG_", lookuper),
		Target:   cfg,
	}
	if err := envconfig.ProcessWith(ctx, &envcfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	dotPath, err := homedir.Expand(cfg.DotPath)
	if err != nil {
		return nil, fmt.Errorf("expand dot path: %w", err)
	}
	cfg.DotPath = dotPath
	return cfg, nil
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
