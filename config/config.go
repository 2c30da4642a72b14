package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Environment string `yaml:"environment"`
	DataDir     string `yaml:"data_dir"`
	DBPath      string `yaml:"db_path"`
	Timezone    string `yaml:"timezone"`
	LogLevel    string `yaml:"log_level"`

	Log                LogConfig                `yaml:"log"`
	Collect            CollectConfig            `yaml:"collect"`
	Twitter            TwitterConfig            `yaml:"twitter"`
	Reddit             RedditConfig             `yaml:"reddit"`
	HackerNews         HackerNewsConfig         `yaml:"hackernews"`
	ArtificialAnalysis ArtificialAnalysisConfig `yaml:"artificialanalysis"`
	Sentiment          SentimentConfig          `yaml:"sentiment"`
	Training           TrainingConfig           `yaml:"training"`
	Dashboard          DashboardConfig          `yaml:"dashboard"`
	Telegram           TelegramConfig           `yaml:"telegram"`
	RedisURL           string                   `yaml:"redis_url"`
	NATS               NATSConfig               `yaml:"nats"`
}

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// CollectConfig controls the collection cycle.
type CollectConfig struct {
	Schedule            string   `yaml:"schedule"`
	Limit               int      `yaml:"limit"`
	QueryTerms          []string `yaml:"query_terms"`
	KeepUntagged        bool     `yaml:"keep_untagged"`
	FetchLinkedArticles bool     `yaml:"fetch_linked_articles"`
	FetchTimeoutSec     int      `yaml:"fetch_timeout_secs"`
	RetentionDays       int      `yaml:"retention_days"`
}

type TwitterConfig struct {
	BearerToken string `yaml:"bearer_token"`
	PauseSec    int    `yaml:"pause_secs"`
}

type RedditConfig struct {
	ClientID        string   `yaml:"client_id"`
	ClientSecret    string   `yaml:"client_secret"`
	UserAgent       string   `yaml:"user_agent"`
	Subreddits      []string `yaml:"subreddits"`
	IncludeComments bool     `yaml:"include_comments"`
	PauseSec        float64  `yaml:"pause_secs"`
}

type HackerNewsConfig struct {
	HitsPerPage int `yaml:"hits_per_page"`
}

type ArtificialAnalysisConfig struct {
	APIKey      string `yaml:"api_key"`
	TimeoutSec  int    `yaml:"timeout_secs"`
	CacheTTLMin int    `yaml:"cache_ttl_mins"`
}

// SentimentConfig selects and tunes the analyzer chain.
type SentimentConfig struct {
	ModelDir        string `yaml:"model_dir"`
	UseCustomModel  bool   `yaml:"use_custom_model"`
	LexiconFallback bool   `yaml:"lexicon_fallback"`
	BatchSize       int    `yaml:"batch_size"`
}

// TrainingConfig holds data preparation and model hyperparameters.
type TrainingConfig struct {
	RawDir        string  `yaml:"raw_dir"`
	ProcessedDir  string  `yaml:"processed_dir"`
	OutputDir     string  `yaml:"output_dir"`
	ModelType     string  `yaml:"model_type"`
	MaxVocabSize  int     `yaml:"max_vocab_size"`
	MaxLength     int     `yaml:"max_length"`
	EmbeddingDim  int     `yaml:"embedding_dim"`
	LSTMUnits     int     `yaml:"lstm_units"`
	UseAttention  bool    `yaml:"use_attention"`
	NumHeads      int     `yaml:"num_heads"`
	FFDim         int     `yaml:"ff_dim"`
	Dropout       float64 `yaml:"dropout"` // 0 selects the architecture default
	Epochs        int     `yaml:"epochs"`
	BatchSize     int     `yaml:"batch_size"`
	LearningRate  float64 `yaml:"learning_rate"`
	Seed          int64   `yaml:"seed"`
	TestSize      float64 `yaml:"test_size"`
	ValSize       float64 `yaml:"val_size"`
	Synthetic     bool    `yaml:"synthetic_reviews"`
}

type DashboardConfig struct {
	Addr       string `yaml:"addr"`
	DefaultTop int    `yaml:"default_top"`
	WindowDays int    `yaml:"window_days"` // 0 rates every stored mention
}

type TelegramConfig struct {
	Token      string `yaml:"token"`
	ChatID     int64  `yaml:"chat_id"`
	DigestTime string `yaml:"digest_time"`
	TopN       int    `yaml:"top_n"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Defaults returns a Config with all default values set.
func Defaults() Config {
	return Config{
		Environment: "development",
		DataDir:     "./data",
		DBPath:      "./data/aisentinel.db",
		Timezone:    "UTC",
		LogLevel:    "info",
		Log: LogConfig{
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Collect: CollectConfig{
			Schedule:        "0 */6 * * *",
			Limit:           200,
			FetchTimeoutSec: 10,
			RetentionDays:   90,
		},
		Twitter: TwitterConfig{PauseSec: 2},
		Reddit: RedditConfig{
			UserAgent:       "aisentinel/0.1.0",
			Subreddits:      []string{"MachineLearning", "ArtificialInteligence", "OpenAI", "DataScience"},
			IncludeComments: true,
			PauseSec:        1,
		},
		HackerNews: HackerNewsConfig{HitsPerPage: 50},
		ArtificialAnalysis: ArtificialAnalysisConfig{
			TimeoutSec:  30,
			CacheTTLMin: 60,
		},
		Sentiment: SentimentConfig{
			ModelDir:        "./models/latest",
			UseCustomModel:  true,
			LexiconFallback: true,
			BatchSize:       16,
		},
		Training: TrainingConfig{
			RawDir:       "./data/raw",
			ProcessedDir: "./data/processed",
			OutputDir:    "./models",
			ModelType:    "lstm",
			MaxVocabSize: 10000,
			MaxLength:    128,
			EmbeddingDim: 128,
			LSTMUnits:    64,
			UseAttention: true,
			NumHeads:     4,
			FFDim:        128,
			Epochs:       20,
			BatchSize:    32,
			LearningRate: 0.001,
			Seed:         42,
			TestSize:     0.2,
			ValSize:      0.1,
			Synthetic:    true,
		},
		Dashboard: DashboardConfig{
			Addr:       ":8501",
			DefaultTop: 10,
		},
		Telegram: TelegramConfig{
			DigestTime: "09:00",
			TopN:       10,
		},
		NATS: NATSConfig{Subject: "aisentinel.mentions"},
	}
}

// Load reads a .env file (if any), then a YAML config file over the defaults,
// then applies environment overrides. A missing config file is not an error.
// AISENTINEL_CONFIG overrides the file path.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	if envPath := os.Getenv("AISENTINEL_CONFIG"); envPath != "" {
		path = envPath
	}

	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"ENVIRONMENT":          &c.Environment,
		"DATA_DIR":             &c.DataDir,
		"AISENTINEL_DB":        &c.DBPath,
		"LOG_LEVEL":            &c.LogLevel,
		"TWITTER_BEARER_TOKEN": &c.Twitter.BearerToken,
		"REDDIT_CLIENT_ID":     &c.Reddit.ClientID,
		"REDDIT_CLIENT_SECRET": &c.Reddit.ClientSecret,
		"REDDIT_USER_AGENT":    &c.Reddit.UserAgent,
		"AA_API_KEY":           &c.ArtificialAnalysis.APIKey,
		"TELEGRAM_TOKEN":       &c.Telegram.Token,
		"REDIS_URL":            &c.RedisURL,
		"NATS_URL":             &c.NATS.URL,
		"MODEL_DIR":            &c.Sentiment.ModelDir,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		c.Telegram.ChatID = id
	}
	return nil
}

// Validate checks that values are valid.
func (c *Config) Validate() error {
	switch c.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment %q: must be development, staging or production", c.Environment)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	if err := ValidateTime(c.Telegram.DigestTime); err != nil {
		return err
	}
	if c.Telegram.TopN < 1 || c.Telegram.TopN > 50 {
		return fmt.Errorf("telegram.top_n must be 1-50, got %d", c.Telegram.TopN)
	}

	if c.Dashboard.WindowDays < 0 {
		return fmt.Errorf("dashboard.window_days must not be negative, got %d", c.Dashboard.WindowDays)
	}

	if c.Collect.Limit < 1 {
		return fmt.Errorf("collect.limit must be positive, got %d", c.Collect.Limit)
	}

	switch c.Training.ModelType {
	case "lstm", "transformer":
	default:
		return fmt.Errorf("invalid training.model_type %q: must be lstm or transformer", c.Training.ModelType)
	}
	if c.Training.Dropout < 0 || c.Training.Dropout >= 1 {
		return fmt.Errorf("training.dropout must be in [0,1), got %g", c.Training.Dropout)
	}
	if c.Training.TestSize <= 0 || c.Training.ValSize < 0 || c.Training.TestSize+c.Training.ValSize >= 1 {
		return fmt.Errorf("invalid split sizes test=%g val=%g", c.Training.TestSize, c.Training.ValSize)
	}
	if c.Training.ModelType == "transformer" && (c.Training.NumHeads < 1 || c.Training.EmbeddingDim%c.Training.NumHeads != 0) {
		return fmt.Errorf("training.embedding_dim %d must be divisible by num_heads %d", c.Training.EmbeddingDim, c.Training.NumHeads)
	}

	return nil
}

// ValidateTime checks that a time string is in valid HH:MM 24-hour format.
func ValidateTime(t string) error {
	if len(t) != 5 || t[2] != ':' {
		return fmt.Errorf("invalid time format %q: must be HH:MM", t)
	}

	if t[0] < '0' || t[0] > '9' || t[1] < '0' || t[1] > '9' ||
		t[3] < '0' || t[3] > '9' || t[4] < '0' || t[4] > '9' {
		return fmt.Errorf("invalid time format %q: must be HH:MM", t)
	}

	hour := (int(t[0]-'0') * 10) + int(t[1]-'0')
	minute := (int(t[3]-'0') * 10) + int(t[4]-'0')

	if hour > 23 {
		return fmt.Errorf("invalid time %q: hour must be 0-23", t)
	}
	if minute > 59 {
		return fmt.Errorf("invalid time %q: minute must be 0-59", t)
	}

	return nil
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
