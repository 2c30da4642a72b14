package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AISENTINEL_CONFIG", "ENVIRONMENT", "DATA_DIR", "AISENTINEL_DB", "LOG_LEVEL",
		"TWITTER_BEARER_TOKEN", "REDDIT_CLIENT_ID", "REDDIT_CLIENT_SECRET", "REDDIT_USER_AGENT",
		"AA_API_KEY", "TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID", "REDIS_URL", "NATS_URL", "MODEL_DIR",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.Environment != "development" {
		t.Errorf("expected default environment development, got %s", d.Environment)
	}
	if d.Timezone != "UTC" {
		t.Errorf("expected default timezone UTC, got %s", d.Timezone)
	}
	if d.Reddit.UserAgent != "aisentinel/0.1.0" {
		t.Errorf("expected default user agent aisentinel/0.1.0, got %s", d.Reddit.UserAgent)
	}
	if len(d.Reddit.Subreddits) != 4 {
		t.Errorf("expected 4 default subreddits, got %d", len(d.Reddit.Subreddits))
	}
	if d.HackerNews.HitsPerPage != 50 {
		t.Errorf("expected default hits per page 50, got %d", d.HackerNews.HitsPerPage)
	}
	if d.Sentiment.BatchSize != 16 {
		t.Errorf("expected default batch size 16, got %d", d.Sentiment.BatchSize)
	}
	if d.Training.MaxVocabSize != 10000 || d.Training.MaxLength != 128 {
		t.Errorf("unexpected tokenizer defaults: vocab=%d len=%d", d.Training.MaxVocabSize, d.Training.MaxLength)
	}
	if d.Training.Epochs != 20 || d.Training.BatchSize != 32 || d.Training.LearningRate != 0.001 {
		t.Errorf("unexpected training defaults: %+v", d.Training)
	}
	if d.Dashboard.DefaultTop != 10 {
		t.Errorf("expected default top 10, got %d", d.Dashboard.DefaultTop)
	}
	if d.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", d.LogLevel)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
environment: staging
timezone: "Europe/Rome"
collect:
  limit: 50
  query_terms: ["claude", "cursor"]
reddit:
  subreddits: ["LocalLLaMA"]
telegram:
  chat_id: 12345
  digest_time: "18:30"
dashboard:
  window_days: 30
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Environment != "staging" {
		t.Errorf("expected environment staging, got %s", cfg.Environment)
	}
	if cfg.Timezone != "Europe/Rome" {
		t.Errorf("expected timezone Europe/Rome, got %s", cfg.Timezone)
	}
	if cfg.Collect.Limit != 50 {
		t.Errorf("expected collect limit 50, got %d", cfg.Collect.Limit)
	}
	if len(cfg.Collect.QueryTerms) != 2 {
		t.Errorf("expected 2 query terms, got %v", cfg.Collect.QueryTerms)
	}
	if len(cfg.Reddit.Subreddits) != 1 || cfg.Reddit.Subreddits[0] != "LocalLLaMA" {
		t.Errorf("expected subreddits [LocalLLaMA], got %v", cfg.Reddit.Subreddits)
	}
	if cfg.Telegram.ChatID != 12345 {
		t.Errorf("expected chat_id 12345, got %d", cfg.Telegram.ChatID)
	}
	if cfg.Telegram.DigestTime != "18:30" {
		t.Errorf("expected digest_time 18:30, got %s", cfg.Telegram.DigestTime)
	}
	if cfg.Dashboard.WindowDays != 30 || cfg.Dashboard.DefaultTop != 10 {
		t.Errorf("expected window_days 30 and default top 10, got %+v", cfg.Dashboard)
	}
	// Defaults should be preserved for unset fields
	if cfg.Collect.Schedule != "0 */6 * * *" {
		t.Errorf("expected default schedule, got %s", cfg.Collect.Schedule)
	}
	if cfg.Reddit.UserAgent != "aisentinel/0.1.0" {
		t.Errorf("expected default user agent, got %s", cfg.Reddit.UserAgent)
	}
}

func TestLoad_FileNotFoundUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath != Defaults().DBPath {
		t.Errorf("expected default db path, got %s", cfg.DBPath)
	}
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `environment: "prod"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid environment")
	}
}

func TestLoad_InvalidTime(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
telegram:
  digest_time: "25:00"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid time")
	}
}

func TestLoad_InvalidTimezone(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `timezone: "Invalid/Zone"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestLoad_NegativeDashboardWindow(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
dashboard:
  window_days: -1
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative dashboard window")
	}
}

func TestLoad_InvalidModelType(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
training:
  model_type: "gru"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid model type")
	}
}

func TestLoad_TransformerHeadsMustDivideDim(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
training:
  model_type: "transformer"
  embedding_dim: 30
  num_heads: 4
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for indivisible embedding dim")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
environment: "test
  invalid: yaml: [
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvConfigPath(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `environment: production`)
	t.Setenv("AISENTINEL_CONFIG", path)
	cfg, err := Load("wrong-path.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.IsProduction() {
		t.Errorf("expected production, got %s", cfg.Environment)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
twitter:
  bearer_token: "from-file"
`)
	t.Setenv("AISENTINEL_DB", "/custom/db.sqlite")
	t.Setenv("TWITTER_BEARER_TOKEN", "from-env")
	t.Setenv("AA_API_KEY", "aa-key")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath != "/custom/db.sqlite" {
		t.Errorf("expected /custom/db.sqlite, got %s", cfg.DBPath)
	}
	if cfg.Twitter.BearerToken != "from-env" {
		t.Errorf("expected env token to win, got %s", cfg.Twitter.BearerToken)
	}
	if cfg.ArtificialAnalysis.APIKey != "aa-key" {
		t.Errorf("expected aa-key, got %s", cfg.ArtificialAnalysis.APIKey)
	}
	if cfg.Telegram.ChatID != -100123 {
		t.Errorf("expected chat id -100123, got %d", cfg.Telegram.ChatID)
	}
}

func TestLoad_InvalidChatIDEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_CHAT_ID", "abc")
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Fatal("expected error for non-numeric chat id")
	}
}

func TestValidateTime(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"00:00", true},
		{"09:00", true},
		{"23:59", true},
		{"24:00", false},
		{"23:60", false},
		{"9:00", false},
		{"abc", false},
		{"12:0a", false},
		{"", false},
	}

	for _, tt := range tests {
		err := ValidateTime(tt.input)
		if tt.valid && err != nil {
			t.Errorf("ValidateTime(%q) returned unexpected error: %v", tt.input, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("ValidateTime(%q) expected error, got nil", tt.input)
		}
	}
}
