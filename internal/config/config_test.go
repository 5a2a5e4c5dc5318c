package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Chatbot.TimeoutSeconds != 15 {
		t.Errorf("TimeoutSeconds = %d, want 15", cfg.Chatbot.TimeoutSeconds)
	}
	if cfg.Chatbot.Timeout() != 15*time.Second {
		t.Errorf("Timeout() = %v, want 15s", cfg.Chatbot.Timeout())
	}
	if cfg.Chatbot.QuestionRepeatThreshold != 0.7 || cfg.Chatbot.AnswerRepeatThreshold != 0.6 {
		t.Errorf("unexpected thresholds: %v / %v", cfg.Chatbot.QuestionRepeatThreshold, cfg.Chatbot.AnswerRepeatThreshold)
	}
	if cfg.Chatbot.HistoryWindow != 3 {
		t.Errorf("HistoryWindow = %d, want 3", cfg.Chatbot.HistoryWindow)
	}
	if !cfg.Chatbot.Enabled || !cfg.Chatbot.FeedbackEnabled {
		t.Error("chatbot and feedback should be enabled by default")
	}
	if cfg.HTTPAddr() != "0.0.0.0:8080" {
		t.Errorf("HTTPAddr() = %q", cfg.HTTPAddr())
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
port = 9090
log_level = "debug"

[chatbot]
model = "gemini-file"
api_key = "from-file"
question_repeat_threshold = 0.8
feedback_enabled = false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("CHATBOT_ANSWER_REPEAT_THRESHOLD", "0.5")
	t.Setenv("CHATBOT_ENABLED", "false")
	t.Setenv("APP_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Port != 9090 {
		t.Errorf("Port = %d, want 9090 (invalid env ignored)", cfg.App.Port)
	}
	if cfg.LogLevel() != slog.LevelDebug {
		t.Errorf("LogLevel() = %v, want debug", cfg.LogLevel())
	}
	if cfg.Chatbot.Model != "gemini-file" {
		t.Errorf("Model = %q", cfg.Chatbot.Model)
	}
	if cfg.Chatbot.APIKey != "from-env" {
		t.Errorf("APIKey = %q, env should win", cfg.Chatbot.APIKey)
	}
	if cfg.Chatbot.QuestionRepeatThreshold != 0.8 {
		t.Errorf("QuestionRepeatThreshold = %v", cfg.Chatbot.QuestionRepeatThreshold)
	}
	if cfg.Chatbot.AnswerRepeatThreshold != 0.5 {
		t.Errorf("AnswerRepeatThreshold = %v", cfg.Chatbot.AnswerRepeatThreshold)
	}
	if cfg.Chatbot.Enabled {
		t.Error("CHATBOT_ENABLED=false should disable the chatbot")
	}
	if cfg.Chatbot.FeedbackEnabled {
		t.Error("feedback_enabled from file should be false")
	}
	if cfg.Chatbot.HistoryWindow != 3 {
		t.Errorf("HistoryWindow = %d, default should survive partial file", cfg.Chatbot.HistoryWindow)
	}
}
