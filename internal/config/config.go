package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Vovarama1992/line_tutor/internal/ai"
	"github.com/Vovarama1992/line_tutor/internal/conversation"
)

const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"

	DefaultModels = "gemini-2.5-flash-preview-09-2025,gemini-2.5-flash,gemini-2.0-flash"

	DefaultSystemInstruction = "你是一個英文學習老師，請使用A2-B1等級的簡單英文回復。" +
		"當使用者英文有誤時，請糾正並教學文法、片語、單字等基礎知識。並且不要使用md格式"
)

type Config struct {
	Host string
	Port string

	LineChannelAccessToken string
	LineChannelSecret      string

	GeminiAPIKey      string
	Models            []string
	SystemInstruction string
	Temperature       float32
	FallbackPolicy    ai.Policy
	Backend           string
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	GenerationTimeout time.Duration

	HistoryWindow        int
	HistoryIdleTTL       time.Duration
	HistorySweepInterval time.Duration

	TelegramBotToken      string
	TelegramWebhookSecret string
	TelegramAdminChatID   int64

	DatabaseURL string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3Secure    bool

	AdminToken       string
	WebhookRateLimit int

	LogLevel     string
	LogFile      string
	LogMaxSizeMB int
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Host:                   "0.0.0.0",
		Port:                   envOrDefault("PORT", "8080"),
		LineChannelAccessToken: os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
		LineChannelSecret:      os.Getenv("LINE_CHANNEL_SECRET"),
		GeminiAPIKey:           os.Getenv("GEMINI_API_KEY"),
		Models:                 ai.ParseModels(envOrDefault("GEMINI_MODELS", DefaultModels)),
		SystemInstruction:      envOrDefault("SYSTEM_INSTRUCTION", DefaultSystemInstruction),
		Backend:                strings.ToLower(envOrDefault("GENERATION_BACKEND", BackendGemini)),
		OpenAIBaseURL:          envOrDefault("OPENAI_BASE_URL", ai.DefaultOpenAIBaseURL),
		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookSecret:  os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		S3Endpoint:             os.Getenv("S3_ENDPOINT"),
		S3AccessKey:            os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:            os.Getenv("S3_SECRET_KEY"),
		S3Bucket:               os.Getenv("S3_BUCKET"),
		S3Region:               os.Getenv("S3_REGION"),
		AdminToken:             os.Getenv("ADMIN_TOKEN"),
		LogLevel:               envOrDefault("LOG_LEVEL", "info"),
		LogFile:                os.Getenv("LOG_FILE"),
	}

	var missing []string
	for _, req := range []struct{ key, val string }{
		{"LINE_CHANNEL_ACCESS_TOKEN", cfg.LineChannelAccessToken},
		{"LINE_CHANNEL_SECRET", cfg.LineChannelSecret},
		{"GEMINI_API_KEY", cfg.GeminiAPIKey},
	} {
		if req.val == "" {
			missing = append(missing, req.key)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	if len(cfg.Models) == 0 {
		return Config{}, fmt.Errorf("GEMINI_MODELS: %w", ai.ErrNoModels)
	}
	if cfg.Backend != BackendGemini && cfg.Backend != BackendOpenAI {
		return Config{}, fmt.Errorf("GENERATION_BACKEND: unknown backend %q", cfg.Backend)
	}
	cfg.OpenAIAPIKey = envOrDefault("OPENAI_API_KEY", cfg.GeminiAPIKey)

	var err error
	if cfg.FallbackPolicy, err = ai.ParsePolicy(os.Getenv("FALLBACK_POLICY")); err != nil {
		return Config{}, fmt.Errorf("FALLBACK_POLICY: %w", err)
	}

	temp, err := envFloatOrDefault("TEMPERATURE", 0.7)
	if err != nil {
		return Config{}, err
	}
	cfg.Temperature = float32(temp)

	if cfg.GenerationTimeout, err = envDurationOrDefault("GENERATION_TIMEOUT", 0); err != nil {
		return Config{}, err
	}
	if cfg.HistoryIdleTTL, err = envDurationOrDefault("HISTORY_IDLE_TTL", 0); err != nil {
		return Config{}, err
	}
	if cfg.HistorySweepInterval, err = envDurationOrDefault("HISTORY_SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.HistoryIdleTTL > 0 && cfg.HistorySweepInterval <= 0 {
		return Config{}, fmt.Errorf("HISTORY_SWEEP_INTERVAL: must be positive when HISTORY_IDLE_TTL is set, got %s", cfg.HistorySweepInterval)
	}

	window, err := envIntOrDefault("HISTORY_WINDOW", conversation.DefaultWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryWindow = conversation.NormalizeWindow(window)

	if cfg.WebhookRateLimit, err = envIntOrDefault("WEBHOOK_RATE_LIMIT", 600); err != nil {
		return Config{}, err
	}
	if cfg.WebhookRateLimit <= 0 {
		return Config{}, fmt.Errorf("WEBHOOK_RATE_LIMIT: must be positive, got %d", cfg.WebhookRateLimit)
	}
	if cfg.LogMaxSizeMB, err = envIntOrDefault("LOG_MAX_SIZE_MB", 50); err != nil {
		return Config{}, err
	}

	cfg.S3Secure = true
	if raw := os.Getenv("S3_SECURE"); raw != "" {
		if cfg.S3Secure, err = strconv.ParseBool(raw); err != nil {
			return Config{}, fmt.Errorf("S3_SECURE: %w", err)
		}
	}

	if raw := os.Getenv("TELEGRAM_ADMIN_CHAT_ID"); raw != "" {
		if cfg.TelegramAdminChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return Config{}, fmt.Errorf("TELEGRAM_ADMIN_CHAT_ID: %w", err)
		}
	}

	return cfg, nil
}

// MirrorEnabled reports whether exchanges are copied to object storage.
func (c Config) MirrorEnabled() bool {
	return c.S3Endpoint != "" && c.S3Bucket != ""
}

func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func envFloatOrDefault(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}

func envDurationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
