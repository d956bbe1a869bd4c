package config

import (
	"testing"
	"time"

	"github.com/Vovarama1992/line_tutor/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var optionalKeys = []string{
	"PORT", "GEMINI_MODELS", "SYSTEM_INSTRUCTION", "TEMPERATURE", "FALLBACK_POLICY",
	"GENERATION_BACKEND", "OPENAI_BASE_URL", "OPENAI_API_KEY", "GENERATION_TIMEOUT",
	"HISTORY_WINDOW", "HISTORY_IDLE_TTL", "HISTORY_SWEEP_INTERVAL", "TELEGRAM_ADMIN_CHAT_ID",
	"WEBHOOK_RATE_LIMIT", "LOG_MAX_SIZE_MB", "S3_ENDPOINT", "S3_BUCKET", "S3_SECURE",
}

func setRequired(t *testing.T) {
	t.Helper()
	for _, key := range optionalKeys {
		t.Setenv(key, "")
	}
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "token")
	t.Setenv("LINE_CHANNEL_SECRET", "secret")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, []string{"gemini-2.5-flash-preview-09-2025", "gemini-2.5-flash", "gemini-2.0-flash"}, cfg.Models)
	assert.Equal(t, ai.PolicyLastSuccess, cfg.FallbackPolicy)
	assert.Equal(t, BackendGemini, cfg.Backend)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-6)
	assert.Equal(t, 20, cfg.HistoryWindow)
	assert.Zero(t, cfg.HistoryIdleTTL)
	assert.Zero(t, cfg.GenerationTimeout)
	assert.Equal(t, time.Minute, cfg.HistorySweepInterval)
	assert.Equal(t, "gemini-key", cfg.OpenAIAPIKey)
	assert.Equal(t, ai.DefaultOpenAIBaseURL, cfg.OpenAIBaseURL)
	assert.Equal(t, DefaultSystemInstruction, cfg.SystemInstruction)
	assert.Equal(t, 600, cfg.WebhookRateLimit)
}

func TestLoad_MissingSecrets(t *testing.T) {
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "")
	t.Setenv("LINE_CHANNEL_SECRET", "secret")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LINE_CHANNEL_ACCESS_TOKEN, GEMINI_API_KEY")
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9000")
	t.Setenv("GEMINI_MODELS", "m1, m2,M1")
	t.Setenv("FALLBACK_POLICY", "first_success")
	t.Setenv("GENERATION_BACKEND", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "other-key")
	t.Setenv("TEMPERATURE", "0.2")
	t.Setenv("GENERATION_TIMEOUT", "30s")
	t.Setenv("HISTORY_WINDOW", "9")
	t.Setenv("HISTORY_IDLE_TTL", "24h")
	t.Setenv("TELEGRAM_ADMIN_CHAT_ID", "-100123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, []string{"m1", "m2"}, cfg.Models)
	assert.Equal(t, ai.PolicyFirstSuccess, cfg.FallbackPolicy)
	assert.Equal(t, BackendOpenAI, cfg.Backend)
	assert.Equal(t, "other-key", cfg.OpenAIAPIKey)
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-6)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 8, cfg.HistoryWindow)
	assert.Equal(t, 24*time.Hour, cfg.HistoryIdleTTL)
	assert.Equal(t, int64(-100123), cfg.TelegramAdminChatID)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, val string
		extra    map[string]string
	}{
		{"FALLBACK_POLICY", "random", nil},
		{"GENERATION_BACKEND", "claude", nil},
		{"TEMPERATURE", "warm", nil},
		{"GENERATION_TIMEOUT", "soon", nil},
		{"HISTORY_WINDOW", "twenty", nil},
		{"TELEGRAM_ADMIN_CHAT_ID", "admin", nil},
		{"GEMINI_MODELS", " , ", nil},
		{"HISTORY_SWEEP_INTERVAL", "0s", map[string]string{"HISTORY_IDLE_TTL": "1h"}},
		{"HISTORY_SWEEP_INTERVAL", "-5s", map[string]string{"HISTORY_IDLE_TTL": "1h"}},
		{"WEBHOOK_RATE_LIMIT", "0", nil},
		{"WEBHOOK_RATE_LIMIT", "-1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.extra {
				t.Setenv(k, v)
			}
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_ObjectMirror(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MirrorEnabled())
	assert.True(t, cfg.S3Secure)

	t.Setenv("S3_ENDPOINT", "minio:9000")
	t.Setenv("S3_BUCKET", "transcripts")
	t.Setenv("S3_SECURE", "false")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.MirrorEnabled())
	assert.False(t, cfg.S3Secure)

	t.Setenv("S3_SECURE", "sometimes")
	_, err = Load()
	assert.ErrorContains(t, err, "S3_SECURE")
}

func TestLoad_SweepIntervalIgnoredWithoutIdleTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("HISTORY_SWEEP_INTERVAL", "0s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.HistoryIdleTTL)
}
