package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "ARK_MODEL",
		"ARK_TEMPERATURE", "ARK_TOP_P", "ARK_MAX_TOKENS", "RULES_FILE",
		"LOG_LEVEL", "LOG_FILE", "LOG_NO_COLORS",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_KEY_PREFIX", "SESSION_TTL",
		"SPEECH_APP_ID", "SPEECH_ACCESS_TOKEN", "SPEECH_TTS_VOICE", "SPEECH_TTS_ENDPOINT",
		"SPEECH_TTS_FORMAT", "SPEECH_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.AI.Enabled())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Rules.Path)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "companion:session:", cfg.Redis.KeyPrefix)
	assert.False(t, cfg.Speech.Enabled())
	assert.Equal(t, 30*time.Second, cfg.Speech.Timeout)
	assert.Equal(t, "mp3", cfg.Speech.Format)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("ARK_API_KEY", "key")
	t.Setenv("ARK_MODEL", "doubao")
	t.Setenv("ARK_TEMPERATURE", "0.3")
	t.Setenv("RULES_FILE", "/etc/companion/rules.yaml")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SPEECH_APP_ID", "app")
	t.Setenv("SPEECH_ACCESS_TOKEN", "token")
	t.Setenv("SPEECH_TIMEOUT", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.True(t, cfg.AI.Enabled())
	require.NotNil(t, cfg.AI.Temperature)
	assert.InDelta(t, 0.3, *cfg.AI.Temperature, 1e-9)
	assert.Equal(t, "/etc/companion/rules.yaml", cfg.Rules.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 30*time.Minute, cfg.Redis.TTL)
	assert.True(t, cfg.Speech.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Speech.Timeout)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":           "80 80",
		"ARK_TOP_P":      "high",
		"ARK_MAX_TOKENS": "many",
		"LOG_NO_COLORS":  "sometimes",
		"REDIS_DB":       "first",
		"SESSION_TTL":    "-1h",
		"SPEECH_TIMEOUT": "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNewChatModelRequiresCredentials(t *testing.T) {
	_, err := AIConfig{Model: "doubao"}.NewChatModel(t.Context())
	assert.Error(t, err)
}
