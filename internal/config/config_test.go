package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/keepsake/internal/domain"
)

// clearEnv unsets the keys for the duration of the test. Setting them to ""
// is not enough: envconfig treats an empty variable as present.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"API_KEY", "USE_MOCK_LLM", "REVEAL_MODE", "LETTER_FORMAT", "STORAGE_BACKEND", "GCP_PROJECT", "LETTER_RETRIES", "VOICE_RETRY_DELAY"} {
		for _, key := range []string{k, envPrefix + "_" + k} {
			if old, ok := os.LookupEnv(key); ok {
				t.Cleanup(func() { os.Setenv(key, old) })
			}
			os.Unsetenv(key)
		}
	}
}

func TestLoad_MissingAPIKeyFails(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestLoad_MockSkipsAPIKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEEPSAKE_USE_MOCK_LLM", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.UseMockLLM)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEEPSAKE_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, domain.RevealBackground, cfg.Reveal())
	assert.Equal(t, domain.LetterFormatText, cfg.Format())
	assert.Equal(t, StorageMemory, cfg.Storage())
	assert.Equal(t, RetryConfig{Retries: 3, Delay: 2 * time.Second}, cfg.LetterRetry())
	assert.Equal(t, RetryConfig{Retries: 2, Delay: 2 * time.Second}, cfg.ImageRetry())
	assert.Equal(t, RetryConfig{Retries: 1, Delay: time.Second}, cfg.VoiceRetry())
}

func TestLoad_UnprefixedAPIKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "from-alt")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-alt", cfg.APIKey)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEEPSAKE_API_KEY", "secret")
	t.Setenv("KEEPSAKE_REVEAL_MODE", "sequential")
	t.Setenv("KEEPSAKE_LETTER_FORMAT", "json")
	t.Setenv("KEEPSAKE_LETTER_RETRIES", "5")
	t.Setenv("KEEPSAKE_VOICE_RETRY_DELAY", "250ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, domain.RevealSequential, cfg.Reveal())
	assert.Equal(t, domain.LetterFormatJSON, cfg.Format())
	assert.Equal(t, 5, cfg.LetterRetry().Retries)
	assert.Equal(t, 250*time.Millisecond, cfg.VoiceRetry().Delay)
	assert.Equal(t, 5, cfg.LetterRetry().Policy().MaxRetries)
}

func TestLoad_RejectsUnknownValues(t *testing.T) {
	cases := map[string]string{
		"KEEPSAKE_REVEAL_MODE":     "eventually",
		"KEEPSAKE_LETTER_FORMAT":   "xml",
		"KEEPSAKE_STORAGE_BACKEND": "s3",
		"KEEPSAKE_LETTER_RETRIES":  "-1",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("KEEPSAKE_API_KEY", "secret")
			t.Setenv(key, val)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_FirestoreNeedsProject(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEEPSAKE_API_KEY", "secret")
	t.Setenv("KEEPSAKE_STORAGE_BACKEND", "firestore")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("KEEPSAKE_GCP_PROJECT", "my-project")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageFirestore, cfg.Storage())
}

func TestProcess_OverrideBeforeValidate(t *testing.T) {
	clearEnv(t)

	cfg, err := Process()
	require.NoError(t, err)
	require.ErrorIs(t, cfg.Validate(), domain.ErrMissingCredential)

	cfg.UseMockLLM = true
	cfg.RevealMode = string(domain.RevealSequential)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, domain.RevealSequential, cfg.Reveal())
}
