package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name      string
		provider  string
		jinaKey   string
		openaiKey string
		want      string
	}{
		{name: "explicit provider", provider: "OpenAI", jinaKey: "j", want: ProviderOpenAI},
		{name: "jina key", jinaKey: "j", openaiKey: "o", want: ProviderJina},
		{name: "openai key", openaiKey: "o", want: ProviderOpenAI},
		{name: "no keys", want: ProviderLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvProvider, tt.provider)
			t.Setenv(EnvJinaAPIKey, tt.jinaKey)
			t.Setenv(EnvOpenAIAPIKey, tt.openaiKey)

			assert.Equal(t, tt.want, DetectProvider())
		})
	}
}

func TestNew(t *testing.T) {
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")

	t.Run("local by default", func(t *testing.T) {
		e, err := New(Config{CacheSize: 10})
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, e.Provider())
		assert.Equal(t, LocalDimension, e.Dimension())
	})

	t.Run("api key from environment", func(t *testing.T) {
		t.Setenv(EnvJinaAPIKey, "from-env")
		e, err := New(Config{Provider: "jina"})
		require.NoError(t, err)
		assert.Equal(t, ProviderJina, e.Provider())
		assert.Equal(t, "from-env", e.(*HTTPProvider).apiKey)
	})

	t.Run("remote provider without key", func(t *testing.T) {
		_, err := New(Config{Provider: "openai"})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(Config{Provider: "ollama"})
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})

	t.Run("from env", func(t *testing.T) {
		e, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, e.Provider())
	})
}
