package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uxagent/internal/config"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.LLMConfig)
		wantType any
		wantErr  string
	}{
		{
			name:     "gemini",
			mutate:   func(c *config.LLMConfig) {},
			wantType: &GeminiClient{},
		},
		{
			name:     "openai",
			mutate:   func(c *config.LLMConfig) { c.Provider = config.ProviderOpenAI },
			wantType: &OpenAIClient{},
		},
		{
			name:     "rate limited",
			mutate:   func(c *config.LLMConfig) { c.RequestsPerMinute = 30 },
			wantType: &RateLimitedClient{},
		},
		{
			name:    "unknown provider",
			mutate:  func(c *config.LLMConfig) { c.Provider = "llama" },
			wantErr: "unsupported LLM provider",
		},
		{
			name:    "missing key",
			mutate:  func(c *config.LLMConfig) { c.APIKey = "" },
			wantErr: "API key is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidLLMConfig()
			tt.mutate(&cfg)
			client, err := NewClient(cfg, setupTestLogger(t))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, client)
			assert.NoError(t, client.Close())
		})
	}
}
