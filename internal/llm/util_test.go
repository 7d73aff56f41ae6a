package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain json",
			input:    `{"passed": true}`,
			expected: `{"passed": true}`,
		},
		{
			name:     "json code block",
			input:    "```json\n{\"passed\": true}\n```",
			expected: `{"passed": true}`,
		},
		{
			name:     "bare code block",
			input:    "```\n{\"passed\": true}\n```",
			expected: `{"passed": true}`,
		},
		{
			name:     "code block with language identifier",
			input:    "```JSON\n{\"passed\": true}\n```",
			expected: `{"passed": true}`,
		},
		{
			name:     "surrounding whitespace",
			input:    "  \n```json\n{\"a\": 1}\n```  \n",
			expected: `{"a": 1}`,
		},
		{
			name:     "content containing backticks",
			input:    "```json\n{\"code\": \"```\"}\n```",
			expected: "{\"code\": \"```\"}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestGetModelFallback(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-pro", cfg.GetModel(TierAdvanced))

	// Unknown tier falls back to standard.
	assert.Equal(t, "gemini-2.5-flash", cfg.GetModel(ModelTier("unknown")))

	liteOnly := &Config{Models: map[ModelTier]string{TierLite: "lite-model"}}
	assert.Equal(t, "lite-model", liteOnly.GetModel(TierAdvanced))
}

func TestWithModel(t *testing.T) {
	cfg := DefaultConfig()
	custom := cfg.WithModel(TierAdvanced, "gemini-exp")

	assert.Equal(t, "gemini-exp", custom.GetModel(TierAdvanced))
	// Original is untouched.
	assert.Equal(t, "gemini-2.5-pro", cfg.GetModel(TierAdvanced))
}
