package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solumlabs/aibridge/internal/ports"
)

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name          string
		reply         string
		wantSentiment string
		wantScore     float64
		wantLanguage  string
		wantFallback  bool
	}{
		{
			name:          "plain_json",
			reply:         `{"sentiment":"positive","score":0.9,"keywords":["a"],"categories":["b"],"language":"en"}`,
			wantSentiment: "positive",
			wantScore:     0.9,
			wantLanguage:  "en",
		},
		{
			name: "code_fenced_json",
			reply: "```json\n" +
				`{"sentiment":"negative","score":0.7,"language":"pt-BR"}` +
				"\n```",
			wantSentiment: "negative",
			wantScore:     0.7,
			wantLanguage:  "pt",
		},
		{
			name:          "json_with_surrounding_prose",
			reply:         `Here is the analysis: {"sentiment":"mixed","score":0.6,"language":"DE"} hope that helps!`,
			wantSentiment: "mixed",
			wantScore:     0.6,
			wantLanguage:  "de",
		},
		{
			name:          "score_clamped_high",
			reply:         `{"sentiment":"positive","score":4.2,"language":"en"}`,
			wantSentiment: "positive",
			wantScore:     1.0,
			wantLanguage:  "en",
		},
		{
			name:          "score_clamped_low",
			reply:         `{"sentiment":"negative","score":-1,"language":"en"}`,
			wantSentiment: "negative",
			wantScore:     0.0,
			wantLanguage:  "en",
		},
		{
			name:          "unrecognized_sentiment_coerced_to_neutral",
			reply:         `{"sentiment":"ecstatic","score":0.8,"language":"en"}`,
			wantSentiment: "neutral",
			wantScore:     0.8,
			wantLanguage:  "en",
		},
		{
			name:          "unparseable_language",
			reply:         `{"sentiment":"neutral","score":0.5,"language":"???"}`,
			wantSentiment: "neutral",
			wantScore:     0.5,
			wantLanguage:  "unknown",
		},
		{
			name:         "no_json_at_all",
			reply:        "I cannot analyze that.",
			wantFallback: true,
		},
		{
			name:         "broken_json",
			reply:        `{"sentiment": "positive", "score":`,
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseAnalysis(tt.reply, "original text")
			require.NotNil(t, result)

			if tt.wantFallback {
				assert.Equal(t, "neutral", result.Sentiment)
				assert.Equal(t, fallbackScore, result.Score)
				assert.Equal(t, "unknown", result.Language)
				assert.Equal(t, "original text", result.Raw,
					"the fallback carries the original text so callers can spot it")
				return
			}

			assert.Equal(t, tt.wantSentiment, result.Sentiment)
			assert.InDelta(t, tt.wantScore, result.Score, 1e-6)
			assert.Equal(t, tt.wantLanguage, result.Language)
			assert.NotNil(t, result.Keywords)
			assert.NotNil(t, result.Categories)
		})
	}
}

func TestAnalyzeText(t *testing.T) {
	t.Run("blank_input_rejected", func(t *testing.T) {
		called := false
		_, err := analyzeText(context.Background(), "  \n\t ", 1000,
			func(context.Context, []ports.ChatMessage, callOverrides) (string, error) {
				called = true
				return "", nil
			})
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.False(t, called)
	})

	t.Run("pins_low_temperature_and_token_cap", func(t *testing.T) {
		var got callOverrides
		_, err := analyzeText(context.Background(), "some text", 4000,
			func(_ context.Context, _ []ports.ChatMessage, ov callOverrides) (string, error) {
				got = ov
				return `{"sentiment":"neutral","score":0.5,"language":"en"}`, nil
			})
		require.NoError(t, err)
		require.NotNil(t, got.temperature)
		assert.Equal(t, analysisTemperature, *got.temperature)
		require.NotNil(t, got.maxTokens)
		assert.Equal(t, analysisMaxTokens, *got.maxTokens)
	})

	t.Run("smaller_configured_budget_kept", func(t *testing.T) {
		var got callOverrides
		_, err := analyzeText(context.Background(), "some text", 200,
			func(_ context.Context, _ []ports.ChatMessage, ov callOverrides) (string, error) {
				got = ov
				return `{"sentiment":"neutral","score":0.5,"language":"en"}`, nil
			})
		require.NoError(t, err)
		assert.Equal(t, 200, *got.maxTokens)
	})

	t.Run("provider_errors_propagate", func(t *testing.T) {
		upstream := &ProviderError{Type: ErrorTypeAuthentication, StatusCode: 401}
		_, err := analyzeText(context.Background(), "some text", 1000,
			func(context.Context, []ports.ChatMessage, callOverrides) (string, error) {
				return "", upstream
			})
		assert.ErrorIs(t, err, upstream)
	})

	t.Run("prompt_embeds_the_text", func(t *testing.T) {
		var prompt string
		_, err := analyzeText(context.Background(), "needle in the prompt", 1000,
			func(_ context.Context, messages []ports.ChatMessage, _ callOverrides) (string, error) {
				require.Len(t, messages, 1)
				prompt = messages[0].Content
				return `{"sentiment":"neutral","score":0.5,"language":"en"}`, nil
			})
		require.NoError(t, err)
		assert.Contains(t, prompt, "needle in the prompt")
		assert.Contains(t, prompt, `"sentiment"`)
	})
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "en", normalizeLanguage("en-US"))
	assert.Equal(t, "en", normalizeLanguage("EN"))
	assert.Equal(t, "pt", normalizeLanguage("pt-BR"))
	assert.Equal(t, "unknown", normalizeLanguage(""))
	assert.Equal(t, "unknown", normalizeLanguage("not a tag!!"))
}
