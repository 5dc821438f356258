package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialPatterns(t *testing.T) {
	tests := []struct {
		name       string
		pattern    credentialPattern
		credential string
		ok         bool
	}{
		{name: "openai_valid", pattern: openAICredentialPattern, credential: "sk-abcdefghijklmnopqrstuvwx", ok: true},
		{name: "openai_too_short", pattern: openAICredentialPattern, credential: "sk-short", ok: false},
		{name: "openai_wrong_prefix", pattern: openAICredentialPattern, credential: "pk-abcdefghijklmnopqrstuvwx", ok: false},
		{name: "anthropic_valid", pattern: anthropicCredentialPattern, credential: "sk-ant-REDACTED", ok: true},
		{name: "anthropic_missing_ant", pattern: anthropicCredentialPattern, credential: "sk-abcdefghijklmnopqrstuvwx", ok: false},
		{name: "google_valid", pattern: googleCredentialPattern, credential: "AIzaSyAbCdEfGhIjKlMnOpQr", ok: true},
		{name: "google_too_short", pattern: googleCredentialPattern, credential: "AIza", ok: false},
		{name: "whitespace_rejected", pattern: googleCredentialPattern, credential: "AIzaSy AbCdEfGhIjKlMnOpQr", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pattern.check(tt.credential)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var construction *ConstructionError
			require.ErrorAs(t, err, &construction)
			assert.Equal(t, KeyCredential, construction.Field)
		})
	}

	t.Run("empty_is_the_sentinel", func(t *testing.T) {
		assert.ErrorIs(t, openAICredentialPattern.check(""), ErrEmptyCredential)
	})
}

func TestCredentialErrorsRedactTheSecret(t *testing.T) {
	secret := "pk-abcdefghijklmnopqrstuvwx"
	err := openAICredentialPattern.check(secret)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), secret)
	assert.Contains(t, err.Error(), "pk-a...uvwx")
}

func TestCheckSupportedModel(t *testing.T) {
	supported := []string{"gpt-4", "gpt-4o", "gpt-3.5-turbo"}

	assert.NoError(t, checkSupportedModel("gpt-4o", supported))

	t.Run("typo_gets_a_suggestion", func(t *testing.T) {
		err := checkSupportedModel("gpt-4p", supported)
		var construction *ConstructionError
		require.ErrorAs(t, err, &construction)
		assert.Equal(t, KeyModel, construction.Field)
		assert.Contains(t, construction.Domain, `"gpt-4`)
	})

	t.Run("distant_name_gets_no_suggestion", func(t *testing.T) {
		err := checkSupportedModel("claude-3.5-sonnet", supported)
		var construction *ConstructionError
		require.ErrorAs(t, err, &construction)
		assert.NotContains(t, construction.Domain, "closest match")
	})
}

func TestClosestMatch(t *testing.T) {
	providers := []string{"anthropic", "google", "local", "openai"}
	assert.Equal(t, "openai", closestMatch("openaii", providers))
	assert.Equal(t, "google", closestMatch("googel", providers))
	assert.Equal(t, "", closestMatch("bedrock", providers))
	assert.Equal(t, "", closestMatch("", providers))
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
		ok       bool
	}{
		{name: "https", endpoint: "https://api.example.com/v1", want: "https://api.example.com/v1", ok: true},
		{name: "http_localhost", endpoint: "http://localhost:11434/v1", want: "http://localhost:11434/v1", ok: true},
		{name: "missing_scheme", endpoint: "localhost:11434", ok: false},
		{name: "ftp_scheme", endpoint: "ftp://example.com", ok: false},
		{name: "scheme_only", endpoint: "https://", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateEndpoint(tt.endpoint)
			if !tt.ok {
				var construction *ConstructionError
				require.ErrorAs(t, err, &construction)
				assert.Equal(t, KeyEndpoint, construction.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedactSecret(t *testing.T) {
	assert.Equal(t, "********", redactSecret("short"))
	assert.Equal(t, "********", redactSecret(""))
	assert.Equal(t, "sk-a...wxyz", redactSecret("sk-abcdefghijklmnopqrstuvwxyz"))
}
