// Package application wires host-facing concerns around the provider core:
// loading the administrator-configured defaults and resolving stored
// credentials through the cipher.
package application

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/solumlabs/aibridge/infrastructure/llm"
	"github.com/solumlabs/aibridge/infrastructure/secrets"
)

// maxSettingsBytes bounds settings files to keep a corrupted or hostile
// file from ballooning memory.
const maxSettingsBytes = 1 << 20

// Settings is the flat shape the host persists from its settings screens.
// Pointer fields distinguish "unset, use the package default" from an
// explicit zero. Full domain validation happens at client construction;
// the tags here only catch obviously broken files early.
type Settings struct {
	Provider         string   `yaml:"provider" validate:"required,min=1,max=64"`
	Credential       string   `yaml:"credential" validate:"omitempty,max=512"`
	Model            string   `yaml:"model" validate:"omitempty,max=128"`
	Temperature      *float64 `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens        *int     `yaml:"max_tokens" validate:"omitempty,gte=1,lte=32000"`
	TopP             *float64 `yaml:"top_p" validate:"omitempty,gte=0,lte=1"`
	FrequencyPenalty *float64 `yaml:"frequency_penalty" validate:"omitempty,gte=-2,lte=2"`
	PresencePenalty  *float64 `yaml:"presence_penalty" validate:"omitempty,gte=-2,lte=2"`
	TimeoutSeconds   *int     `yaml:"timeout_seconds" validate:"omitempty,gte=1,lte=600"`
	RetryAttempts    *int     `yaml:"retry_attempts" validate:"omitempty,gte=0,lte=10"`
	Endpoint         string   `yaml:"endpoint" validate:"omitempty,url,max=512"`

	// CredentialEncrypted marks Credential as a cipher blob that must be
	// resolved before use.
	CredentialEncrypted bool `yaml:"credential_encrypted"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadSettings reads and validates a YAML settings file.
func LoadSettings(path string) (*Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening settings: %w", err)
	}
	defer f.Close()
	return ReadSettings(f)
}

// ReadSettings decodes and validates settings from a reader.
func ReadSettings(r io.Reader) (*Settings, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxSettingsBytes))
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	if err := validate.Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &s, nil
}

// ResolveCredential decrypts the stored credential when it is marked
// encrypted. A resolution failure is surfaced as-is so the caller treats
// the secret as unavailable rather than using the blob verbatim.
func (s *Settings) ResolveCredential(c *secrets.Cipher) (string, error) {
	if !s.CredentialEncrypted {
		return s.Credential, nil
	}
	return c.Decrypt(s.Credential)
}

// DefaultsMap flattens the settings into the key-value form the client
// factory merges with per-request overrides. Unset fields are omitted so
// the factory's own defaults apply. The credential must already be
// resolved by the caller.
func (s *Settings) DefaultsMap(credential string) map[string]any {
	m := make(map[string]any)
	if credential != "" {
		m[llm.KeyCredential] = credential
	}
	if s.Model != "" {
		m[llm.KeyModel] = s.Model
	}
	if s.Endpoint != "" {
		m[llm.KeyEndpoint] = s.Endpoint
	}
	if s.Temperature != nil {
		m[llm.KeyTemperature] = *s.Temperature
	}
	if s.MaxTokens != nil {
		m[llm.KeyMaxTokens] = *s.MaxTokens
	}
	if s.TopP != nil {
		m[llm.KeyTopP] = *s.TopP
	}
	if s.FrequencyPenalty != nil {
		m[llm.KeyFrequencyPenalty] = *s.FrequencyPenalty
	}
	if s.PresencePenalty != nil {
		m[llm.KeyPresencePenalty] = *s.PresencePenalty
	}
	if s.TimeoutSeconds != nil {
		m[llm.KeyTimeoutSeconds] = *s.TimeoutSeconds
	}
	if s.RetryAttempts != nil {
		m[llm.KeyRetryAttempts] = *s.RetryAttempts
	}
	return m
}
