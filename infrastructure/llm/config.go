package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Default model parameters applied when neither the host defaults nor the
// per-call overrides set a field.
const (
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 1000
	DefaultTopP             = 1.0
	DefaultTimeoutSeconds   = 30
	DefaultRetryAttempts    = 3
	DefaultFrequencyPenalty = 0.0
	DefaultPresencePenalty  = 0.0
)

// Flat configuration keys accepted in the host-supplied maps. These mirror
// the fields the host settings UI collects.
const (
	KeyCredential       = "credential"
	KeyModel            = "model"
	KeyTemperature      = "temperature"
	KeyMaxTokens        = "max_tokens"
	KeyTopP             = "top_p"
	KeyFrequencyPenalty = "frequency_penalty"
	KeyPresencePenalty  = "presence_penalty"
	KeyTimeoutSeconds   = "timeout_seconds"
	KeyRetryAttempts    = "retry_attempts"
	KeyEndpoint         = "endpoint"
)

// Config is the immutable value object a client is constructed from.
// Every field is validated at construction; an invalid configuration never
// produces a usable client. Changing parameters requires constructing a new
// client through the factory.
type Config struct {
	// Provider is the normalized provider id the factory resolved.
	Provider string `validate:"required"`
	// Credential is the opaque secret used to authenticate with the
	// provider. Format requirements are provider-specific.
	Credential string
	// Model must belong to the provider's supported-model set.
	Model string
	// Temperature controls sampling randomness, in [0.0, 2.0].
	Temperature float64 `validate:"gte=0,lte=2"`
	// MaxTokens bounds the generated output, in [1, 32000].
	MaxTokens int `validate:"gte=1,lte=32000"`
	// TopP is the nucleus sampling threshold, in [0.0, 1.0].
	TopP float64 `validate:"gte=0,lte=1"`
	// FrequencyPenalty discourages token repetition, in [-2.0, 2.0].
	FrequencyPenalty float64 `validate:"gte=-2,lte=2"`
	// PresencePenalty discourages topic repetition, in [-2.0, 2.0].
	PresencePenalty float64 `validate:"gte=-2,lte=2"`
	// TimeoutSeconds is the per-request HTTP timeout, at least 1.
	TimeoutSeconds int `validate:"gte=1"`
	// RetryAttempts bounds the dispatch loop; 0 or 1 means single-shot.
	RetryAttempts int `validate:"gte=0"`
	// Endpoint is the base URL of the completion API. Required for the
	// local provider, optional override elsewhere.
	Endpoint string `validate:"omitempty,url"`
}

// fieldDomains documents the allowed domain per flat key, used to build
// ConstructionErrors that name what would have been accepted.
var fieldDomains = map[string]string{
	KeyTemperature:      "0.0 to 2.0",
	KeyMaxTokens:        "1 to 32000",
	KeyTopP:             "0.0 to 1.0",
	KeyFrequencyPenalty: "-2.0 to 2.0",
	KeyPresencePenalty:  "-2.0 to 2.0",
	KeyTimeoutSeconds:   "1 or greater",
	KeyRetryAttempts:    "0 or greater",
	KeyEndpoint:         "http(s) URL",
}

// structFieldKeys maps Go struct field names back to the flat keys the host
// knows the fields by.
var structFieldKeys = map[string]string{
	"Temperature":      KeyTemperature,
	"MaxTokens":        KeyMaxTokens,
	"TopP":             KeyTopP,
	"FrequencyPenalty": KeyFrequencyPenalty,
	"PresencePenalty":  KeyPresencePenalty,
	"TimeoutSeconds":   KeyTimeoutSeconds,
	"RetryAttempts":    KeyRetryAttempts,
	"Endpoint":         KeyEndpoint,
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// newConfig builds a Config from the host-supplied defaults merged with
// per-request overrides; the override wins per field. Unset fields take the
// package defaults.
func newConfig(provider string, base, overrides map[string]any) Config {
	merged := make(map[string]any, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}

	return Config{
		Provider:         provider,
		Credential:       extractString(merged, KeyCredential, ""),
		Model:            extractString(merged, KeyModel, ""),
		Temperature:      extractFloat(merged, KeyTemperature, DefaultTemperature),
		MaxTokens:        extractInt(merged, KeyMaxTokens, DefaultMaxTokens),
		TopP:             extractFloat(merged, KeyTopP, DefaultTopP),
		FrequencyPenalty: extractFloat(merged, KeyFrequencyPenalty, DefaultFrequencyPenalty),
		PresencePenalty:  extractFloat(merged, KeyPresencePenalty, DefaultPresencePenalty),
		TimeoutSeconds:   extractInt(merged, KeyTimeoutSeconds, DefaultTimeoutSeconds),
		RetryAttempts:    extractInt(merged, KeyRetryAttempts, DefaultRetryAttempts),
		Endpoint:         extractString(merged, KeyEndpoint, ""),
	}
}

// validateDomains checks every numeric and URL field against its documented
// domain. The first violation is returned as a ConstructionError naming the
// flat key and allowed range.
func (c Config) validateDomains() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConstructionError{Field: "config", Value: "", Domain: err.Error()}
	}

	fe := verrs[0]
	key, ok := structFieldKeys[fe.StructField()]
	if !ok {
		key = strings.ToLower(fe.StructField())
	}
	return &ConstructionError{Field: key, Value: fe.Value(), Domain: fieldDomains[key]}
}

// fieldSet reports whether a required flat key carries a value in this
// configuration. Used by the factory's required-field table check.
func (c Config) fieldSet(key string) bool {
	switch key {
	case KeyCredential:
		return strings.TrimSpace(c.Credential) != ""
	case KeyModel:
		return strings.TrimSpace(c.Model) != ""
	case KeyEndpoint:
		return strings.TrimSpace(c.Endpoint) != ""
	default:
		return true
	}
}

// Hash returns a stable content hash of the configuration, used as the
// factory memoization key. Fields are length-prefixed so the encoding is
// injective: no credential or endpoint content can make two distinct
// configurations hash identically.
func (c Config) Hash() string {
	h := sha256.New()
	for _, field := range []string{
		c.Provider,
		c.Credential,
		c.Model,
		strconv.FormatFloat(c.Temperature, 'g', -1, 64),
		strconv.Itoa(c.MaxTokens),
		strconv.FormatFloat(c.TopP, 'g', -1, 64),
		strconv.FormatFloat(c.FrequencyPenalty, 'g', -1, 64),
		strconv.FormatFloat(c.PresencePenalty, 'g', -1, 64),
		strconv.Itoa(c.TimeoutSeconds),
		strconv.Itoa(c.RetryAttempts),
		c.Endpoint,
	} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// extractString pulls a trimmed string out of an options map, falling back
// to defaultVal when the key is absent or not a string.
func extractString(opts map[string]any, key, defaultVal string) string {
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok {
		return defaultVal
	}
	return strings.TrimSpace(s)
}

// extractFloat pulls a numeric value out of an options map, accepting the
// numeric types that commonly survive JSON and YAML decoding.
func extractFloat(opts map[string]any, key string, defaultVal float64) float64 {
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return defaultVal
	}
}

// extractInt pulls an integer out of an options map. Floats with no
// fractional part are accepted because JSON decoding produces float64.
func extractInt(opts map[string]any, key string, defaultVal int) int {
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
		return defaultVal
	default:
		return defaultVal
	}
}
