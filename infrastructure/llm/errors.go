// Package llm implements the provider-abstraction layer: a factory that
// validates configuration and constructs concrete provider clients, the
// retry-aware request dispatch used to talk to remote completion APIs, and
// the error taxonomy shared by all provider variants.
package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for caller-input failures. These are fatal to the specific
// operation call and are never retried.
var (
	// ErrEmptyInput indicates a blank prompt, an empty message sequence, or
	// blank analysis text.
	ErrEmptyInput = errors.New("input cannot be empty")
	// ErrEmptyCredential indicates that a credential was required but not
	// provided.
	ErrEmptyCredential = errors.New("credential cannot be empty")
	// ErrEmptyResponse indicates that the provider returned a response with
	// no usable content.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// InvalidProviderError is returned by the factory when the requested
// provider id is not registered. Suggestion, when non-empty, names the
// closest registered id.
type InvalidProviderError struct {
	Provider   string
	Suggestion string
}

func (e *InvalidProviderError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown provider %q (did you mean %q?)", e.Provider, e.Suggestion)
	}
	return fmt.Sprintf("unknown provider %q", e.Provider)
}

// IncompleteConfigurationError reports every required field missing from a
// merged configuration, not just the first. Missing is sorted for stable
// messages.
type IncompleteConfigurationError struct {
	Provider string
	Missing  []string
}

func (e *IncompleteConfigurationError) Error() string {
	missing := append([]string(nil), e.Missing...)
	sort.Strings(missing)
	return fmt.Sprintf("provider %q configuration incomplete: missing %s",
		e.Provider, strings.Join(missing, ", "))
}

// ConstructionError reports a configuration field whose value falls outside
// its documented domain. It is raised by concrete client constructors and
// surfaced by the factory wrapped in a ClientCreationError.
type ConstructionError struct {
	Field  string
	Value  any
	Domain string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("invalid value %v for %s (allowed: %s)", e.Value, e.Field, e.Domain)
}

// ClientCreationError wraps a construction failure with the provider it
// occurred for. Fatal to the Create call; never retried.
type ClientCreationError struct {
	Provider string
	Err      error
}

func (e *ClientCreationError) Error() string {
	return fmt.Sprintf("failed to create %s client: %v", e.Provider, e.Err)
}

func (e *ClientCreationError) Unwrap() error { return e.Err }

// MessageStructureError identifies a malformed chat message by index.
type MessageStructureError struct {
	Index  int
	Reason string
}

func (e *MessageStructureError) Error() string {
	return fmt.Sprintf("invalid message at index %d: %s", e.Index, e.Reason)
}

// ErrorType classifies a failed upstream request. The type determines
// retryability: transport, rate-limit, and server errors are retried with
// backoff; authentication, other upstream statuses, and malformed responses
// are surfaced immediately.
type ErrorType int

const (
	// ErrorTypeUnknown is an error of undetermined category; not retried.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeTransport is a DNS, connect, or timeout failure before any
	// HTTP status was received.
	ErrorTypeTransport
	// ErrorTypeAuthentication is a 401; retrying cannot fix bad credentials.
	ErrorTypeAuthentication
	// ErrorTypeRateLimit is a 429 from the provider.
	ErrorTypeRateLimit
	// ErrorTypeServer is a 500, 502, or 503 from the provider.
	ErrorTypeServer
	// ErrorTypeUpstream is any other non-2xx status; not retried.
	ErrorTypeUpstream
	// ErrorTypeMalformed is a 2xx response whose body could not be parsed
	// or lacked the expected content field. Retrying a call that already
	// succeeded at the HTTP layer cannot help.
	ErrorTypeMalformed
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransport:
		return "transport"
	case ErrorTypeAuthentication:
		return "authentication"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeServer:
		return "server_error"
	case ErrorTypeUpstream:
		return "upstream"
	case ErrorTypeMalformed:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// ProviderError is a structured error from a provider request. It normalizes
// provider-specific failures into a common shape the dispatch loop can act
// on.
type ProviderError struct {
	// Type classifies the failure and decides retryability.
	Type ErrorType
	// Provider names the provider that produced the error.
	Provider string
	// StatusCode holds the HTTP status, when one was received.
	StatusCode int
	// Message is the upstream error message, if any.
	Message string
	// Err is the underlying cause, for errors.Is/As chains.
	Err error
}

func (e *ProviderError) Error() string {
	base := fmt.Sprintf("%s error [%s]", e.Provider, e.Type)
	if e.StatusCode > 0 {
		base += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		base += ": " + e.Message
	}
	if e.Err != nil {
		base += ": " + e.Err.Error()
	}
	return base
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether the dispatch loop may retry after this error.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTransport, ErrorTypeRateLimit, ErrorTypeServer:
		return true
	default:
		return false
	}
}

// classifier builds ProviderErrors for a single provider.
type classifier struct {
	provider string
}

// classifyStatus maps a non-2xx HTTP status to the taxonomy. Only 401, 429,
// and 500/502/503 get dedicated classes; everything else is a terminal
// upstream error.
func (c classifier) classifyStatus(status int, message string, err error) *ProviderError {
	var t ErrorType
	switch status {
	case 401:
		t = ErrorTypeAuthentication
	case 429:
		t = ErrorTypeRateLimit
	case 500, 502, 503:
		t = ErrorTypeServer
	default:
		t = ErrorTypeUpstream
	}
	return &ProviderError{Type: t, Provider: c.provider, StatusCode: status, Message: message, Err: err}
}

// transport wraps a failure that happened before any HTTP status arrived.
func (c classifier) transport(err error) *ProviderError {
	return &ProviderError{Type: ErrorTypeTransport, Provider: c.provider, Message: "request failed", Err: err}
}

// malformed wraps a 2xx response that could not be parsed.
func (c classifier) malformed(err error) *ProviderError {
	return &ProviderError{Type: ErrorTypeMalformed, Provider: c.provider, Message: "unparseable response", Err: err}
}
