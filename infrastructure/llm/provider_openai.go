package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/solumlabs/aibridge/internal/ports"
)

const (
	// ProviderOpenAI is the registry id of the hosted OpenAI backend.
	ProviderOpenAI = "openai"

	openAIBaseURL = "https://api.openai.com/v1"

	chatCompletionsPath = "/chat/completions"
	modelsPath          = "/models"

	// probeTimeout bounds TestConnection independently of the configured
	// request timeout; a connectivity check should answer quickly either way.
	probeTimeout = 10 * time.Second

	// maxErrorBodyBytes caps how much of an upstream error body is read.
	maxErrorBodyBytes = 4 << 10
)

// openAISupportedModels is the published model set accepted at construction.
var openAISupportedModels = []string{
	"gpt-4.1", "gpt-4.1-mini", "gpt-4.1-nano",
	"gpt-4o", "gpt-4o-mini",
	"gpt-4", "gpt-4-turbo",
	"gpt-3.5-turbo",
	"o4-mini", "o3", "o3-mini", "o1", "o1-mini",
}

// remoteCompletionClient talks to an OpenAI-style chat completion API over
// plain HTTP: JSON POST to /chat/completions, GET /models for connectivity
// probes, Bearer credential in the Authorization header. It backs both the
// hosted OpenAI provider and the local OpenAI-compatible provider.
type remoteCompletionClient struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	probe      *http.Client
	dispatch   dispatcher
	classify   classifier
}

var _ ports.ProviderClient = (*remoteCompletionClient)(nil)

// newOpenAIClient validates the configuration against OpenAI's documented
// domains and returns a ready client. Validation failures are
// ConstructionErrors naming the offending field; a valid configuration is
// frozen into the client.
func newOpenAIClient(cfg Config) (ports.ProviderClient, error) {
	if err := cfg.validateDomains(); err != nil {
		return nil, err
	}
	if err := openAICredentialPattern.check(cfg.Credential); err != nil {
		return nil, err
	}
	if err := checkSupportedModel(cfg.Model, openAISupportedModels); err != nil {
		return nil, err
	}

	baseURL := openAIBaseURL
	if cfg.Endpoint != "" {
		normalized, err := validateEndpoint(cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		baseURL = normalized
	}

	return newRemoteCompletionClient(cfg, baseURL), nil
}

func newRemoteCompletionClient(cfg Config, baseURL string) *remoteCompletionClient {
	return &remoteCompletionClient{
		cfg:        cfg,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		probe:      &http.Client{Timeout: probeTimeout},
		dispatch:   newDispatcher(cfg.RetryAttempts),
		classify:   classifier{provider: cfg.Provider},
	}
}

// Complete wraps the prompt into a single user turn and delegates to Chat.
func (c *remoteCompletionClient) Complete(ctx context.Context, prompt string) (string, error) {
	if isBlank(prompt) {
		return "", ErrEmptyInput
	}
	return c.Chat(ctx, []ports.ChatMessage{{Role: ports.RoleUser, Content: prompt}})
}

// Chat sends the conversation through the retry-aware dispatch and returns
// the first choice's content.
func (c *remoteCompletionClient) Chat(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	return c.chat(ctx, messages, callOverrides{})
}

// Analyze runs the shared analysis protocol at low temperature.
func (c *remoteCompletionClient) Analyze(ctx context.Context, text string) (*ports.AnalysisResult, error) {
	return analyzeText(ctx, text, c.cfg.MaxTokens, c.chat)
}

// TestConnection probes the models endpoint with the short fixed timeout.
// Transport failures and non-2xx statuses mean "provider unreachable" and
// return (false, nil); only local misuse returns an error.
func (c *remoteCompletionClient) TestConnection(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+modelsPath, nil)
	if err != nil {
		return false, fmt.Errorf("building probe request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.probe.Do(req)
	if err != nil {
		// The caller abandoning the probe is their doing, not the
		// provider's; everything else is "unreachable".
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func (c *remoteCompletionClient) Provider() string { return c.cfg.Provider }

func (c *remoteCompletionClient) Model() string { return c.cfg.Model }

// chat builds the wire request, dispatches it with retries, and parses the
// response body.
func (c *remoteCompletionClient) chat(ctx context.Context, messages []ports.ChatMessage, ov callOverrides) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}

	body, err := json.Marshal(c.buildRequest(messages, ov))
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	var content string
	err = c.dispatch.do(ctx, func(ctx context.Context) error {
		reply, err := c.sendOnce(ctx, body)
		if err != nil {
			return err
		}
		content = reply
		return nil
	})
	return content, err
}

// chatCompletionRequest is the outgoing wire shape. The SDK's request
// struct tags its sampling fields omitempty, which would drop an explicit
// 0.0 temperature or top_p and let the provider substitute its own default;
// these fields are always emitted so the configured values are honored.
type chatCompletionRequest struct {
	Model            string                         `json:"model"`
	Messages         []openai.ChatCompletionMessage `json:"messages"`
	Temperature      float64                        `json:"temperature"`
	MaxTokens        int                            `json:"max_tokens"`
	TopP             float64                        `json:"top_p"`
	FrequencyPenalty float64                        `json:"frequency_penalty"`
	PresencePenalty  float64                        `json:"presence_penalty"`
}

// buildRequest maps the frozen configuration and per-call overrides onto the
// OpenAI chat completion request shape.
func (c *remoteCompletionClient) buildRequest(messages []ports.ChatMessage, ov callOverrides) chatCompletionRequest {
	temperature := c.cfg.Temperature
	if ov.temperature != nil {
		temperature = *ov.temperature
	}
	maxTokens := c.cfg.MaxTokens
	if ov.maxTokens != nil {
		maxTokens = *ov.maxTokens
	}

	wire := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		wire[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	return chatCompletionRequest{
		Model:            c.cfg.Model,
		Messages:         wire,
		Temperature:      temperature,
		MaxTokens:        maxTokens,
		TopP:             c.cfg.TopP,
		FrequencyPenalty: c.cfg.FrequencyPenalty,
		PresencePenalty:  c.cfg.PresencePenalty,
	}
}

// sendOnce performs a single HTTP attempt and classifies the outcome.
func (c *remoteCompletionClient) sendOnce(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.classify.transport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.classify.classifyStatus(resp.StatusCode, readErrorMessage(resp.Body), nil)
	}

	var parsed openai.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", c.classify.malformed(err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", c.classify.malformed(ErrEmptyResponse)
	}

	return parsed.Choices[0].Message.Content, nil
}

func (c *remoteCompletionClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Credential)
	}
}

// readErrorMessage pulls the human-readable message out of an OpenAI-style
// error body, falling back to the raw (truncated) body text.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
