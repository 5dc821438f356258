package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/solumlabs/aibridge/internal/ports"
)

// ProviderAnthropic is the registry id of the Anthropic backend.
const ProviderAnthropic = "anthropic"

var anthropicSupportedModels = []string{
	"claude-4-opus", "claude-4-sonnet", "claude-4.1-opus",
	"claude-3.7-sonnet",
	"claude-3.5-sonnet", "claude-3.5-haiku",
	"claude-3-haiku", "claude-3-sonnet", "claude-3-opus",
}

// anthropicClient implements the capability set on top of the official SDK.
// SDK errors are mapped into the shared taxonomy by HTTP status so the same
// dispatch loop governs retries for every provider variant.
type anthropicClient struct {
	cfg      Config
	client   anthropic.Client
	dispatch dispatcher
	classify classifier
}

var _ ports.ProviderClient = (*anthropicClient)(nil)

func newAnthropicClient(cfg Config) (ports.ProviderClient, error) {
	if err := cfg.validateDomains(); err != nil {
		return nil, err
	}
	if err := anthropicCredentialPattern.check(cfg.Credential); err != nil {
		return nil, err
	}
	if err := checkSupportedModel(cfg.Model, anthropicSupportedModels); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.Credential),
		option.WithRequestTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
		// The shared dispatch loop owns retries; the SDK's built-in retry
		// would stack on top of it.
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		normalized, err := validateEndpoint(cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithBaseURL(normalized))
	}

	return &anthropicClient{
		cfg:      cfg,
		client:   anthropic.NewClient(opts...),
		dispatch: newDispatcher(cfg.RetryAttempts),
		classify: classifier{provider: ProviderAnthropic},
	}, nil
}

func (c *anthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	if isBlank(prompt) {
		return "", ErrEmptyInput
	}
	return c.Chat(ctx, []ports.ChatMessage{{Role: ports.RoleUser, Content: prompt}})
}

func (c *anthropicClient) Chat(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	return c.chat(ctx, messages, callOverrides{})
}

func (c *anthropicClient) Analyze(ctx context.Context, text string) (*ports.AnalysisResult, error) {
	return analyzeText(ctx, text, c.cfg.MaxTokens, c.chat)
}

// TestConnection sends a minimal one-token message under the short probe
// timeout. Upstream and transport failures report unreachable; cancellation
// of the caller's own context is surfaced as an error instead.
func (c *anthropicClient) TestConnection(ctx context.Context) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	_, err := c.client.Messages.New(probeCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, nil
	}
	return true, nil
}

func (c *anthropicClient) Provider() string { return c.cfg.Provider }

func (c *anthropicClient) Model() string { return c.cfg.Model }

func (c *anthropicClient) chat(ctx context.Context, messages []ports.ChatMessage, ov callOverrides) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}

	params, err := c.buildParams(messages, ov)
	if err != nil {
		return "", err
	}

	var content string
	err = c.dispatch.do(ctx, func(ctx context.Context) error {
		message, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return c.wrapSDKError(err)
		}

		var reply strings.Builder
		for _, block := range message.Content {
			if text, ok := block.AsAny().(anthropic.TextBlock); ok {
				reply.WriteString(text.Text)
			}
		}
		if reply.Len() == 0 {
			return c.classify.malformed(ErrEmptyResponse)
		}
		content = reply.String()
		return nil
	})
	return content, err
}

// buildParams converts the role-tagged conversation into Anthropic's shape:
// system turns go into the System blocks, user and assistant turns into the
// message list.
func (c *anthropicClient) buildParams(messages []ports.ChatMessage, ov callOverrides) (anthropic.MessageNewParams, error) {
	temperature := c.cfg.Temperature
	if ov.temperature != nil {
		temperature = *ov.temperature
	}
	maxTokens := c.cfg.MaxTokens
	if ov.maxTokens != nil {
		maxTokens = *ov.maxTokens
	}

	var system []anthropic.TextBlockParam
	turns := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case ports.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case ports.RoleUser:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case ports.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(turns) == 0 {
		return anthropic.MessageNewParams{}, &MessageStructureError{Index: 0, Reason: "conversation needs at least one user or assistant turn"}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(maxTokens),
		Messages:  turns,
		// Anthropic accepts temperature in [0, 1]; the configured domain
		// reaches 2.0 for other providers.
		Temperature: anthropic.Float(clampFloat(temperature, 0, 1)),
		TopP:        anthropic.Float(c.cfg.TopP),
	}
	if len(system) > 0 {
		params.System = system
	}
	return params, nil
}

// wrapSDKError maps SDK failures into the shared taxonomy. API errors carry
// an HTTP status; everything else that isn't a context error counts as
// transport.
func (c *anthropicClient) wrapSDKError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Error()
		return c.classify.classifyStatus(apiErr.StatusCode, message, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return c.classify.transport(err)
}

func clampFloat(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
