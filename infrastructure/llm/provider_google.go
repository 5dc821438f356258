package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/solumlabs/aibridge/internal/ports"
)

// ProviderGoogle is the registry id of the Google Gemini backend.
const ProviderGoogle = "google"

var googleSupportedModels = []string{
	"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-lite",
	"gemini-2.0-flash", "gemini-2.0-flash-lite",
	"gemini-1.5-pro", "gemini-1.5-flash",
}

// googleClient implements the capability set on top of the Gemini SDK,
// mapping googleapi errors into the shared taxonomy so the common dispatch
// loop governs retries.
type googleClient struct {
	cfg      Config
	client   *genai.Client
	dispatch dispatcher
	classify classifier
}

var _ ports.ProviderClient = (*googleClient)(nil)

func newGoogleClient(cfg Config) (ports.ProviderClient, error) {
	if err := cfg.validateDomains(); err != nil {
		return nil, err
	}
	if err := googleCredentialPattern.check(cfg.Credential); err != nil {
		return nil, err
	}
	if err := checkSupportedModel(cfg.Model, googleSupportedModels); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.Credential,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing gemini client: %w", err)
	}

	return &googleClient{
		cfg:      cfg,
		client:   client,
		dispatch: newDispatcher(cfg.RetryAttempts),
		classify: classifier{provider: ProviderGoogle},
	}, nil
}

func (c *googleClient) Complete(ctx context.Context, prompt string) (string, error) {
	if isBlank(prompt) {
		return "", ErrEmptyInput
	}
	return c.Chat(ctx, []ports.ChatMessage{{Role: ports.RoleUser, Content: prompt}})
}

func (c *googleClient) Chat(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	return c.chat(ctx, messages, callOverrides{})
}

func (c *googleClient) Analyze(ctx context.Context, text string) (*ports.AnalysisResult, error) {
	return analyzeText(ctx, text, c.cfg.MaxTokens, c.chat)
}

// TestConnection generates a single token under the short probe timeout.
// Upstream and transport failures report unreachable; cancellation of the
// caller's own context is surfaced as an error instead.
func (c *googleClient) TestConnection(ctx context.Context) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	one := int32(1)
	_, err := c.client.Models.GenerateContent(probeCtx, c.cfg.Model,
		[]*genai.Content{genai.NewContentFromText("ping", genai.RoleUser)},
		&genai.GenerateContentConfig{MaxOutputTokens: one})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, nil
	}
	return true, nil
}

func (c *googleClient) Provider() string { return c.cfg.Provider }

func (c *googleClient) Model() string { return c.cfg.Model }

func (c *googleClient) chat(ctx context.Context, messages []ports.ChatMessage, ov callOverrides) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}

	contents, config := c.buildRequest(messages, ov)

	var content string
	err := c.dispatch.do(ctx, func(ctx context.Context) error {
		resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, config)
		if err != nil {
			return c.wrapSDKError(err)
		}
		text := resp.Text()
		if text == "" {
			return c.classify.malformed(ErrEmptyResponse)
		}
		content = text
		return nil
	})
	return content, err
}

// buildRequest converts the conversation into Gemini contents. System turns
// become the system instruction; assistant turns map to the model role.
func (c *googleClient) buildRequest(messages []ports.ChatMessage, ov callOverrides) ([]*genai.Content, *genai.GenerateContentConfig) {
	temperature := c.cfg.Temperature
	if ov.temperature != nil {
		temperature = *ov.temperature
	}
	maxTokens := c.cfg.MaxTokens
	if ov.maxTokens != nil {
		maxTokens = *ov.maxTokens
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		TopP:            genai.Ptr(float32(c.cfg.TopP)),
		MaxOutputTokens: int32(maxTokens),
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case ports.RoleSystem:
			// Every system turn is kept: later turns append parts to the
			// instruction rather than replacing earlier ones.
			if config.SystemInstruction == nil {
				config.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
			} else {
				config.SystemInstruction.Parts = append(config.SystemInstruction.Parts, &genai.Part{Text: m.Content})
			}
		case ports.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case ports.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		}
	}
	return contents, config
}

func (c *googleClient) wrapSDKError(err error) error {
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return c.classify.classifyStatus(genaiErr.Code, genaiErr.Message, err)
	}

	// Vertex transports built on google.golang.org/api surface this shape.
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}
		return c.classify.classifyStatus(apiErr.Code, message, err)
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	return c.classify.transport(err)
}
