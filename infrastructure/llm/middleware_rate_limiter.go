package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/solumlabs/aibridge/internal/ports"
)

// pacedClient smooths outbound request pacing with a token bucket. This is
// client-side politeness toward the provider, separate from the
// fixed-window accounting the host applies to its own callers.
type pacedClient struct {
	next    ports.ProviderClient
	limiter *rate.Limiter
}

// PacingMiddleware creates middleware that holds each operation until the
// token bucket permits it. limit is sustained requests per second; burst
// allows short spikes above it.
func PacingMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next ports.ProviderClient) ports.ProviderClient {
		return &pacedClient{next: next, limiter: limiter}
	}
}

func (p *pacedClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.next.Complete(ctx, prompt)
}

func (p *pacedClient) Chat(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.next.Chat(ctx, messages)
}

func (p *pacedClient) Analyze(ctx context.Context, text string) (*ports.AnalysisResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.next.Analyze(ctx, text)
}

// TestConnection is not paced; probes are rare and short.
func (p *pacedClient) TestConnection(ctx context.Context) (bool, error) {
	return p.next.TestConnection(ctx)
}

func (p *pacedClient) Provider() string { return p.next.Provider() }

func (p *pacedClient) Model() string { return p.next.Model() }

func (p *pacedClient) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("request pacing: %w", err)
	}
	return nil
}
