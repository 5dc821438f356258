package llm

import (
	"context"
	"time"

	"github.com/solumlabs/aibridge/internal/ports"
)

// deadlineClient enforces a per-operation deadline on top of whatever
// timeout the underlying transport applies. Useful when the host wants one
// ceiling across providers regardless of their configured timeouts.
type deadlineClient struct {
	next    ports.ProviderClient
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that bounds each operation with a
// context deadline.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next ports.ProviderClient) ports.ProviderClient {
		return &deadlineClient{next: next, timeout: timeout}
	}
}

func (d *deadlineClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.next.Complete(ctx, prompt)
}

func (d *deadlineClient) Chat(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.next.Chat(ctx, messages)
}

func (d *deadlineClient) Analyze(ctx context.Context, text string) (*ports.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.next.Analyze(ctx, text)
}

func (d *deadlineClient) TestConnection(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.next.TestConnection(ctx)
}

func (d *deadlineClient) Provider() string { return d.next.Provider() }

func (d *deadlineClient) Model() string { return d.next.Model() }
