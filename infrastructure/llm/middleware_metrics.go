package llm

import (
	"context"
	"errors"
	"time"

	"github.com/solumlabs/aibridge/internal/ports"
)

// meteredClient records latency, request counts, and error classes for
// every provider operation.
type meteredClient struct {
	next      ports.ProviderClient
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that reports per-operation metrics
// through the given collector. A nil collector disables recording but keeps
// the chain intact.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next ports.ProviderClient) ports.ProviderClient {
		return &meteredClient{next: next, collector: collector}
	}
}

func (m *meteredClient) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := m.next.Complete(ctx, prompt)
	m.record("complete", start, err)
	return out, err
}

func (m *meteredClient) Chat(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	start := time.Now()
	out, err := m.next.Chat(ctx, messages)
	m.record("chat", start, err)
	return out, err
}

func (m *meteredClient) Analyze(ctx context.Context, text string) (*ports.AnalysisResult, error) {
	start := time.Now()
	out, err := m.next.Analyze(ctx, text)
	m.record("analyze", start, err)
	return out, err
}

func (m *meteredClient) TestConnection(ctx context.Context) (bool, error) {
	start := time.Now()
	ok, err := m.next.TestConnection(ctx)
	m.record("test_connection", start, err)
	return ok, err
}

func (m *meteredClient) Provider() string { return m.next.Provider() }

func (m *meteredClient) Model() string { return m.next.Model() }

func (m *meteredClient) record(operation string, start time.Time, err error) {
	if m.collector == nil {
		return
	}

	labels := map[string]string{
		"provider":  m.next.Provider(),
		"model":     m.next.Model(),
		"operation": operation,
		"status":    statusLabel(err),
	}
	m.collector.RecordHistogram("provider_request_duration_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("provider_requests_total", 1, labels)
}

func statusLabel(err error) string {
	if err == nil {
		return "success"
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Type.String()
	}
	return "error"
}
