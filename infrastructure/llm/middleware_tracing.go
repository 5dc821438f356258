package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/solumlabs/aibridge/internal/ports"
)

const tracerName = "github.com/solumlabs/aibridge/infrastructure/llm"

// tracedClient wraps every operation in an OpenTelemetry span carrying the
// provider, model, and operation attributes.
type tracedClient struct {
	next   ports.ProviderClient
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that emits a span per provider
// operation using the globally configured tracer provider.
func TracingMiddleware() Middleware {
	return func(next ports.ProviderClient) ports.ProviderClient {
		return &tracedClient{next: next, tracer: otel.Tracer(tracerName)}
	}
}

func (t *tracedClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := t.startSpan(ctx, "llm.complete")
	defer span.End()
	out, err := t.next.Complete(ctx, prompt)
	finishSpan(span, err)
	return out, err
}

func (t *tracedClient) Chat(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	ctx, span := t.startSpan(ctx, "llm.chat")
	span.SetAttributes(attribute.Int("llm.messages", len(messages)))
	defer span.End()
	out, err := t.next.Chat(ctx, messages)
	finishSpan(span, err)
	return out, err
}

func (t *tracedClient) Analyze(ctx context.Context, text string) (*ports.AnalysisResult, error) {
	ctx, span := t.startSpan(ctx, "llm.analyze")
	defer span.End()
	out, err := t.next.Analyze(ctx, text)
	finishSpan(span, err)
	return out, err
}

func (t *tracedClient) TestConnection(ctx context.Context) (bool, error) {
	ctx, span := t.startSpan(ctx, "llm.test_connection")
	defer span.End()
	ok, err := t.next.TestConnection(ctx)
	span.SetAttributes(attribute.Bool("llm.reachable", ok))
	finishSpan(span, err)
	return ok, err
}

func (t *tracedClient) Provider() string { return t.next.Provider() }

func (t *tracedClient) Model() string { return t.next.Model() }

func (t *tracedClient) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("llm.provider", t.next.Provider()),
		attribute.String("llm.model", t.next.Model()),
	))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
