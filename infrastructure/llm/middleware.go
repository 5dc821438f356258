package llm

import (
	"github.com/solumlabs/aibridge/internal/ports"
)

// Middleware wraps a ProviderClient to add cross-cutting behavior (metrics,
// tracing, pacing, timeouts) without touching provider logic. The factory
// applies middleware in reverse order so the first configured middleware is
// the outermost.
type Middleware func(ports.ProviderClient) ports.ProviderClient
