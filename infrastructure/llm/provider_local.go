package llm

import (
	"github.com/solumlabs/aibridge/internal/ports"
)

// ProviderLocal is the registry id for self-hosted OpenAI-compatible
// endpoints (vLLM, Ollama, LM Studio, LiteLLM and the like).
const ProviderLocal = "local"

// newLocalClient builds a client for a local OpenAI-compatible endpoint.
// The endpoint is required; the credential is optional and sent as a Bearer
// token when present. No credential-shape check and no model whitelist:
// local servers expose arbitrary model tags.
func newLocalClient(cfg Config) (ports.ProviderClient, error) {
	if err := cfg.validateDomains(); err != nil {
		return nil, err
	}

	baseURL, err := validateEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	return newRemoteCompletionClient(cfg, baseURL), nil
}
