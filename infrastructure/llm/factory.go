package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/solumlabs/aibridge/internal/ports"
)

// Builder constructs a concrete provider client from a validated merged
// configuration. Builders perform their own parameter validation (model
// whitelist, numeric domains, credential format) and fail with a
// ConstructionError.
type Builder func(cfg Config) (ports.ProviderClient, error)

// registration couples a builder with the fields the factory must see
// before it will even attempt construction.
type registration struct {
	build    Builder
	required []string
}

// Option configures a Factory at construction.
type Option func(*Factory)

// WithDefaults supplies the host's base configuration map. Per-request
// overrides win field by field.
func WithDefaults(defaults map[string]any) Option {
	return func(f *Factory) {
		f.defaults = make(map[string]any, len(defaults))
		for k, v := range defaults {
			f.defaults[k] = v
		}
	}
}

// WithCache enables memoization by configuration hash. A cached instance is
// returned instead of constructing a new one for an identical merged
// configuration; the cache is process-local and clearable via ClearCache.
func WithCache() Option {
	return func(f *Factory) { f.cache = make(map[string]ports.ProviderClient) }
}

// WithMiddleware wraps every constructed client, outermost first.
func WithMiddleware(mw ...Middleware) Option {
	return func(f *Factory) { f.middleware = append(f.middleware, mw...) }
}

// Factory resolves provider ids to concrete clients. The host constructs
// one Factory at startup and passes it to whatever needs clients; there is
// no hidden global instance. Safe for concurrent use.
type Factory struct {
	mu        sync.RWMutex
	providers map[string]registration

	defaults   map[string]any
	middleware []Middleware

	// cache is nil unless WithCache was given. group collapses concurrent
	// construction of the same configuration.
	cache map[string]ports.ProviderClient
	group singleflight.Group
}

// NewFactory returns a factory with the built-in providers registered:
// openai, anthropic, google (credential + model required) and local
// (endpoint + model required).
func NewFactory(opts ...Option) *Factory {
	f := &Factory{providers: make(map[string]registration)}
	for _, opt := range opts {
		opt(f)
	}

	// Built-ins cannot collide in a fresh map; errors are impossible here.
	_ = f.Register(ProviderOpenAI, newOpenAIClient, KeyCredential, KeyModel)
	_ = f.Register(ProviderAnthropic, newAnthropicClient, KeyCredential, KeyModel)
	_ = f.Register(ProviderGoogle, newGoogleClient, KeyCredential, KeyModel)
	_ = f.Register(ProviderLocal, newLocalClient, KeyEndpoint, KeyModel)
	return f
}

// Register adds a provider so host code can extend the factory without
// modifying it. Duplicate registration of an existing id is an error, not a
// silent overwrite.
func (f *Factory) Register(id string, build Builder, requiredFields ...string) error {
	normalized := normalizeProviderID(id)
	if normalized == "" {
		return fmt.Errorf("provider id cannot be empty")
	}
	if build == nil {
		return fmt.Errorf("provider %q: builder cannot be nil", normalized)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.providers[normalized]; exists {
		return fmt.Errorf("provider %q already registered", normalized)
	}
	f.providers[normalized] = registration{build: build, required: requiredFields}
	return nil
}

// Providers returns the registered ids, sorted.
func (f *Factory) Providers() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.providers))
	for id := range f.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Create resolves the provider, merges the host defaults with overrides,
// checks the provider's required-field table, and constructs the client.
// An invalid configuration never produces a usable client: unknown ids fail
// with InvalidProviderError, missing fields with
// IncompleteConfigurationError naming every missing field, and bad values
// with a ClientCreationError wrapping the builder's ConstructionError.
func (f *Factory) Create(provider string, overrides map[string]any) (ports.ProviderClient, error) {
	normalized := normalizeProviderID(provider)

	f.mu.RLock()
	reg, ok := f.providers[normalized]
	f.mu.RUnlock()
	if !ok {
		return nil, &InvalidProviderError{
			Provider:   provider,
			Suggestion: closestMatch(normalized, f.Providers()),
		}
	}

	cfg := newConfig(normalized, f.defaults, overrides)

	var missing []string
	for _, field := range reg.required {
		if !cfg.fieldSet(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, &IncompleteConfigurationError{Provider: normalized, Missing: missing}
	}

	if f.cache == nil {
		return f.build(reg, cfg)
	}

	key := cfg.Hash()
	f.mu.RLock()
	cached, hit := f.cache[key]
	f.mu.RUnlock()
	if hit {
		return cached, nil
	}

	// singleflight collapses concurrent misses for the same configuration
	// into one construction.
	v, err, _ := f.group.Do(key, func() (any, error) {
		client, err := f.build(reg, cfg)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.cache[key] = client
		f.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(ports.ProviderClient), nil
}

// ClearCache drops all memoized clients. No-op when memoization is off.
func (f *Factory) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cache != nil {
		f.cache = make(map[string]ports.ProviderClient)
	}
}

// build runs the registered builder and applies the factory middleware in
// reverse order so the first configured middleware is outermost.
func (f *Factory) build(reg registration, cfg Config) (ports.ProviderClient, error) {
	client, err := reg.build(cfg)
	if err != nil {
		return nil, &ClientCreationError{Provider: cfg.Provider, Err: err}
	}
	for i := len(f.middleware) - 1; i >= 0; i-- {
		client = f.middleware[i](client)
	}
	return client, nil
}

// normalizeProviderID canonicalizes an id for registry lookup.
func normalizeProviderID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
