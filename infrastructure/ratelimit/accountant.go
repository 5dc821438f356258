// Package ratelimit implements fixed-window request accounting over an
// injected TTL store. The store's expiry is authoritative: when a key
// expires the window resets fully to zero. This is a hard cliff rather than
// a sliding window, so a caller can burst up to twice the limit across a
// window edge; hosts needing smoother limiting should pick a shorter window.
package ratelimit

import (
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/solumlabs/aibridge/internal/ports"
)

const lockStripes = 64

// DenyFunc is invoked when a request is denied, for external alerting.
type DenyFunc func(identifier, action string, count int)

// Option configures an Accountant.
type Option func(*Accountant)

// WithDenySignal registers a callback fired on every denied request.
func WithDenySignal(fn DenyFunc) Option {
	return func(a *Accountant) { a.onDeny = fn }
}

// WithMetrics records denials through the collector.
func WithMetrics(collector ports.MetricsCollector) Option {
	return func(a *Accountant) { a.metrics = collector }
}

// WithLogger sets the logger used for denial logging.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Accountant) { a.logger = logger }
}

// Accountant counts requests per (identifier, action) pair within fixed
// windows. The identifier is derived externally (user id, else client IP)
// and opaque here. Safe for concurrent use: read-modify-write cycles on the
// store are guarded by striped per-key locks so concurrent increments of
// the same counter never lose updates.
type Accountant struct {
	store   ports.TTLStore
	locks   [lockStripes]sync.Mutex
	onDeny  DenyFunc
	metrics ports.MetricsCollector
	logger  *slog.Logger
}

// New creates an accountant over the given TTL store.
func New(store ports.TTLStore, opts ...Option) *Accountant {
	a := &Accountant{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allow records one attempt and reports whether it is within the limit.
// The first call in a window stores count=1 with a TTL of window; later
// calls increment the counter while preserving the original expiry (the
// window does not slide). Once the count reaches maxAttempts further calls
// are denied without incrementing, and the denial signal fires. Denial is a
// normal control-flow outcome, not an error.
func (a *Accountant) Allow(identifier, action string, maxAttempts int, window time.Duration) bool {
	if maxAttempts < 1 {
		return false
	}

	key := storeKey(identifier, action)
	lock := a.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	value, ttl, ok := a.store.Get(key)
	if !ok {
		_ = a.store.Set(key, "1", window)
		return true
	}

	count, err := strconv.Atoi(value)
	if err != nil {
		// Unreadable entry: start a fresh window rather than guessing.
		_ = a.store.Set(key, "1", window)
		return true
	}

	if count >= maxAttempts {
		a.signalDenied(identifier, action, count)
		return false
	}

	_ = a.store.Set(key, strconv.Itoa(count+1), ttl)
	return true
}

// Remaining returns how many attempts are left in the current window.
func (a *Accountant) Remaining(identifier, action string, maxAttempts int) int {
	value, _, ok := a.store.Get(storeKey(identifier, action))
	if !ok {
		return maxAttempts
	}
	count, err := strconv.Atoi(value)
	if err != nil {
		return maxAttempts
	}
	if remaining := maxAttempts - count; remaining > 0 {
		return remaining
	}
	return 0
}

// TimeUntilReset returns how long until the current window expires, or zero
// when no window is active. Hosts surface this as "try again in N seconds".
func (a *Accountant) TimeUntilReset(identifier, action string) time.Duration {
	_, ttl, ok := a.store.Get(storeKey(identifier, action))
	if !ok {
		return 0
	}
	return ttl
}

// Reset clears the window for a pair, an administrative override.
func (a *Accountant) Reset(identifier, action string) error {
	key := storeKey(identifier, action)
	lock := a.lockFor(key)
	lock.Lock()
	defer lock.Unlock()
	return a.store.Delete(key)
}

func (a *Accountant) signalDenied(identifier, action string, count int) {
	a.logger.Warn("rate limit exceeded",
		"identifier", identifier, "action", action, "count", count)
	if a.metrics != nil {
		a.metrics.RecordCounter("rate_limit_denials_total", 1, map[string]string{"action": action})
	}
	if a.onDeny != nil {
		a.onDeny(identifier, action, count)
	}
}

func (a *Accountant) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &a.locks[h.Sum32()%lockStripes]
}

func storeKey(identifier, action string) string {
	return identifier + "|" + action
}
