package ports

import "time"

// TTLStore is the expiring key-value interface the rate accountant is built
// on. The store's expiry is authoritative: a key that expires resets fully
// rather than decaying. Hosts may back this with any expiring cache
// (transients, Redis, in-process map); implementations must be safe for
// concurrent use.
type TTLStore interface {
	// Get returns the stored value, the remaining time to live, and whether
	// the key exists. Expired keys are treated as absent.
	Get(key string) (value string, ttl time.Duration, ok bool)

	// Set stores a value with the given time to live, replacing any
	// existing entry and its expiry.
	Set(key, value string, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key string) error
}

// MetricsCollector abstracts the metrics backend so infrastructure code can
// record observations without depending on a specific monitoring system.
type MetricsCollector interface {
	// RecordCounter increments a counter metric by value.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram distribution.
	RecordHistogram(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)
}
