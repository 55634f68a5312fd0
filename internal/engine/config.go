package engine

import "time"

// Config holds engine-wide tunables, built via functional options the
// same way the reference engine configures its database layer.
type Config struct {
	MaxConcurrency int
	ReadTimeout    time.Duration
}

// Option configures an Engine at Open time.
type Option func(*Config)

// WithMaxConcurrency bounds how many pager reads (and, for IndexLookup
// plans, how many row fetches) may be in flight at once.
func WithMaxConcurrency(n int) Option {
	return func(c *Config) { c.MaxConcurrency = n }
}

// WithReadTimeout bounds how long a single Execute call may run before
// its internal context is cancelled.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) { c.ReadTimeout = d }
}

func defaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		ReadTimeout:    30 * time.Second,
	}
}
