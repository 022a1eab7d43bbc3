package rules

import (
	"time"

	"go.uber.org/zap"
)

// Options configures an Engine.
type Options struct {
	// Logger receives engine diagnostics. Nil disables logging.
	Logger *zap.Logger
	// CacheTTL is how long a compiled rule stays cached. Zero keeps entries
	// until the registry changes, so every distinct rule text stays in memory;
	// a negative value disables the cache.
	CacheTTL time.Duration
	// ImplicitAnd joins adjacent terms with AND when no operator separates
	// them.
	ImplicitAnd bool
}

// DefaultCacheTTL bounds how long an unused compiled rule is kept.
const DefaultCacheTTL = 10 * time.Minute

// DefaultOptions returns the options used when none are supplied.
func DefaultOptions() *Options {
	return &Options{
		Logger:      zap.NewNop(),
		CacheTTL:    DefaultCacheTTL,
		ImplicitAnd: true,
	}
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithCacheTTL sets the compiled-rule cache lifetime. See Options.CacheTTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.CacheTTL = ttl
	}
}

// WithoutCache disables the compiled-rule cache.
func WithoutCache() Option {
	return WithCacheTTL(-1)
}

// WithImplicitConjunction sets whether adjacent terms are joined with AND.
func WithImplicitConjunction(enabled bool) Option {
	return func(o *Options) {
		o.ImplicitAnd = enabled
	}
}
