package cachecore

import (
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vitaliisemenov/cachecore/pkg/cachecore/eviction"
)

var validate = validator.New()

// EvictionPolicyName selects a built-in Evictor victim-selection policy.
type EvictionPolicyName string

const (
	EvictionLFU  EvictionPolicyName = "lfu"
	EvictionLRU  EvictionPolicyName = "lru"
	EvictionFIFO EvictionPolicyName = "fifo"
)

// ExpirationPolicyName selects a built-in ExpirationPolicy.
type ExpirationPolicyName string

const (
	ExpirationEternal  ExpirationPolicyName = "eternal"
	ExpirationCreated  ExpirationPolicyName = "created"
	ExpirationModified ExpirationPolicyName = "modified"
	ExpirationAccessed ExpirationPolicyName = "accessed"
)

// Config is the validated, immutable set of parameters a Cache is
// constructed from. Build one with NewConfigBuilder rather than the zero
// value so defaults in Builder.Build are applied consistently.
type Config struct {
	// MaxEntries bounds the Store's size; the Evictor runs capacity
	// eviction whenever it is exceeded. Zero means unbounded (the Evictor
	// still performs lazy expiry sweeping if SweepInterval is set).
	MaxEntries int `validate:"gte=0"`

	// EvictionPolicy names the victim-selection strategy consulted by the
	// Evictor when MaxEntries is exceeded.
	EvictionPolicy EvictionPolicyName `validate:"omitempty,oneof=lfu lru fifo"`

	// ExpirationPolicy names the TTL computation strategy. TTL is ignored
	// when ExpirationPolicy is "eternal".
	ExpirationPolicy ExpirationPolicyName `validate:"omitempty,oneof=eternal created modified accessed"`
	TTL              time.Duration        `validate:"gte=0"`

	// SweepInterval is how often the Evictor scans for expired entries and,
	// if over capacity, evicts. Zero disables the background worker
	// entirely; expiry is then detected only on read.
	SweepInterval time.Duration `validate:"gte=0"`

	// SampleSize bounds how many candidates the Evictor samples per victim
	// selection. The expiry sweep is not bounded by it: each sweep pass
	// scans the whole store.
	SampleSize int `validate:"gte=0"`

	// AsyncQueueSize and AsyncTimeout are defaults applied to
	// ASYNC_TIMED listener registrations that don't specify their own.
	AsyncQueueSize int           `validate:"gte=0"`
	AsyncTimeout   time.Duration `validate:"gte=0"`

	// DrainTimeout bounds how long Close waits for the Evictor and async
	// dispatcher workers to finish in-flight work.
	DrainTimeout time.Duration `validate:"gte=0"`

	Logger *slog.Logger
}

// Builder constructs a Config with validated, defaulted fields, mirroring
// the layered configuration pattern the rest of this module's ambient
// stack uses (struct tags validated with go-playground/validator).
type Builder struct {
	cfg Config
}

// NewConfigBuilder starts a Builder with the cache's defaults: unbounded
// capacity, eternal expiration, a 30s sweep interval, and synchronous-only
// listener defaults.
func NewConfigBuilder() *Builder {
	return &Builder{cfg: Config{
		EvictionPolicy:   EvictionLFU,
		ExpirationPolicy: ExpirationEternal,
		SweepInterval:    30 * time.Second,
		SampleSize:       64,
		AsyncQueueSize:   256,
		AsyncTimeout:     2 * time.Second,
		DrainTimeout:     5 * time.Second,
	}}
}

func (b *Builder) MaxEntries(n int) *Builder             { b.cfg.MaxEntries = n; return b }
func (b *Builder) WithEvictionPolicy(p EvictionPolicyName) *Builder {
	b.cfg.EvictionPolicy = p
	return b
}
func (b *Builder) WithExpirationPolicy(p ExpirationPolicyName, ttl time.Duration) *Builder {
	b.cfg.ExpirationPolicy = p
	b.cfg.TTL = ttl
	return b
}
func (b *Builder) SweepInterval(d time.Duration) *Builder   { b.cfg.SweepInterval = d; return b }
func (b *Builder) SampleSize(n int) *Builder                { b.cfg.SampleSize = n; return b }
func (b *Builder) AsyncQueueSize(n int) *Builder            { b.cfg.AsyncQueueSize = n; return b }
func (b *Builder) AsyncTimeout(d time.Duration) *Builder    { b.cfg.AsyncTimeout = d; return b }
func (b *Builder) DrainTimeout(d time.Duration) *Builder    { b.cfg.DrainTimeout = d; return b }
func (b *Builder) Logger(l *slog.Logger) *Builder           { b.cfg.Logger = l; return b }

// Build validates the accumulated Config and returns it, or an
// IllegalArgumentError describing the first validation failure.
func (b *Builder) Build() (Config, error) {
	if err := validate.Struct(b.cfg); err != nil {
		return Config{}, &IllegalArgumentError{Message: "invalid cache config", Cause: err}
	}
	return b.cfg, nil
}

func (cfg Config) buildExpirationPolicy() ExpirationPolicy {
	switch cfg.ExpirationPolicy {
	case ExpirationCreated:
		return CreatedExpiration{TTL: cfg.TTL}
	case ExpirationModified:
		return ModifiedExpiration{TTL: cfg.TTL}
	case ExpirationAccessed:
		return AccessedExpiration{TTL: cfg.TTL}
	default:
		return EternalExpiration{}
	}
}

func buildEvictionPolicy[K comparable](cfg Config) eviction.Policy[K] {
	switch cfg.EvictionPolicy {
	case EvictionLRU:
		cap := cfg.MaxEntries
		if cap <= 0 {
			cap = 1024
		}
		return eviction.NewLRU[K](cap)
	case EvictionFIFO:
		return eviction.NewFIFO[K]()
	default:
		return eviction.NewLFU[K]()
	}
}
