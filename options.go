package blockstream

import (
	"errors"
	"time"
)

// config holds internal configuration
type config struct {
	ReadBufferSize     int           // Internal stream buffer capacity in bytes
	DirectIO           bool          // Bypass page cache for local block reads
	VerifyOnRead       bool          // Verify block checksums on full reads
	RemoteTimeout      time.Duration // Per-request deadline for remote fetches (0 = none)
	BloomFPRate        float64
	BloomEstimatedKeys int
	Metrics            *Metrics
}

// Option configures block streams and stores
type Option interface {
	apply(*config)
}

// funcOpt wraps a function as an Option
type funcOpt func(*config)

func (f funcOpt) apply(c *config) {
	f(c)
}

// WithReadBufferSize sets the internal stream buffer capacity in bytes
// (default: 8 MiB). Reads larger than the buffered content bypass the
// buffer entirely, so small buffers only hurt byte-at-a-time consumers.
func WithReadBufferSize(n int) Option {
	return funcOpt(func(c *config) {
		c.ReadBufferSize = n
	})
}

// WithDirectIO opens local block files with O_DIRECT (default: false).
// Refills then go through an aligned scratch buffer; see LocalTransport.
func WithDirectIO(enabled bool) Option {
	return funcOpt(func(c *config) {
		c.DirectIO = enabled
	})
}

// WithVerifyOnRead enables checksum verification on full-block reads
// (default: false, opt-in)
func WithVerifyOnRead(enabled bool) Option {
	return funcOpt(func(c *config) {
		c.VerifyOnRead = enabled
	})
}

// WithRemoteTimeout sets the per-request deadline for remote block fetches
// (default: 30s, 0 = no deadline). No retries happen at this layer; a
// deadline error surfaces to the read that triggered the fetch.
func WithRemoteTimeout(d time.Duration) Option {
	return funcOpt(func(c *config) {
		c.RemoteTimeout = d
	})
}

// WithBloomFPRate sets the store's bloom filter false positive rate
// (default: 0.01 = 1%)
func WithBloomFPRate(rate float64) Option {
	return funcOpt(func(c *config) {
		c.BloomFPRate = rate
	})
}

// WithBloomEstimatedKeys sets estimated block count for bloom filter sizing
// (default: 1M)
func WithBloomEstimatedKeys(n int) Option {
	return funcOpt(func(c *config) {
		c.BloomEstimatedKeys = n
	})
}

// WithMetrics attaches a shared metrics collector. One collector may be
// shared by many streams; counters are atomic.
func WithMetrics(m *Metrics) Option {
	return funcOpt(func(c *config) {
		c.Metrics = m
	})
}

// Common errors
var (
	// ErrClosed is returned by any stream operation after Close.
	ErrClosed = errors.New("block stream is closed")
	// ErrInvalidArgument is returned for out-of-range seek targets and
	// malformed (offset, length) pairs. The stream state is never mutated
	// when it is returned.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrBlockNotFound is returned when no location is registered for a block.
	ErrBlockNotFound = errors.New("block not found")
)

// defaultConfig returns sensible defaults
func defaultConfig() config {
	return config{
		ReadBufferSize:     8 << 20, // 8 MiB, matches typical remote read buffer sizing
		DirectIO:           false,
		VerifyOnRead:       false,
		RemoteTimeout:      30 * time.Second,
		BloomFPRate:        0.01,      // 1% FP rate
		BloomEstimatedKeys: 1_000_000, // 1M blocks → ~1.2 MB bloom
	}
}
