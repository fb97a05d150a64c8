package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the scoring pipeline. It is resolved
// once at startup and passed explicitly into constructors; nothing in the
// pipeline reads environment variables or globals after this point.
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Embedding holds the dense embedding service configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Sparse holds the sparse embedding service configuration
	Sparse SparseConfig `mapstructure:"sparse"`

	// Reranker holds the cross-encoder service configuration
	Reranker RerankerConfig `mapstructure:"reranker"`

	// Transport selects and tunes the wire transport
	Transport TransportConfig `mapstructure:"transport"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// BM25 holds the local term-weighting parameters
	BM25 BM25Config `mapstructure:"bm25"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// EmbeddingConfig holds dense embedding endpoint configuration. These are
// per-dataset values resolved by the caller before the pipeline starts.
type EmbeddingConfig struct {
	// BaseURL is the synchronous endpoint, e.g. "http://embed:8080"
	BaseURL string `mapstructure:"base_url"`

	// StreamOrigin is the persistent-channel endpoint, e.g. "ws://embed:8081"
	StreamOrigin string `mapstructure:"stream_origin"`

	// Model is the embedding model identifier sent with every request
	Model string `mapstructure:"model"`

	// APIKey authenticates against the embedding service.
	// Excluded from JSON serialization to prevent accidental exposure.
	APIKey string `mapstructure:"api_key" json:"-"`

	// QueryPrefix is prepended to query-mode inputs before embedding,
	// for models with asymmetric query/document encoders
	QueryPrefix string `mapstructure:"query_prefix"`
}

// SparseConfig holds sparse embedding endpoint configuration. Doc and
// query encoders are separate deployments, selected by encode mode.
type SparseConfig struct {
	DocOrigin   string `mapstructure:"doc_origin"`
	QueryOrigin string `mapstructure:"query_origin"`

	DocStreamOrigin   string `mapstructure:"doc_stream_origin"`
	QueryStreamOrigin string `mapstructure:"query_stream_origin"`

	APIKey string `mapstructure:"api_key" json:"-"`
}

// RerankerConfig holds cross-encoder endpoint configuration
type RerankerConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	StreamOrigin string `mapstructure:"stream_origin"`
	APIKey       string `mapstructure:"api_key" json:"-"`
}

// Transport modes.
const (
	TransportHTTP   = "http"
	TransportStream = "stream"
)

// TransportConfig selects the wire transport and bounds the streaming one.
type TransportConfig struct {
	// Mode is "http" (synchronous request/response) or "stream"
	// (persistent channel with per-item framing)
	Mode string `mapstructure:"mode"`

	// MaxInFlight caps concurrently outstanding calls on the streaming
	// transport (default 5). The http transport runs one task per batch
	// group with no additional cap.
	MaxInFlight int `mapstructure:"max_in_flight"`

	// WindowSize and WindowTimeoutSeconds bound the streaming response
	// collection window (defaults 3 items / 10 seconds)
	WindowSize           int `mapstructure:"window_size"`
	WindowTimeoutSeconds int `mapstructure:"window_timeout_seconds"`

	// RequestTimeoutSeconds bounds a single synchronous request. Zero
	// preserves the historical behavior: no timeout, a hung remote call
	// blocks its batch group.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// CircuitBreakerConfig holds configuration for the optional breaker
// wrapped around the scoring client.
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// BM25Config holds the local sparse scoring parameters.
type BM25Config struct {
	// AvgDocLen is the corpus-wide average document length in tokens
	AvgDocLen float32 `mapstructure:"avg_doc_len"`

	// B is the length-normalization factor (0 disables length penalty)
	B float32 `mapstructure:"b"`

	// K1 is the term-frequency saturation factor
	K1 float32 `mapstructure:"k1"`
}

// Load loads configuration from the viper-backed file and environment.
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("transport.mode", TransportHTTP)
	viper.SetDefault("transport.max_in_flight", 5)
	viper.SetDefault("transport.window_size", 3)
	viper.SetDefault("transport.window_timeout_seconds", 10)
	viper.SetDefault("transport.request_timeout_seconds", 0)

	viper.SetDefault("circuit_breaker.enabled", false)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	viper.SetDefault("bm25.avg_doc_len", 256)
	viper.SetDefault("bm25.b", 0.75)
	viper.SetDefault("bm25.k1", 1.2)
}

// overrideWithEnv overrides credentials from the environment so keys can
// stay out of config files.
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("VECTORPIPE_API_KEY"); apiKey != "" {
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = apiKey
		}
		if config.Sparse.APIKey == "" {
			config.Sparse.APIKey = apiKey
		}
		if config.Reranker.APIKey == "" {
			config.Reranker.APIKey = apiKey
		}
	}
}
