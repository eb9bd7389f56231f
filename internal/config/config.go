// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Service       ServiceConfig
	STT           STTConfig
	CaptureLimits CaptureLimitsConfig
	Catalog       CatalogConfig
	Ordering      OrderingConfig
	Feedback      FeedbackConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds service identity and listener ports.
type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	GRPCPort    string
	MetricsPort string
}

// STTConfig holds speech-to-text provider settings.
type STTConfig struct {
	Provider        string // "mock" or "google"
	LanguageCode    string
	SampleRateHz    int
	InterimResults  bool
	AudioEncoding   string
	CredentialsFile string
	PhraseHints     bool // send catalog keywords as recognition hints
}

// CaptureLimitsConfig bounds a single utterance of pushed audio.
type CaptureLimitsConfig struct {
	MaxAudioBytes int64
	MaxDuration   time.Duration
	MaxPartials   int
}

// CatalogConfig locates the menu.
type CatalogConfig struct {
	Path string // YAML menu file; empty uses the built-in menu
}

// OrderingConfig tunes the ordering session.
type OrderingConfig struct {
	SettleDelay   time.Duration
	CommitTimeout time.Duration
	MaxQuantity   int
	MaxSessions   int
}

// FeedbackConfig holds spoken feedback settings.
type FeedbackConfig struct {
	Muted  bool
	Rate   float64
	Pitch  float64
	Volume float64
}

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicPartial string
	TopicFinal   string
	TopicCart    string
	TopicOutcome string
	Principal    string
	Validate     bool
	BufferSize   int
	Timeout      time.Duration
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // "json" or "console"
}

// Load reads configuration from the environment. Invalid values fall back
// to defaults.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-voice-ordering")

	return &Config{
		Service: ServiceConfig{
			Principal:   principal,
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
		STT: STTConfig{
			Provider:        envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode:    envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:    envOrDefaultInt("STT_SAMPLE_RATE_HZ", 8000),
			InterimResults:  envOrDefaultBool("STT_INTERIM_RESULTS", true),
			AudioEncoding:   envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			PhraseHints:     envOrDefaultBool("STT_PHRASE_HINTS", true),
		},
		CaptureLimits: CaptureLimitsConfig{
			MaxAudioBytes: int64(envOrDefaultInt("CAPTURE_MAX_AUDIO_BYTES", 5*1024*1024)),
			MaxDuration:   envOrDefaultDuration("CAPTURE_MAX_DURATION", 2*time.Minute),
			MaxPartials:   envOrDefaultInt("CAPTURE_MAX_PARTIALS", 500),
		},
		Catalog: CatalogConfig{
			Path: os.Getenv("MENU_FILE"),
		},
		Ordering: OrderingConfig{
			SettleDelay:   envOrDefaultDuration("ORDER_SETTLE_DELAY", 1200*time.Millisecond),
			CommitTimeout: envOrDefaultDuration("ORDER_COMMIT_TIMEOUT", 5*time.Second),
			MaxQuantity:   envOrDefaultInt("ORDER_MAX_QUANTITY", 20),
			MaxSessions:   envOrDefaultInt("ORDER_MAX_SESSIONS", 100),
		},
		Feedback: FeedbackConfig{
			Muted:  envOrDefaultBool("FEEDBACK_MUTED", false),
			Rate:   envOrDefaultFloat("FEEDBACK_RATE", 1.0),
			Pitch:  envOrDefaultFloat("FEEDBACK_PITCH", 1.0),
			Volume: envOrDefaultFloat("FEEDBACK_VOLUME", 1.0),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      envOrDefaultList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicPartial: envOrDefault("KAFKA_TOPIC_PARTIAL", "ordering.transcript.partial"),
			TopicFinal:   envOrDefault("KAFKA_TOPIC_FINAL", "ordering.transcript.final"),
			TopicCart:    envOrDefault("KAFKA_TOPIC_CART", "ordering.cart.units_added"),
			TopicOutcome: envOrDefault("KAFKA_TOPIC_OUTCOME", "ordering.session.outcome"),
			Principal:    envOrDefault("KAFKA_PRINCIPAL", principal),
			Validate:     envOrDefaultBool("KAFKA_VALIDATE_EVENTS", true),
			BufferSize:   envOrDefaultInt("KAFKA_BUFFER_SIZE", 256),
			Timeout:      envOrDefaultDuration("KAFKA_PUBLISH_TIMEOUT", 5*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
