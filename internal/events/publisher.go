// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"voice-ordering-service/internal/models"
	"voice-ordering-service/internal/observability/metrics"
	"voice-ordering-service/internal/schema"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes ordering events to one Kafka topic per event type.
type Publisher struct {
	writers   map[string]messageWriter // keyed by event type
	topics    map[string]string        // event type → topic
	principal string
	enabled   bool
	validator *schema.Validator
	metrics   *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicPartial string
	TopicFinal   string
	TopicCart    string
	TopicOutcome string
	Principal    string
	Enabled      bool

	// Validator, when set, rejects events that do not match their schema.
	Validator *schema.Validator
	// Metrics defaults to metrics.DefaultMetrics.
	Metrics *metrics.Metrics
}

func (c *Config) topicMap() map[string]string {
	return map[string]string{
		models.EventTranscriptPartial: c.TopicPartial,
		models.EventTranscriptFinal:   c.TopicFinal,
		models.EventCartUnitsAdded:    c.TopicCart,
		models.EventSessionOutcome:    c.TopicOutcome,
	}
}

// New creates a new Kafka event publisher with one writer per topic.
func New(cfg *Config) *Publisher {
	// Handle nil config case
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			topics:  map[string]string{},
			enabled: false,
			metrics: metrics.DefaultMetrics,
		}
	}

	m := cfg.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}

	p := &Publisher{
		topics:    cfg.topicMap(),
		principal: cfg.Principal,
		validator: cfg.Validator,
		metrics:   m,
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Create a custom dialer with longer timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	p.writers = make(map[string]messageWriter, len(p.topics))
	for eventType, topic := range p.topics {
		if topic == "" {
			continue
		}
		p.writers[eventType] = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // same session, same partition
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}
	p.enabled = true

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicPartial", cfg.TopicPartial).
		Str("topicFinal", cfg.TopicFinal).
		Str("topicCart", cfg.TopicCart).
		Str("topicOutcome", cfg.TopicOutcome).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

// PublishPartial publishes an interim transcript event.
func (p *Publisher) PublishPartial(ctx context.Context, key string, event models.TranscriptPartial) error {
	return p.publish(ctx, models.EventTranscriptPartial, "partial", key, event)
}

// PublishFinal publishes a final transcript event.
func (p *Publisher) PublishFinal(ctx context.Context, key string, event models.TranscriptFinal) error {
	return p.publish(ctx, models.EventTranscriptFinal, "final", key, event)
}

// PublishCartUnits publishes a cart addition.
func (p *Publisher) PublishCartUnits(ctx context.Context, key string, event models.CartUnitsAdded) error {
	return p.publish(ctx, models.EventCartUnitsAdded, "cart", key, event)
}

// PublishOutcome publishes a session outcome.
func (p *Publisher) PublishOutcome(ctx context.Context, key string, event models.SessionOutcome) error {
	return p.publish(ctx, models.EventSessionOutcome, "outcome", key, event)
}

// publish validates, encodes and writes one event.
func (p *Publisher) publish(ctx context.Context, eventType, label, key string, event any) error {
	start := time.Now()
	topic := p.topics[eventType]

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	if p.validator != nil {
		if err := p.validator.ValidateJSON(payload); err != nil {
			log.Error().Err(err).Str("topic", topic).Str("key", key).Msg("Event failed schema validation")
			p.metrics.RecordKafkaPublish(topic, label, err, time.Since(start).Seconds())
			return err
		}
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	writer := p.writers[eventType]
	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, label, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, label, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, label, nil, time.Since(start).Seconds())
	return nil
}

// Close closes all Kafka writers.
func (p *Publisher) Close() error {
	var err error
	for eventType, w := range p.writers {
		if e := w.Close(); e != nil {
			log.Error().Err(e).Str("eventType", eventType).Msg("Error closing Kafka writer")
			err = e
		}
	}
	return err
}
