package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"voice-ordering-service/internal/schema"
)

type consumerConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string        // empty reads partition 0 directly
	Lookback time.Duration // replay window when not in a group
}

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

func newReader(ctx context.Context, cfg consumerConfig, log zerolog.Logger) messageReader {
	rc := kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	if cfg.GroupID != "" {
		rc.GroupID = cfg.GroupID
		return kafka.NewReader(rc)
	}

	// Partition reader without consumer group (works better through port-forward)
	rc.Partition = 0
	r := kafka.NewReader(rc)
	if cfg.Lookback > 0 {
		if err := r.SetOffsetAt(ctx, time.Now().Add(-cfg.Lookback)); err != nil {
			log.Warn().Err(err).Str("topic", cfg.Topic).Msg("Could not rewind, reading from the start")
		}
	}
	return r
}

// consume forwards every event on reader to hub until ctx ends. Events
// that fail schema validation are skipped when validator is set.
func consume(ctx context.Context, reader messageReader, topic string, hub *Hub, validator *schema.Validator, log zerolog.Logger) {
	defer reader.Close()
	log.Info().Str("topic", topic).Msg("Consuming")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		if validator != nil {
			if err := validator.ValidateJSON(msg.Value); err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("Skipping invalid event")
				continue
			}
		}
		ev, err := decodeEvent(topic, msg.Value)
		if err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Skipping undecodable event")
			continue
		}

		log.Debug().Str("eventType", ev.EventType).Str("sessionId", ev.SessionID).Msg("Received")
		hub.Broadcast(ev)
	}
}
