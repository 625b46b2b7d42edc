// Package events publishes interview lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	segjson "github.com/segmentio/encoding/json"
	"github.com/segmentio/kafka-go"

	"ai-interview-service/internal/observability/metrics"
)

// Publisher publishes interview events to separate Kafka topics: one message
// per completed turn, one per finalized session.
type Publisher struct {
	writerTurn    *kafka.Writer
	writerSession *kafka.Writer
	principal     string
	topicTurn     string
	topicSession  string
	enabled       bool
	metrics       *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicTurn    string
	TopicSession string
	Principal    string
	Enabled      bool
}

// New creates a Kafka event publisher with separate topics for turn and
// session events. A disabled publisher logs events instead of writing them.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:    cfg.Principal,
			topicTurn:    cfg.TopicTurn,
			topicSession: cfg.TopicSession,
			enabled:      false,
			metrics:      m,
		}
	}

	// Custom dialer with longer timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerTurn := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicTurn,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerSession := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicSession,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTurn", cfg.TopicTurn).
		Str("topicSession", cfg.TopicSession).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerTurn:    writerTurn,
		writerSession: writerSession,
		principal:     cfg.Principal,
		topicTurn:     cfg.TopicTurn,
		topicSession:  cfg.TopicSession,
		enabled:       true,
		metrics:       m,
	}
}

// PublishTurn publishes a completed-turn event keyed by session ID.
func (p *Publisher) PublishTurn(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerTurn, p.topicTurn, "turn", key, event)
}

// PublishSession publishes a session-finalized event keyed by session ID.
func (p *Publisher) PublishSession(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerSession, p.topicSession, "session", key, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := segjson.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordEventPublish(topic, eventType, nil, time.Since(start).Seconds())
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
		p.metrics.RecordEventPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordEventPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTurn != nil {
		if e := p.writerTurn.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing turn writer")
			err = e
		}
	}
	if p.writerSession != nil {
		if e := p.writerSession.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing session writer")
			err = e
		}
	}
	return err
}
