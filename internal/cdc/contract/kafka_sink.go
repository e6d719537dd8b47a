package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ILLUVRSE/streamkit/internal/engine"
)

// KafkaSinkConfig configures KafkaSink.
type KafkaSinkConfig struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int
	WriteTimeout time.Duration
	Balancer     kafka.Balancer
}

// KafkaSink is a terminal pipeline operator that JSON-encodes each Record
// keyed by its SourceID+Position and produces it to Kafka with retry and
// exponential backoff.
type KafkaSink struct {
	writer      *kafka.Writer
	maxAttempts int
	telemetry   engine.TelemetryProvider
}

// NewKafkaSink builds a KafkaSink.
func NewKafkaSink(cfg KafkaSinkConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("cdc kafka sink: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("cdc kafka sink: topic required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Balancer == nil {
		cfg.Balancer = &kafka.Hash{}
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     cfg.Balancer,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})

	return &KafkaSink{writer: w, maxAttempts: cfg.MaxAttempts}, nil
}

func (k *KafkaSink) SetNext(engine.Operator[Record]) error {
	return engine.NewIllegalConfigurationError("SetNext called on a sink operator")
}

func (k *KafkaSink) SetTelemetryProvider(p engine.TelemetryProvider) { k.telemetry = p }

// Process JSON-encodes r and produces it, retrying with exponential
// backoff capped at 2s per attempt, up to maxAttempts.
func (k *KafkaSink) Process(ctx context.Context, r Record) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: marshal cdc record: %v", ErrSerialization, err)
	}
	key := []byte(fmt.Sprintf("%s:%s", r.SourceID, r.Position))

	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= k.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := k.writer.WriteMessages(attemptCtx, kafka.Message{Key: key, Value: value, Time: time.Now().UTC()})
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 2*time.Second {
			backoff = 2 * time.Second
		}
	}
	return fmt.Errorf("cdc kafka sink: produce failed after %d attempts: %w", k.maxAttempts, lastErr)
}

// Close releases the underlying writer.
func (k *KafkaSink) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
