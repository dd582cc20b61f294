package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	ErrQueueFull = errors.New("event queue full")
	ErrClosed    = errors.New("publisher closed")
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues events in memory and writes them from a single
// goroutine, so a slow or absent broker never holds up an HTTP request.
// Events still queued when the process dies are lost.
type KafkaPublisher struct {
	w            MessageWriter
	producer     string
	logger       *slog.Logger
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	inbox  chan kafka.Message
	done   chan struct{}
}

func NewKafkaPublisher(brokers []string, topic, producer string, buf int, logger *slog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return NewPublisher(w, producer, buf, logger)
}

// NewPublisher builds a publisher over any MessageWriter. Call Start before
// publishing and Close on shutdown.
func NewPublisher(w MessageWriter, producer string, buf int, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		w:            w,
		producer:     producer,
		logger:       logger,
		writeTimeout: 10 * time.Second,
		inbox:        make(chan kafka.Message, buf),
		done:         make(chan struct{}),
	}
}

func (p *KafkaPublisher) Start() {
	go func() {
		defer close(p.done)

		for m := range p.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
			if err := p.w.WriteMessages(ctx, m); err != nil {
				p.logger.Error("publish event",
					"key", string(m.Key),
					"error", err,
				)
			}
			cancel()
		}

		if err := p.w.Close(); err != nil {
			p.logger.Error("close kafka writer", "error", err)
		}
	}()
}

func (p *KafkaPublisher) PublishOrderPlaced(_ context.Context, traceID string, event OrderPlaced) error {
	env, err := NewEnvelope(p.producer, traceID, event)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(EventOrderPlaced)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(eventVersion))},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.inbox <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events, flushes what is queued and waits for the
// writer goroutine to exit. It returns early with ctx's error.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
