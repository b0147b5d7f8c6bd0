// UroSentinel - Clinical Audit Integrity and Security Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/urosentinel

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/tomtom215/urosentinel/internal/logging"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("eventbus: publisher is closed")

// Config selects and configures the transport.
type Config struct {
	// NATSEnabled publishes to JetStream at NATSURL; otherwise messages stay in process.
	NATSEnabled   bool
	NATSURL       string
	MaxReconnects int
	ReconnectWait time.Duration

	Breaker BreakerConfig
}

// Publisher publishes JSON payloads to topics behind a circuit breaker.
type Publisher struct {
	pub     message.Publisher
	local   *gochannel.GoChannel
	breaker *Breaker
	logger  watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// New creates a Publisher for cfg.
func New(cfg Config) (*Publisher, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())
	if cfg.Breaker.Name == "" {
		cfg.Breaker = DefaultBreakerConfig("eventbus")
	}

	if !cfg.NATSEnabled {
		return NewInProcess(logger, cfg.Breaker), nil
	}

	pub, err := newNATSPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}
	logging.Info().Str("url", cfg.NATSURL).Msg("Event bus publishing to NATS JetStream")
	return &Publisher{pub: pub, breaker: NewCircuitBreaker(cfg.Breaker), logger: logger}, nil
}

// NewInProcess creates a Publisher backed by a Watermill gochannel.
func NewInProcess(logger watermill.LoggerAdapter, breaker BreakerConfig) *Publisher {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	local := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	return &Publisher{pub: local, local: local, breaker: NewCircuitBreaker(breaker), logger: logger}
}

// Publish sends payload to topic. metadata entries become message metadata.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte, metadata map[string]string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	for k, v := range metadata {
		msg.Metadata.Set(k, v)
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		msg.Metadata.Set("request_id", id)
	}

	if err := p.breaker.Execute(func() error { return p.pub.Publish(topic, msg) }); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns messages for topic. Only the in-process transport
// supports subscriptions.
func (p *Publisher) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if p.local == nil {
		return nil, errors.New("eventbus: subscribe requires the in-process transport")
	}
	return p.local.Subscribe(ctx, topic)
}

// BreakerState reports the publish circuit breaker state.
func (p *Publisher) BreakerState() string {
	return p.breaker.State()
}

// Close releases the transport. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.pub.Close()
}
