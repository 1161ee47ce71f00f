// Package natsbus publishes FiatBridge journal events to NATS JetStream.
//
// Each event is encoded as JSON and published on "<prefix>.<type>", for
// example "fiatbridge.events.TransactionInitiated". The event ID is sent as
// the JetStream message ID so redelivered publishes are deduplicated by the
// server.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/plugin"
)

// Defaults used when no option overrides them.
const (
	DefaultStream        = "FIATBRIDGE_EVENTS"
	DefaultSubjectPrefix = "fiatbridge.events"
	DefaultMaxAge        = 7 * 24 * time.Hour
)

var (
	_ plugin.Plugin     = (*Publisher)(nil)
	_ plugin.OnInit     = (*Publisher)(nil)
	_ plugin.OnEvent    = (*Publisher)(nil)
	_ plugin.OnShutdown = (*Publisher)(nil)
)

// JetStream is the subset of nats.JetStreamContext the publisher uses.
type JetStream interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher is a FiatBridge plugin that forwards journal events to JetStream.
type Publisher struct {
	js     JetStream
	conn   *nats.Conn
	stream string
	prefix string
	maxAge time.Duration
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithStream sets the JetStream stream name.
func WithStream(name string) Option {
	return func(p *Publisher) { p.stream = name }
}

// WithSubjectPrefix sets the subject prefix events are published under.
func WithSubjectPrefix(prefix string) Option {
	return func(p *Publisher) { p.prefix = prefix }
}

// WithMaxAge sets the retention of the stream created on init.
func WithMaxAge(d time.Duration) Option {
	return func(p *Publisher) { p.maxAge = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// New creates a Publisher on an existing JetStream context.
func New(js JetStream, opts ...Option) *Publisher {
	p := &Publisher{
		js:     js,
		stream: DefaultStream,
		prefix: DefaultSubjectPrefix,
		maxAge: DefaultMaxAge,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect dials url and returns a Publisher that owns the connection.
// The connection is drained on shutdown.
func Connect(url string, opts ...Option) (*Publisher, error) {
	p := New(nil, opts...)

	conn, err := nats.Connect(url,
		nats.Name("fiatbridge"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.logger.Warn("natsbus: disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			p.logger.Info("natsbus: reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natsbus: connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("natsbus: jetstream: %w", err)
	}

	p.js = js
	p.conn = conn
	return p, nil
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "natsbus" }

// Subject returns the subject an event type is published on.
func (p *Publisher) Subject(t event.Type) string {
	return p.prefix + "." + string(t)
}

// OnInit implements plugin.OnInit. It creates the stream when missing.
func (p *Publisher) OnInit(_ context.Context, _ interface{}) error {
	return p.ensureStream()
}

func (p *Publisher) ensureStream() error {
	_, err := p.js.StreamInfo(p.stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("natsbus: stream info %s: %w", p.stream, err)
	}

	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:       p.stream,
		Subjects:   []string{p.prefix + ".>"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     p.maxAge,
		Storage:    nats.FileStorage,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("natsbus: add stream %s: %w", p.stream, err)
	}

	p.logger.Info("natsbus: stream created", "stream", p.stream, "subjects", p.prefix+".>")
	return nil
}

// OnEvent implements plugin.OnEvent.
func (p *Publisher) OnEvent(_ context.Context, e *event.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("natsbus: encode event %d: %w", e.Seq, err)
	}

	subject := p.Subject(e.Type)
	if _, err := p.js.Publish(subject, data, nats.MsgId(e.ID.String())); err != nil {
		return fmt.Errorf("natsbus: publish %s: %w", subject, err)
	}
	return nil
}

// OnShutdown implements plugin.OnShutdown.
func (p *Publisher) OnShutdown(_ context.Context) error {
	return p.Close()
}

// Close drains the connection when the Publisher owns one.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
