package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/fiatbridge"
	"github.com/xraph/fiatbridge/natsbus"
	"github.com/xraph/fiatbridge/observability"
)

// WireOption adjusts how Options builds the plugin set.
type WireOption func(*wiring)

type wiring struct {
	js  natsbus.JetStream
	reg prometheus.Registerer
}

// WithJetStream publishes through js instead of dialing NATS.URL.
func WithJetStream(js natsbus.JetStream) WireOption {
	return func(w *wiring) { w.js = js }
}

// WithRegisterer registers metric collectors with reg instead of
// prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) WireOption {
	return func(w *wiring) { w.reg = reg }
}

// Options returns EngineOptions plus the plugins the configuration enables:
// the Prometheus metrics extension under MetricsNamespace, and the
// JetStream event publisher when NATS.URL is set or WithJetStream is given.
func (c Config) Options(logger *slog.Logger, opts ...WireOption) ([]fiatbridge.Option, error) {
	var w wiring
	for _, opt := range opts {
		opt(&w)
	}

	out := c.EngineOptions(logger)
	out = append(out, fiatbridge.WithPlugin(
		observability.NewMetricsExtension(observability.NewPrometheusFactory(c.MetricsNamespace, w.reg)),
	))

	pub, err := c.publisher(logger, w.js)
	if err != nil {
		return nil, err
	}
	if pub != nil {
		out = append(out, fiatbridge.WithPlugin(pub))
	}
	return out, nil
}

func (c Config) publisher(logger *slog.Logger, js natsbus.JetStream) (*natsbus.Publisher, error) {
	opts := []natsbus.Option{}
	if c.NATS.Stream != "" {
		opts = append(opts, natsbus.WithStream(c.NATS.Stream))
	}
	if c.NATS.SubjectPrefix != "" {
		opts = append(opts, natsbus.WithSubjectPrefix(c.NATS.SubjectPrefix))
	}
	if logger != nil {
		opts = append(opts, natsbus.WithLogger(logger))
	}

	switch {
	case js != nil:
		return natsbus.New(js, opts...), nil
	case c.NATS.URL != "":
		pub, err := natsbus.Connect(c.NATS.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("config: nats: %w", err)
		}
		return pub, nil
	default:
		return nil, nil
	}
}

// Bootstrap adds the tokens listed under chain.tokens to the registry of a
// started bridge. Tokens already supported are left as they are.
func (c Config) Bootstrap(ctx context.Context, b *fiatbridge.Bridge) error {
	owner, err := c.OwnerAddress()
	if err != nil {
		return err
	}
	tokens, err := c.SupportedTokens()
	if err != nil {
		return err
	}
	for _, addr := range tokens {
		if err := b.AddSupportedToken(ctx, owner, addr); err != nil {
			return fmt.Errorf("config: add token %s: %w", addr.Hex(), err)
		}
	}
	return nil
}
