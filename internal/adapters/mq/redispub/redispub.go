// Package redispub publishes notifications on Redis pub/sub so that other
// processes (display renderers, bots) can follow an event.
package redispub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/okian/tally/internal/domain/model"
)

const defaultPrefix = "tally:"

// ErrNoClient is returned when the publisher has no redis client.
var ErrNoClient = errors.New("redis client is nil")

// Publisher is a worker sink backed by redis PUBLISH.
type Publisher struct {
	client redis.UniversalClient
	prefix string
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithPrefix sets the prefix prepended to every notification channel.
func WithPrefix(prefix string) Option {
	return func(p *Publisher) {
		p.prefix = prefix
	}
}

// New wraps an existing client.
func New(client redis.UniversalClient, opts ...Option) *Publisher {
	p := &Publisher{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dial creates a client for addr and wraps it.
func Dial(addr, password string, db int, opts ...Option) *Publisher {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return New(client, opts...)
}

// Name identifies the sink in metrics and logs.
func (p *Publisher) Name() string { return "redis" }

// Channel returns the redis channel a notification channel maps to.
func (p *Publisher) Channel(channel string) string { return p.prefix + channel }

// Deliver publishes the JSON envelope once per notification channel.
func (p *Publisher) Deliver(ctx context.Context, n model.Notification) error { //nolint:gocritic // hugeParam: matches the sink contract
	if p.client == nil {
		return ErrNoClient
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	var errs []error
	for _, ch := range n.Channels {
		if err := p.client.Publish(ctx, p.Channel(ch), data).Err(); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}

// Ping checks connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	if p.client == nil {
		return ErrNoClient
	}
	return p.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
