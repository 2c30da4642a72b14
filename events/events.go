// Package events publishes scored mentions on a NATS subject.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"aisentinel/mention"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "aisentinel.mentions"

// MentionScored is the payload published for every stored mention.
type MentionScored struct {
	Key        string    `json:"key"`
	Source     string    `json:"source"`
	Tool       string    `json:"tool"`
	Category   string    `json:"category"`
	Score      float64   `json:"score"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Analyzer   string    `json:"analyzer"`
	CreatedAt  time.Time `json:"created_at"`
	RunID      string    `json:"run_id,omitempty"`
}

// FromMention builds the event for m.
func FromMention(m mention.Mention, runID string) MentionScored {
	return MentionScored{
		Key:        m.Key(),
		Source:     string(m.Source),
		Tool:       m.Tool,
		Category:   string(m.Category),
		Score:      m.Score,
		Label:      m.Label,
		Confidence: m.Confidence,
		Analyzer:   m.Analyzer,
		CreatedAt:  m.CreatedAt,
		RunID:      runID,
	}
}

// Subject returns the subject an event is published on: the base subject
// followed by the mention's source, e.g. aisentinel.mentions.reddit.
func Subject(base string, evt MentionScored) string {
	if evt.Source == "" {
		return base
	}
	return base + "." + evt.Source
}

// NATSConfig configures NewNATSBus.
type NATSConfig struct {
	URL     string
	Subject string
}

// NATSBus publishes events on NATS core subjects.
type NATSBus struct {
	nc      *nats.Conn
	subject string
}

// NewNATSBus connects to the server at cfg.URL (nats.DefaultURL if empty).
func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("aisentinel"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", url, err)
	}
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSBus{nc: nc, subject: subject}, nil
}

// Publish sends evt on the bus.
func (b *NATSBus) Publish(ctx context.Context, evt MentionScored) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", evt.Key, err)
	}
	if err := b.nc.Publish(Subject(b.subject, evt), data); err != nil {
		return fmt.Errorf("publishing event %s: %w", evt.Key, err)
	}
	return nil
}

// Subscribe calls handler for every event on the bus until ctx is done.
// Undecodable messages are skipped.
func (b *NATSBus) Subscribe(ctx context.Context, handler func(MentionScored)) error {
	sub, err := b.nc.Subscribe(b.subject+".>", func(msg *nats.Msg) {
		var evt MentionScored
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			slog.Warn("skipping undecodable event", "subject", msg.Subject, "error", err)
			return
		}
		handler(evt)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.subject, err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Drain()
	}()
	return nil
}

// Close flushes pending messages and closes the connection.
func (b *NATSBus) Close() error {
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return fmt.Errorf("draining nats connection: %w", err)
	}
	return nil
}
