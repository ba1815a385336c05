package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/stazy/chargeshare/internal/core/domain"
)

const (
	StreamName = "CHARGESHARE"

	SubjectCatalogUpdated      = "chargeshare.catalog.updated"
	SubjectReservationsCreated = "chargeshare.reservations.created"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// Connect opens a NATS connection that keeps retrying in the background.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// NewPublisher enables JetStream on conn and ensures the event stream exists.
func NewPublisher(conn *nats.Conn) (*Publisher, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"chargeshare.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist; try update
		if _, err := js.UpdateStream(cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishCatalogUpdated(ctx context.Context, ev domain.CatalogUpdated) error {
	return p.publish(ctx, SubjectCatalogUpdated, ev)
}

func (p *Publisher) PublishReservationCreated(ctx context.Context, r *domain.Reservation) error {
	return p.publish(ctx, SubjectReservationsCreated, reservationEvent{
		ID:          r.ID,
		ClientID:    r.ClientID,
		StationID:   r.StationID,
		StationName: r.StationName,
		StartTime:   r.StartTime,
		Amount:      r.Amount,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
	})
}

// reservationEvent carries the client id, which the API representation hides.
type reservationEvent struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"clientId"`
	StationID   string     `json:"stationId,omitempty"`
	StationName string     `json:"stationName"`
	StartTime   *time.Time `json:"date,omitempty"`
	Amount      float64    `json:"amount"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (p *Publisher) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// IsConnected reports the connection state for readiness checks.
func (p *Publisher) IsConnected() bool {
	return p.conn.IsConnected()
}
