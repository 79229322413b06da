// Package events publishes assessed offers to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/economics"
	apperrors "github.com/GriffinCanCode/ride-copilot/platform/internal/errors"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/history"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/offer"
)

// Event types
const (
	TypeOfferAssessed = "offer_assessed"
	TypeStatusChanged = "offer_status_changed"
)

type Event struct {
	Type           string          `json:"type"`
	RecordID       uuid.UUID       `json:"record_id"`
	Platform       offer.Platform  `json:"platform,omitempty"`
	Format         string          `json:"format,omitempty"`
	RideType       *string         `json:"ride_type,omitempty"`
	Fare           *float64        `json:"fare,omitempty"`
	AdjustedFare   float64         `json:"adjusted_fare"`
	TotalMiles     float64         `json:"total_miles"`
	TotalMinutes   float64         `json:"total_minutes"`
	PricePerMile   float64         `json:"price_per_mile"`
	PricePerHour   float64         `json:"price_per_hour"`
	Profit         float64         `json:"profit"`
	Recommendation economics.Level `json:"recommendation"`
	Score          *float64        `json:"score,omitempty"`
	Status         string          `json:"status,omitempty"`
	At             time.Time       `json:"at"`
}

// FromRecord builds an event of the given type. score may be nil.
func FromRecord(typ string, r history.Record, score *economics.ScoreBreakdown) Event {
	e := Event{
		Type:           typ,
		RecordID:       r.ID,
		Platform:       r.Offer.Platform,
		Format:         r.Offer.Format,
		RideType:       r.Offer.RideType,
		Fare:           r.Offer.Fare,
		AdjustedFare:   r.Assessment.AdjustedFare,
		TotalMiles:     r.Assessment.TotalMiles,
		TotalMinutes:   r.Assessment.TotalMinutes,
		PricePerMile:   r.Assessment.PricePerMile,
		PricePerHour:   r.Assessment.PricePerHour,
		Profit:         r.Assessment.Profit,
		Recommendation: r.Recommendation,
		Status:         r.Status,
		At:             r.SeenAt,
	}
	if score != nil {
		e.Score = offer.Float(score.Composite)
	}
	return e
}

type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }
func (NopSink) Close() error                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes JSON events keyed by record ID, so every event about one
// offer lands on the same partition.
type KafkaSink struct {
	writer  messageWriter
	timeout time.Duration
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	})
	return &KafkaSink{writer: w, timeout: 2 * time.Second}
}

func (k *KafkaSink) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "encode event")
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.RecordID.String()), Value: b}); err != nil {
		return apperrors.Wrap(err, apperrors.CodePublishFailed, "publish event").
			WithMetadata("type", e.Type)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
