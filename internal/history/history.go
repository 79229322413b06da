// Package history records assessed offers and summarizes driving shifts
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/economics"
	apperrors "github.com/GriffinCanCode/ride-copilot/platform/internal/errors"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/offer"
)

// Record is one assessed offer as it was shown to the driver.
type Record struct {
	ID             uuid.UUID            `json:"id"`
	Offer          offer.RideOffer      `json:"offer"`
	Assessment     economics.Assessment `json:"assessment"`
	Recommendation economics.Level      `json:"recommendation"`
	SeenAt         time.Time            `json:"seen_at"`
	Status         string               `json:"status"`
}

// NewRecord stamps a fresh ID. SeenAt falls back to the offer timestamp.
func NewRecord(o offer.RideOffer, a economics.Assessment, seenAt time.Time) Record {
	if seenAt.IsZero() {
		seenAt = o.Timestamp
	}
	return Record{
		ID:             uuid.New(),
		Offer:          o,
		Assessment:     a,
		Recommendation: a.Overall,
		SeenAt:         seenAt,
		Status:         o.Status,
	}
}

// Store persists records.
type Store interface {
	Save(ctx context.Context, r Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	// Since returns records seen at or after t, oldest first.
	Since(ctx context.Context, t time.Time) ([]Record, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Pruneable stores can drop old records.
type Pruneable interface {
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
}

// ValidStatus reports whether s is a status a driver can set.
func ValidStatus(s string) bool {
	switch s {
	case offer.StatusNone, offer.StatusAccepted, offer.StatusDeclined:
		return true
	}
	return false
}

func errInvalidStatus(status string) error {
	return apperrors.Newf(apperrors.CodeInvalidArgument, "invalid status %q", status)
}

func errNotFound(id uuid.UUID) error {
	return apperrors.New(apperrors.CodeNotFound, "record not found").WithMetadata("id", id.String())
}
