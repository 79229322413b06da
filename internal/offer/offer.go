// Package offer defines the structured ride offer produced by the parsers.
package offer

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies the driver app an offer came from.
type Platform string

const (
	PlatformUnknown Platform = ""
	PlatformUber    Platform = "uber"
	PlatformLyft    Platform = "lyft"
)

// Legacy driver decision recorded after the fact.
const (
	StatusNone     = ""
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// RideTypeDelivery is the ride type label for delivery offers.
const RideTypeDelivery = "Delivery"

// NotAvailable is the sentinel for a location that could not be located.
const NotAvailable = "N/A"

// RideOffer is a single parsed ride offer. Nil pointers mean "not present in the source text".
type RideOffer struct {
	Platform Platform `json:"platform"`
	Format   string   `json:"format"`

	RideType    *string  `json:"ride_type,omitempty"`
	Fare        *float64 `json:"fare,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	RideSubtype *string  `json:"ride_subtype,omitempty"`

	PickupTime     *float64 `json:"pickup_time,omitempty"`
	PickupDistance *float64 `json:"pickup_distance,omitempty"`
	TripTime       *float64 `json:"trip_time,omitempty"`
	TripDistance   *float64 `json:"trip_distance,omitempty"`

	PickupLocation *string `json:"pickup_location,omitempty"`
	TripLocation   *string `json:"trip_location,omitempty"`
	RiderName      *string `json:"rider_name,omitempty"`

	Stops   *string `json:"stops,omitempty"`
	Bonuses *string `json:"bonuses,omitempty"`

	ActionButton *string `json:"action_button,omitempty"`

	// Status is set by the driver after the offer is shown; parsers leave it empty.
	Status string `json:"status,omitempty"`

	// Raw is the normalized text the offer was parsed from.
	Raw string `json:"raw,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// IsDelivery reports whether the offer is a delivery-style offer.
func (o *RideOffer) IsDelivery() bool {
	return o.RideType != nil && strings.EqualFold(*o.RideType, RideTypeDelivery)
}

// Valid reports whether the offer carries the minimum fields downstream consumers need.
func (o *RideOffer) Valid() bool {
	if o == nil {
		return false
	}
	if !positive(o.Fare) || !positive(o.PickupTime) {
		return false
	}
	return o.IsDelivery() || positive(o.TripTime)
}

// TotalMiles is pickup plus trip distance, with missing legs counted as zero.
func (o *RideOffer) TotalMiles() float64 {
	return value(o.PickupDistance) + value(o.TripDistance)
}

// TotalMinutes is pickup plus trip time, with missing legs counted as zero.
func (o *RideOffer) TotalMinutes() float64 {
	return value(o.PickupTime) + value(o.TripTime)
}

// Fingerprint is the deduplication key of the offer.
func (o *RideOffer) Fingerprint() string {
	return fmt.Sprintf("%.2f|%.2f|%.0f", value(o.Fare), o.TotalMiles(), o.TotalMinutes())
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// String returns a pointer to s.
func String(s string) *string { return &s }

// Value dereferences p, returning 0 for nil.
func Value(p *float64) float64 { return value(p) }

// Text dereferences p, returning "" for nil.
func Text(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func positive(p *float64) bool {
	return p != nil && *p > 0
}
