// Package overlay turns an assessed offer into what the floating overlay draws.
package overlay

import (
	"fmt"
	"math"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/economics"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/offer"
)

// Palette
const (
	ColorReject  = "#F44336"
	ColorCaution = "#FFC107"
	ColorAccept  = "#4CAF50"
	ColorUnknown = "#9E9E9E"
	ColorNeutral = "#FFFFFF"
)

// Line labels
const (
	LabelRideType = "Ride type"
	LabelFare     = "Fare"
	LabelPerMile  = "$/mi"
	LabelPerHour  = "$/hr"
	LabelMiles    = "Miles"
	LabelMinutes  = "Minutes"
	LabelProfit   = "Profit"
	LabelRating   = "Rating"
	LabelScore    = "Score"
)

type Line struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Color string `json:"color"`
}

// Instruction is a complete overlay state. A hidden instruction carries no lines.
type Instruction struct {
	Visible  bool            `json:"visible"`
	OfferID  string          `json:"offer_id,omitempty"`
	Platform offer.Platform  `json:"platform,omitempty"`
	Overall  economics.Level `json:"overall"`
	Color    string          `json:"color,omitempty"`
	Lines    []Line          `json:"lines,omitempty"`
}

// Hidden tells the overlay to get out of the way.
func Hidden() Instruction {
	return Instruction{}
}

// LevelColor maps a recommendation level to its palette entry.
func LevelColor(l economics.Level) string {
	switch l {
	case economics.LevelReject:
		return ColorReject
	case economics.LevelCaution:
		return ColorCaution
	case economics.LevelAccept:
		return ColorAccept
	default:
		return ColorUnknown
	}
}

// Render lays out one line per metric. score is optional.
func Render(o *offer.RideOffer, a economics.Assessment, score *economics.ScoreBreakdown) Instruction {
	if o == nil {
		return Hidden()
	}

	rideType := offer.Text(o.RideType)
	if rideType == "" {
		rideType = offer.NotAvailable
	}
	rating := offer.NotAvailable
	if o.Rating != nil {
		rating = fmt.Sprintf("%.2f★", *o.Rating)
	}

	lines := []Line{
		{Label: LabelRideType, Value: rideType, Color: ColorNeutral},
		{Label: LabelFare, Value: Money(a.AdjustedFare), Color: LevelColor(a.FareLevel)},
		{Label: LabelPerMile, Value: Money(a.PricePerMile) + "/mi", Color: LevelColor(a.PerMileLevel)},
		{Label: LabelPerHour, Value: Money(a.PricePerHour) + "/hr", Color: LevelColor(a.PerHourLevel)},
		{Label: LabelMiles, Value: fmt.Sprintf("%.1f", a.TotalMiles), Color: ColorNeutral},
		{Label: LabelMinutes, Value: fmt.Sprintf("%.0f", a.TotalMinutes), Color: ColorNeutral},
		{Label: LabelProfit, Value: Money(a.Profit), Color: LevelColor(a.ProfitLevel)},
		{Label: LabelRating, Value: rating, Color: LevelColor(a.RatingLevel)},
	}
	if score != nil {
		lines = append(lines, Line{
			Label: LabelScore,
			Value: fmt.Sprintf("%.0f", score.Composite),
			Color: economics.ScoreColor(score.Composite).Hex(),
		})
	}

	return Instruction{
		Visible:  true,
		OfferID:  o.Fingerprint(),
		Platform: o.Platform,
		Overall:  a.Overall,
		Color:    LevelColor(a.Overall),
		Lines:    lines,
	}
}

// Money formats dollars with a leading sign for losses, e.g. "-$1.20".
func Money(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", math.Abs(v))
	}
	return fmt.Sprintf("$%.2f", v)
}

// Line returns the line with the given label.
func (in Instruction) Line(label string) (Line, bool) {
	for _, l := range in.Lines {
		if l.Label == label {
			return l, true
		}
	}
	return Line{}, false
}
