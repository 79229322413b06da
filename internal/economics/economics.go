// Package economics assesses ride offers against driver-configured thresholds.
package economics

import "github.com/GriffinCanCode/ride-copilot/platform/internal/offer"

// Level is a recommendation bucket, ordered from worst to best after Unknown.
type Level int

const (
	LevelUnknown Level = iota
	LevelReject
	LevelCaution
	LevelAccept
)

func (l Level) String() string {
	switch l {
	case LevelReject:
		return "reject"
	case LevelCaution:
		return "caution"
	case LevelAccept:
		return "accept"
	default:
		return "unknown"
	}
}

// MarshalText encodes the level by name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name; unrecognized names become LevelUnknown.
func (l *Level) UnmarshalText(b []byte) error {
	*l = ParseLevel(string(b))
	return nil
}

// ParseLevel is the inverse of Level.String.
func ParseLevel(s string) Level {
	switch s {
	case "reject":
		return LevelReject
	case "caution":
		return LevelCaution
	case "accept":
		return LevelAccept
	default:
		return LevelUnknown
	}
}

// Worse returns the lower of two known levels. Unknown yields to the other side.
func Worse(a, b Level) Level {
	switch {
	case a == LevelUnknown:
		return b
	case b == LevelUnknown:
		return a
	case a < b:
		return a
	default:
		return b
	}
}

// ThresholdConfig holds the driver's economics parameters. It is read-only here.
type ThresholdConfig struct {
	AcceptPerMile   float64 `json:"accept_per_mile"`
	DeclinePerMile  float64 `json:"decline_per_mile"`
	AcceptPerHour   float64 `json:"accept_per_hour"`
	DeclinePerHour  float64 `json:"decline_per_hour"`
	FareLow         float64 `json:"fare_low"`
	FareHigh        float64 `json:"fare_high"`
	RatingThreshold float64 `json:"rating_threshold"`
	Bonus           float64 `json:"bonus"`
	CostPerMile     float64 `json:"cost_per_mile"`
}

// DefaultThresholds returns the out-of-the-box thresholds.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		AcceptPerMile:   1.00,
		DeclinePerMile:  0.75,
		AcceptPerHour:   25,
		DeclinePerHour:  18,
		FareLow:         5,
		FareHigh:        10,
		RatingThreshold: 4.7,
		Bonus:           0,
		CostPerMile:     0.20,
	}
}

// Assessment is the result of Evaluate.
type Assessment struct {
	TotalMiles   float64 `json:"total_miles"`
	TotalMinutes float64 `json:"total_minutes"`
	AdjustedFare float64 `json:"adjusted_fare"`
	PricePerMile float64 `json:"price_per_mile"`
	PricePerHour float64 `json:"price_per_hour"`
	DrivingCost  float64 `json:"driving_cost"`
	Profit       float64 `json:"profit"`

	FareLevel    Level `json:"fare_level"`
	PerMileLevel Level `json:"per_mile_level"`
	PerHourLevel Level `json:"per_hour_level"`
	RatingLevel  Level `json:"rating_level"`
	ProfitLevel  Level `json:"profit_level"`
	// Overall is the worse of the per-mile and per-hour levels.
	Overall Level `json:"overall"`
}

// Evaluate computes the economics of o. Unknown distance or time is assessed
// as $0/mi or $0/hr instead of dividing by zero.
func Evaluate(o offer.RideOffer, cfg ThresholdConfig) Assessment {
	a := Assessment{
		TotalMiles:   o.TotalMiles(),
		TotalMinutes: o.TotalMinutes(),
		AdjustedFare: offer.Value(o.Fare) + cfg.Bonus,
	}
	if a.TotalMiles > 0 {
		a.PricePerMile = a.AdjustedFare / a.TotalMiles
	}
	if a.TotalMinutes > 0 {
		a.PricePerHour = a.AdjustedFare / (a.TotalMinutes / 60)
	}
	a.DrivingCost = cfg.CostPerMile * a.TotalMiles
	a.Profit = a.AdjustedFare - a.DrivingCost

	a.FareLevel = Classify(a.AdjustedFare, cfg.FareLow, cfg.FareHigh)
	a.PerMileLevel = Classify(a.PricePerMile, cfg.DeclinePerMile, cfg.AcceptPerMile)
	a.PerHourLevel = Classify(a.PricePerHour, cfg.DeclinePerHour, cfg.AcceptPerHour)
	a.RatingLevel = ClassifyRating(o.Rating, cfg.RatingThreshold)
	a.ProfitLevel = ClassifyProfit(a.Profit)
	a.Overall = Worse(a.PerMileLevel, a.PerHourLevel)
	return a
}

// Classify buckets value: below decline rejects, at or above accept accepts.
func Classify(value, decline, accept float64) Level {
	switch {
	case value < decline:
		return LevelReject
	case value < accept:
		return LevelCaution
	default:
		return LevelAccept
	}
}

// ClassifyRating is a two-bucket test; a missing rating is unknown.
func ClassifyRating(rating *float64, threshold float64) Level {
	if rating == nil {
		return LevelUnknown
	}
	if *rating < threshold {
		return LevelReject
	}
	return LevelAccept
}

// ClassifyProfit rejects a negative profit.
func ClassifyProfit(profit float64) Level {
	if profit < 0 {
		return LevelReject
	}
	return LevelAccept
}
