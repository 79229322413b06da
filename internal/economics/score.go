package economics

import (
	"fmt"
	"math"
)

// ScoreSettings tunes the composite score.
type ScoreSettings struct {
	IdealPerMile float64 `json:"ideal_per_mile"`
	IdealPerHour float64 `json:"ideal_per_hour"`
	IdealFare    float64 `json:"ideal_fare"`
	// Points awarded per unit above the ideal.
	PerMileScale float64 `json:"per_mile_scale"`
	PerHourScale float64 `json:"per_hour_scale"`
	// Weights are applied as-is and need not sum to 1.
	PerMileWeight float64 `json:"per_mile_weight"`
	PerHourWeight float64 `json:"per_hour_weight"`
	FareWeight    float64 `json:"fare_weight"`
}

// DefaultScoreSettings returns the default scoring curve.
func DefaultScoreSettings() ScoreSettings {
	return ScoreSettings{
		IdealPerMile:  1.50,
		IdealPerHour:  30,
		IdealFare:     15,
		PerMileScale:  50,
		PerHourScale:  2,
		PerMileWeight: 0.4,
		PerHourWeight: 0.4,
		FareWeight:    0.2,
	}
}

// ScoreBreakdown holds the sub-scores and their weighted sum.
type ScoreBreakdown struct {
	PerMile   float64 `json:"per_mile"`
	PerHour   float64 `json:"per_hour"`
	Fare      float64 `json:"fare"`
	Composite float64 `json:"composite"`
}

// Score rates an offer. Per-mile and per-hour ramp linearly to 100 at their
// ideal and earn an uncapped bonus above it; fare is capped at 100.
func Score(pricePerMile, pricePerHour, fare float64, cfg ScoreSettings) ScoreBreakdown {
	b := ScoreBreakdown{
		PerMile: overshoot(pricePerMile, cfg.IdealPerMile, cfg.PerMileScale),
		PerHour: overshoot(pricePerHour, cfg.IdealPerHour, cfg.PerHourScale),
		Fare:    math.Min(ramp(fare, cfg.IdealFare), 100),
	}
	b.Composite = b.PerMile*cfg.PerMileWeight + b.PerHour*cfg.PerHourWeight + b.Fare*cfg.FareWeight
	return b
}

func ramp(actual, ideal float64) float64 {
	if ideal <= 0 {
		return 0
	}
	return actual / ideal * 100
}

func overshoot(actual, ideal, scale float64) float64 {
	if ideal <= 0 {
		return 0
	}
	if actual < ideal {
		return ramp(actual, ideal)
	}
	return 100 + (actual-ideal)*scale
}

// RGB is an 8-bit color.
type RGB struct {
	R, G, B uint8
}

// Hex formats the color as "#RRGGBB".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

var (
	red    = RGB{R: 255}
	yellow = RGB{R: 255, G: 255}
	green  = RGB{G: 255}
	blue   = RGB{B: 255}
)

// ScoreColor maps a score onto red, yellow, green and blue at 0, 50, 100 and 150.
func ScoreColor(score float64) RGB {
	switch {
	case score <= 0:
		return red
	case score < 50:
		return lerp(red, yellow, score/50)
	case score < 100:
		return lerp(yellow, green, (score-50)/50)
	case score < 150:
		return lerp(green, blue, (score-100)/50)
	default:
		return blue
	}
}

func lerp(a, b RGB, t float64) RGB {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return RGB{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B)}
}
