// Package settings supplies the driver's thresholds and score tuning to the pipeline.
package settings

import (
	"context"
	"errors"
	"math"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/economics"
	apperrors "github.com/GriffinCanCode/ride-copilot/platform/internal/errors"
)

// Settings is everything the driver can tune.
type Settings struct {
	Thresholds economics.ThresholdConfig `json:"thresholds"`
	Score      economics.ScoreSettings   `json:"score"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Thresholds: economics.DefaultThresholds(),
		Score:      economics.DefaultScoreSettings(),
	}
}

// Provider yields the settings in effect now.
type Provider interface {
	Current(ctx context.Context) (Settings, error)
}

// Saver persists new settings.
type Saver interface {
	Save(ctx context.Context, s Settings) error
}

// Static always returns the same settings.
type Static struct {
	Settings Settings
}

func (s Static) Current(context.Context) (Settings, error) {
	return s.Settings, nil
}

// Validate checks the cross-field constraints a driver could break from the API.
func (s Settings) Validate() error {
	var errs []error
	for name, v := range fields(&s) {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			errs = append(errs, apperrors.Newf(apperrors.CodeInvalidArgument, "%s must be finite", name))
		}
	}
	th, sc := s.Thresholds, s.Score
	if th.DeclinePerMile > th.AcceptPerMile {
		errs = append(errs, apperrors.New(apperrors.CodeInvalidArgument, "decline_per_mile must not exceed accept_per_mile"))
	}
	if th.DeclinePerHour > th.AcceptPerHour {
		errs = append(errs, apperrors.New(apperrors.CodeInvalidArgument, "decline_per_hour must not exceed accept_per_hour"))
	}
	if th.FareLow > th.FareHigh {
		errs = append(errs, apperrors.New(apperrors.CodeInvalidArgument, "fare_low must not exceed fare_high"))
	}
	if sc.PerMileWeight < 0 || sc.PerHourWeight < 0 || sc.FareWeight < 0 {
		errs = append(errs, apperrors.New(apperrors.CodeInvalidArgument, "score weights must not be negative"))
	}
	return errors.Join(errs...)
}

// fields names every tunable by its stored key.
func fields(s *Settings) map[string]*float64 {
	th, sc := &s.Thresholds, &s.Score
	return map[string]*float64{
		"accept_per_mile":  &th.AcceptPerMile,
		"decline_per_mile": &th.DeclinePerMile,
		"accept_per_hour":  &th.AcceptPerHour,
		"decline_per_hour": &th.DeclinePerHour,
		"fare_low":         &th.FareLow,
		"fare_high":        &th.FareHigh,
		"rating_threshold": &th.RatingThreshold,
		"bonus":            &th.Bonus,
		"cost_per_mile":    &th.CostPerMile,

		"ideal_per_mile":  &sc.IdealPerMile,
		"ideal_per_hour":  &sc.IdealPerHour,
		"ideal_fare":      &sc.IdealFare,
		"per_mile_scale":  &sc.PerMileScale,
		"per_hour_scale":  &sc.PerHourScale,
		"per_mile_weight": &sc.PerMileWeight,
		"per_hour_weight": &sc.PerHourWeight,
		"fare_weight":     &sc.FareWeight,
	}
}
