package parser

import "github.com/GriffinCanCode/ride-copilot/platform/internal/offer"

// parseLyft reads "<ride type>$fare ... <pickup segment><pickup><trip segment><dropoff><name><rating><action>".
// The two Lyft layouts differ only in the action label.
func parseLyft(action string) grammar {
	return func(text string) *offer.RideOffer {
		label, at, ok := findLabel(text, lyftRideTypes)
		if !ok {
			return nil
		}
		c := NewCursor(text)
		c.AdvanceTo(at + len(label))

		o := &offer.RideOffer{RideType: offer.String(label)}
		if o.Fare = ExtractFare(c); o.Fare == nil {
			return nil
		}
		SkipRateInfo(c)
		if !parseLegs(c, o) || !applyTrailer(c, o) {
			return nil
		}
		if *o.ActionButton != action {
			return nil
		}
		if o.Rating == nil {
			o.Rating = ExtractRating(text)
		}
		return o
	}
}
