package parser

import (
	"strings"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/offer"
)

// parseLegs reads pickup segment, pickup location and trip segment in order.
func parseLegs(c *Cursor, o *offer.RideOffer) bool {
	pickup, ok := ExtractTimeDistance(c)
	if !ok || pickup.Keyword == "trip" {
		return false
	}
	next, ok := c.Peek(timeDistanceRe)
	if !ok {
		return false
	}
	o.PickupLocation = offer.String(ExtractLocation(c, next.Start()))

	trip, ok := ExtractTimeDistance(c)
	if !ok || trip.Keyword == "away" {
		return false
	}
	o.PickupTime, o.PickupDistance = offer.Float(pickup.Minutes), offer.Float(pickup.Miles)
	o.TripTime, o.TripDistance = offer.Float(trip.Minutes), offer.Float(trip.Miles)
	return true
}

// applyTrailer consumes the rest of the text up to the action button as
// "<trip location><rider name><rating>".
func applyTrailer(c *Cursor, o *offer.RideOffer) bool {
	action, at, ok := ExtractActionButton(c.Rest())
	if !ok {
		return false
	}
	tr := ExtractTrailer(c.Until(c.Pos() + at))
	o.TripLocation = offer.String(tr.Location)
	o.RiderName = tr.Name
	o.Rating = tr.Rating
	o.ActionButton = offer.String(action)
	return true
}

// "Reject ride$20.15 ... 11 min • 5.5 mi<pickup>44 min • 22 mi<dropoff><name><rating>Accept"
func parseUberReject(text string) *offer.RideOffer {
	c := NewCursor(text)
	if !c.SkipPast("Reject ride") {
		return nil
	}
	o := &offer.RideOffer{RideType: ExtractRideType(c.Rest(), offer.PlatformUber)}
	if o.Fare = ExtractFare(c); o.Fare == nil {
		return nil
	}
	SkipRateInfo(c)
	if !parseLegs(c, o) || !applyTrailer(c, o) {
		return nil
	}
	return o
}

// "DismissRide FinderUberX$12.50★4.92 8 min (2.1 mi) away<pickup>25 min (14.3 mi) trip<dropoff>Accept"
func parseUberRideFinder(text string) *offer.RideOffer {
	c := NewCursor(text)
	if !c.SkipPast("Ride Finder") {
		return nil
	}
	o := &offer.RideOffer{}
	if label, _, ok := findLabel(c.Rest(), uberRideTypes); ok {
		o.RideType = offer.String(label)
	}
	if o.Fare = ExtractFare(c); o.Fare == nil {
		return nil
	}

	head := c.Rest()
	if td, ok := c.Peek(timeDistanceRe); ok {
		head = head[:td.Start()-c.Pos()]
	}
	o.Rating = ExtractRating(head)

	SkipRateInfo(c)
	if !parseLegs(c, o) {
		return nil
	}
	action, at, ok := ExtractActionButton(c.Rest())
	if !ok {
		return nil
	}
	o.TripLocation = offer.String(ExtractLocation(c, c.Pos()+at))
	o.ActionButton = offer.String(action)
	return o
}

// parseUberCard reads a line-oriented OCR capture of the offer card. The fare
// is searched on the ride type line, then the line below, then upwards.
func parseUberCard(text string) *offer.RideOffer {
	lines := strings.Split(text, "\n")
	typeLine, rideType := -1, ""
	for i, line := range lines {
		if label, _, ok := findLabel(line, uberRideTypes); ok {
			typeLine, rideType = i, label
			break
		}
	}
	if typeLine < 0 {
		return nil
	}
	fare, fareLine := cardFare(lines, typeLine)
	if fare == nil {
		return nil
	}

	body := text[lineOffset(lines, min(typeLine, fareLine)):]
	pickup, trip := PickupAndTrip(ExtractTimeDistances(body))
	if pickup == nil || trip == nil {
		return nil
	}
	action, at, ok := ExtractActionButton(body)
	if !ok || at < max(pickup.End, trip.End) {
		return nil
	}

	o := &offer.RideOffer{
		RideType:       offer.String(rideType),
		Fare:           fare,
		Rating:         ExtractRating(body[:min(pickup.Start, trip.Start)]),
		PickupTime:     offer.Float(pickup.Minutes),
		PickupDistance: offer.Float(pickup.Miles),
		TripTime:       offer.Float(trip.Minutes),
		TripDistance:   offer.Float(trip.Miles),
		ActionButton:   offer.String(action),
	}

	c := NewCursor(body)
	first, second := pickup, trip
	if trip.Start < pickup.Start {
		first, second = trip, pickup
	}
	c.AdvanceTo(first.End)
	firstLoc := ExtractLocation(c, second.Start)
	c.AdvanceTo(second.End)
	secondLoc := ExtractLocation(c, at)
	if first == pickup {
		o.PickupLocation, o.TripLocation = offer.String(firstLoc), offer.String(secondLoc)
	} else {
		o.PickupLocation, o.TripLocation = offer.String(secondLoc), offer.String(firstLoc)
	}
	return o
}

func cardFare(lines []string, at int) (*float64, int) {
	if v := ExtractFare(NewCursor(lines[at])); v != nil {
		return v, at
	}
	if at+1 < len(lines) {
		if v := ExtractFare(NewCursor(lines[at+1])); v != nil {
			return v, at + 1
		}
	}
	for i := at - 1; i >= 0; i-- {
		if v := ExtractFare(NewCursor(lines[i])); v != nil {
			return v, i
		}
	}
	return nil, -1
}

func lineOffset(lines []string, n int) int {
	off := 0
	for _, line := range lines[:n] {
		off += len(line) + 1
	}
	return off
}
