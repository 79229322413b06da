package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/offer"
)

var (
	// group 2 carries a "/hr" or "/mi" suffix; those are rates, not fares.
	fareRe     = regexp.MustCompile(`\$\s?(\d[\d,]*(?:\.\d{1,2})?)(\s*/\s*(?:hr|h|mi))?`)
	rateInfoRe = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d{1,2})?\s*/\s*(?:hr|h)[^$\d]*`)
	ratingRe   = regexp.MustCompile(`[★*][ \t]*(\d\.\d{1,2})|(?:^|[^\d.$])(\d\.\d{1,2})[ \t]*[★*]`)

	// The minutes/miles shape shared by pickup and trip segments. The logical end
	// of a match is the end of group 3; the extra character after it only guards
	// against reading the "mi" of "min" as a distance.
	timeDistanceRe = regexp.MustCompile(`(\d+)\s*min(?:s|utes?)?.{0,24}?(\d+(?:\.\d+)?)\s*mi(?:les?)?(\)?\s*(away|trip)?)(?:[^a-z]|$)`)

	aggregateTimeRe      = regexp.MustCompile(`(\d+)\s*min(?:s|utes?)?(?:[^a-z]|$)`)
	parenDistanceRe      = regexp.MustCompile(`\(\s*(\d+(?:\.\d+)?)\s*mi(?:les?)?\s*\)`)
	aggregateDistanceRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*mi(?:les?)?(?:[^a-z]|$)`)
	bonusRe              = regexp.MustCompile(`\+\s?\$\s?\d[\d,]*(?:\.\d{1,2})?`)
	stopsRe              = regexp.MustCompile(`(?i)\b(\d+|multiple)\s+stops?\b`)
	trailerRe            = regexp.MustCompile(`(?s)^(.*)([A-Z][a-z]+)\s*[★*]?\s*(\d\.\d{1,2})\s*[★*]?\s*$`)
	whitespaceCollapseRe = regexp.MustCompile(`\s+`)
)

// TimeDistance is one "N min ... M mi" segment.
type TimeDistance struct {
	Minutes float64
	Miles   float64
	// Keyword is "away", "trip" or empty.
	Keyword string
	Start   int
	End     int
}

// Trailer holds the fields that follow the last trip segment.
type Trailer struct {
	Location string
	Name     *string
	Rating   *float64
}

func parseAmount(s string) *float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}

// ExtractFare consumes the next currency amount that is not a rate.
func ExtractFare(c *Cursor) *float64 {
	for {
		m, ok := c.Next(fareRe)
		if !ok {
			return nil
		}
		if m.Group(2) != "" {
			continue
		}
		if v := parseAmount(m.Group(1)); v != nil {
			return v
		}
	}
}

// ExtractLastFare returns the last currency amount in text that is not a rate.
func ExtractLastFare(text string) *float64 {
	var last *float64
	for _, m := range fareRe.FindAllStringSubmatch(text, -1) {
		if m[2] != "" {
			continue
		}
		if v := parseAmount(m[1]); v != nil {
			last = v
		}
	}
	return last
}

// SkipRateInfo consumes an hourly-rate blurb when it appears before the next
// time/distance segment.
func SkipRateInfo(c *Cursor) bool {
	rate, ok := c.Peek(rateInfoRe)
	if !ok {
		return false
	}
	if td, found := c.Peek(timeDistanceRe); found && td.Start() < rate.Start() {
		return false
	}
	c.AdvanceTo(rate.End())
	return true
}

// ExtractRating returns the first star-marked rating in text. Values outside
// [0, 5] are OCR noise and yield nil.
func ExtractRating(text string) *float64 {
	m := ratingRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	return validRating(parseAmount(raw))
}

func validRating(v *float64) *float64 {
	if v == nil || *v < 0 || *v > 5 {
		return nil
	}
	return v
}

// ExtractTimeDistance consumes the next time/distance segment.
func ExtractTimeDistance(c *Cursor) (TimeDistance, bool) {
	m, ok := c.Peek(timeDistanceRe)
	if !ok {
		return TimeDistance{}, false
	}
	minutes, miles := parseAmount(m.Group(1)), parseAmount(m.Group(2))
	c.AdvanceTo(m.GroupEnd(3))
	if minutes == nil || miles == nil {
		return TimeDistance{}, false
	}
	return TimeDistance{
		Minutes: *minutes,
		Miles:   *miles,
		Keyword: m.Group(4),
		Start:   m.Start(),
		End:     m.GroupEnd(3),
	}, true
}

// ExtractTimeDistances returns every time/distance segment in document order.
func ExtractTimeDistances(text string) []TimeDistance {
	var out []TimeDistance
	c := NewCursor(text)
	for !c.Done() {
		before := c.Pos()
		td, ok := ExtractTimeDistance(c)
		if ok {
			out = append(out, td)
		}
		if c.Pos() == before {
			break
		}
	}
	return out
}

// PickupAndTrip assigns segments by trailing keyword first, then by position:
// the first unassigned segment is the pickup and the next one the trip.
func PickupAndTrip(tds []TimeDistance) (pickup, trip *TimeDistance) {
	for i := range tds {
		switch tds[i].Keyword {
		case "away":
			if pickup == nil {
				pickup = &tds[i]
			}
		case "trip":
			if trip == nil {
				trip = &tds[i]
			}
		}
	}
	for i := range tds {
		td := &tds[i]
		if td == pickup || td == trip || td.Keyword != "" {
			continue
		}
		if pickup == nil {
			pickup = td
		} else if trip == nil {
			trip = td
		}
	}
	return pickup, trip
}

// ExtractRideType returns the earliest ride type label for the platform's
// vocabulary, falling back to "Delivery" when a delivery or deliveries word is present.
func ExtractRideType(text string, p offer.Platform) *string {
	var labels []string
	switch p {
	case offer.PlatformUber:
		labels = uberRideTypes
	case offer.PlatformLyft:
		labels = lyftRideTypes
	default:
		labels = append(append([]string{}, uberRideTypes...), lyftRideTypes...)
	}
	if label, _, ok := findLabel(text, labels); ok {
		return offer.String(label)
	}
	if deliverRe.MatchString(text) {
		return offer.String(offer.RideTypeDelivery)
	}
	return nil
}

// ExtractRideSubtype returns the first known offer qualifier such as "Priority Pickup".
func ExtractRideSubtype(text string) *string {
	if label, _, ok := findLabel(text, rideSubtypes); ok {
		return offer.String(label)
	}
	return nil
}

// ExtractLocation consumes the text up to end as a location, or returns
// offer.NotAvailable when nothing lies between the anchors.
func ExtractLocation(c *Cursor, end int) string {
	if end < c.Pos() {
		return offer.NotAvailable
	}
	return location(c.Until(end))
}

func location(s string) string {
	s = strings.TrimSpace(whitespaceCollapseRe.ReplaceAllString(s, " "))
	s = strings.Trim(s, "•·-– ")
	if s == "" {
		return offer.NotAvailable
	}
	return s
}

// ExtractAggregateTime returns the first minutes figure in text.
func ExtractAggregateTime(text string) *float64 {
	m := aggregateTimeRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return parseAmount(m[1])
}

// ExtractAggregateDistance prefers a parenthesised "(N mi)" and falls back to a bare "N mi".
func ExtractAggregateDistance(text string) *float64 {
	if m := parenDistanceRe.FindStringSubmatch(text); m != nil {
		return parseAmount(m[1])
	}
	if m := aggregateDistanceRe.FindStringSubmatch(text); m != nil {
		return parseAmount(m[1])
	}
	return nil
}

// ExtractBonus returns a "+$N.NN" promotion, spaces removed.
func ExtractBonus(text string) *string {
	m := bonusRe.FindString(text)
	if m == "" {
		return nil
	}
	return offer.String(strings.ReplaceAll(m, " ", ""))
}

// ExtractStops returns a stop count such as "2 stops".
func ExtractStops(text string) *string {
	m := stopsRe.FindString(text)
	if m == "" {
		return nil
	}
	return offer.String(m)
}

// ExtractActionButton returns the last action label in text and its offset.
func ExtractActionButton(text string) (string, int, bool) {
	return lastLabel(text, actionButtons)
}

// ExtractTrailer splits "<location><Name><rating>". The name is the final
// capitalized word before the rating; anything earlier is the location.
func ExtractTrailer(text string) Trailer {
	m := trailerRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Trailer{Location: location(text)}
	}
	return Trailer{
		Location: location(m[1]),
		Name:     offer.String(m[2]),
		Rating:   validRating(parseAmount(m[3])),
	}
}
