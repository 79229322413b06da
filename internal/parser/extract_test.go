package parser

import (
	"testing"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/offer"
)

func floatEq(got *float64, want float64) bool {
	return got != nil && *got == want
}

func TestExtractFareSkipsRates(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"$20.15Pay includes pickup", offer.Float(20.15)},
		{"$21.98/hr est. rate then $9.50", offer.Float(9.5)},
		{"$1.20/mi", nil},
		{"$ 1,234.5 total", offer.Float(1234.5)},
		{"no money here", nil},
	}
	for _, tt := range tests {
		got := ExtractFare(NewCursor(tt.in))
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("ExtractFare(%q) = %v, want nil", tt.in, *got)
		case tt.want != nil && !floatEq(got, *tt.want):
			t.Errorf("ExtractFare(%q) = %v, want %v", tt.in, got, *tt.want)
		}
	}
}

func TestExtractLastFare(t *testing.T) {
	if got := ExtractLastFare("Delivery $3.00 tip $5.07 est. $18.00/hr"); !floatEq(got, 5.07) {
		t.Errorf("ExtractLastFare = %v, want 5.07", got)
	}
	if got := ExtractLastFare("nothing"); got != nil {
		t.Errorf("ExtractLastFare = %v, want nil", *got)
	}
}

func TestExtractRating(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"★4.92", offer.Float(4.92)},
		{"* 4.8 (Verified)", offer.Float(4.8)},
		{"4.95 ★", offer.Float(4.95)},
		{"★7.50", nil},
		{"4.95 rating", nil},
	}
	for _, tt := range tests {
		got := ExtractRating(tt.in)
		if tt.want == nil {
			if got != nil {
				t.Errorf("ExtractRating(%q) = %v, want nil", tt.in, *got)
			}
			continue
		}
		if !floatEq(got, *tt.want) {
			t.Errorf("ExtractRating(%q) = %v, want %v", tt.in, got, *tt.want)
		}
	}
}

func TestExtractTimeDistances(t *testing.T) {
	text := "11 min • 5.5 miUmber & Unger44 min - 22 miChar"
	tds := ExtractTimeDistances(text)
	if len(tds) != 2 {
		t.Fatalf("got %d segments, want 2: %+v", len(tds), tds)
	}
	if tds[0].Minutes != 11 || tds[0].Miles != 5.5 {
		t.Errorf("first = %+v", tds[0])
	}
	if text[tds[0].End:tds[0].End+1] != "U" {
		t.Errorf("first segment should end before %q, got %q", "Umber", text[tds[0].End:])
	}
	if tds[1].Minutes != 44 || tds[1].Miles != 22 {
		t.Errorf("second = %+v", tds[1])
	}
}

func TestExtractTimeDistanceKeywords(t *testing.T) {
	tds := ExtractTimeDistances("8 mins (2.1 mi) away\n123 Main St\n25 minutes (14.3 miles) trip\n")
	if len(tds) != 2 {
		t.Fatalf("got %d segments, want 2", len(tds))
	}
	if tds[0].Keyword != "away" || tds[1].Keyword != "trip" {
		t.Errorf("keywords = %q, %q", tds[0].Keyword, tds[1].Keyword)
	}
	if tds[1].Miles != 14.3 {
		t.Errorf("trip miles = %v", tds[1].Miles)
	}
}

func TestExtractTimeDistanceIgnoresMinutesAlone(t *testing.T) {
	if tds := ExtractTimeDistances("12 min away"); len(tds) != 0 {
		t.Errorf("minutes alone should not read as distance: %+v", tds)
	}
}

func TestPickupAndTrip(t *testing.T) {
	t.Run("keywords win over order", func(t *testing.T) {
		tds := []TimeDistance{{Minutes: 30, Keyword: "trip"}, {Minutes: 5, Keyword: "away"}}
		pickup, trip := PickupAndTrip(tds)
		if pickup.Minutes != 5 || trip.Minutes != 30 {
			t.Errorf("pickup=%v trip=%v", pickup.Minutes, trip.Minutes)
		}
	})
	t.Run("ordinal fallback", func(t *testing.T) {
		tds := []TimeDistance{{Minutes: 5}, {Minutes: 30}, {Minutes: 99}}
		pickup, trip := PickupAndTrip(tds)
		if pickup.Minutes != 5 || trip.Minutes != 30 {
			t.Errorf("pickup=%v trip=%v", pickup.Minutes, trip.Minutes)
		}
	})
	t.Run("mixed", func(t *testing.T) {
		tds := []TimeDistance{{Minutes: 5}, {Minutes: 30, Keyword: "trip"}}
		pickup, trip := PickupAndTrip(tds)
		if pickup.Minutes != 5 || trip.Minutes != 30 {
			t.Errorf("pickup=%v trip=%v", pickup.Minutes, trip.Minutes)
		}
	})
	t.Run("single segment", func(t *testing.T) {
		pickup, trip := PickupAndTrip([]TimeDistance{{Minutes: 5}})
		if pickup == nil || trip != nil {
			t.Errorf("pickup=%v trip=%v", pickup, trip)
		}
	})
}

func TestExtractRideType(t *testing.T) {
	tests := []struct {
		text     string
		platform offer.Platform
		want     string
	}{
		{"UberXL$30.00", offer.PlatformUber, "UberXL"},
		{"UberX Share$9.00", offer.PlatformUber, "UberX Share"},
		{"Comfort$12", offer.PlatformUber, "Comfort"},
		{"Luxury Ave Lyft XL", offer.PlatformLyft, "Lyft XL"},
		{"Lux Black$40", offer.PlatformLyft, "Lux Black"},
		{"2 deliveries $5.00", offer.PlatformUber, "Delivery"},
		{"Blackstone Dr", offer.PlatformUber, ""},
		{"Deliverance St, Ft. Myers", offer.PlatformUber, ""},
		{"Food delivered soon", offer.PlatformUber, ""},
		{"Exclusive UberX", offer.PlatformUber, "Exclusive"},
	}
	for _, tt := range tests {
		got := ExtractRideType(tt.text, tt.platform)
		if offer.Text(got) != tt.want {
			t.Errorf("ExtractRideType(%q) = %q, want %q", tt.text, offer.Text(got), tt.want)
		}
	}
}

func TestExtractTrailer(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		location string
		rider    string
		rating   *float64
	}{
		{"camel joined", "Char Ann & Juanita, Ft. MyersDulce5.0", "Char Ann & Juanita, Ft. Myers", "Dulce", offer.Float(5.0)},
		{"spaced with star", "Sanibel Causeway, Sanibel Alex ★4.90", "Sanibel Causeway, Sanibel", "Alex", offer.Float(4.9)},
		{"out of range rating", "Main St Bob7.5", "Main St", "Bob", nil},
		{"no rating", "Gulf Coast Town Center", "Gulf Coast Town Center", "", nil},
		{"empty", "", offer.NotAvailable, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := ExtractTrailer(tt.in)
			if tr.Location != tt.location {
				t.Errorf("Location = %q, want %q", tr.Location, tt.location)
			}
			if offer.Text(tr.Name) != tt.rider {
				t.Errorf("Name = %q, want %q", offer.Text(tr.Name), tt.rider)
			}
			if (tt.rating == nil) != (tr.Rating == nil) || (tt.rating != nil && *tt.rating != *tr.Rating) {
				t.Errorf("Rating = %v, want %v", tr.Rating, tt.rating)
			}
		})
	}
}

func TestExtractActionButtonTakesLast(t *testing.T) {
	action, at, ok := ExtractActionButton("Match preferences ... Request match")
	if !ok || action != "Request match" || at != 22 {
		t.Errorf("got %q at %d, ok=%v", action, at, ok)
	}
	if _, _, ok := ExtractActionButton("nothing to press"); ok {
		t.Error("expected no action button")
	}
}

func TestExtractActionButtonWordBoundary(t *testing.T) {
	tests := []struct {
		text   string
		action string
		at     int
		ok     bool
	}{
		{"Acceptance Way Dulce 5.0", "", -1, false},
		{"Matchett Rd Bob 4.9", "", -1, false},
		{"Acceptance Way Dulce 5.0Accept", "Accept", 24, true},
		{"Fort MyersAccept", "Accept", 10, true},
	}
	for _, tt := range tests {
		action, at, ok := ExtractActionButton(tt.text)
		if action != tt.action || at != tt.at || ok != tt.ok {
			t.Errorf("ExtractActionButton(%q) = %q, %d, %v; want %q, %d, %v",
				tt.text, action, at, ok, tt.action, tt.at, tt.ok)
		}
	}
}

func TestEnrichments(t *testing.T) {
	text := "Lyft$14.00+$2.50 bonus 2 stops Priority Pickup"
	if got := offer.Text(ExtractBonus(text)); got != "+$2.50" {
		t.Errorf("ExtractBonus = %q", got)
	}
	if got := offer.Text(ExtractStops(text)); got != "2 stops" {
		t.Errorf("ExtractStops = %q", got)
	}
	if got := offer.Text(ExtractRideSubtype(text)); got != "Priority Pickup" {
		t.Errorf("ExtractRideSubtype = %q", got)
	}
}

func TestExtractAggregates(t *testing.T) {
	text := "Delivery 39 min (12.1 mi) total"
	if got := ExtractAggregateTime(text); !floatEq(got, 39) {
		t.Errorf("ExtractAggregateTime = %v", got)
	}
	if got := ExtractAggregateDistance(text); !floatEq(got, 12.1) {
		t.Errorf("ExtractAggregateDistance = %v", got)
	}
	if got := ExtractAggregateDistance("Delivery 39 min 4 mi"); !floatEq(got, 4) {
		t.Errorf("bare distance fallback = %v", got)
	}
}
