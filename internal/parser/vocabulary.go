package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ride type labels, longest first so that "UberXL" wins over "UberX".
var (
	uberRideTypes = []string{
		"UberX Share", "UberXL", "UberX", "Uber Green", "Uber Pet", "Uber Connect",
		"Comfort Electric", "Comfort", "Black SUV", "Black", "Exclusive", "Share", "Connect",
		"Delivery",
	}
	lyftRideTypes = []string{
		"Lux Black XL", "Lux Black", "Lux XL", "Lux", "Lyft XL", "Extra Comfort", "Shared", "Lyft",
	}
	rideSubtypes = []string{
		"Priority Pickup", "Wait & Save", "Reserved", "Exclusive", "Long trip",
	}
	actionButtons = []string{"Request match", "Accept", "Match"}
)

var deliverRe = regexp.MustCompile(`(?i)\bdeliver(y|ies)\b`)

// findLabel returns the earliest occurrence of any label in text. A label only
// matches when the rune after it is not lowercase, so "Lux" never matches "Luxury".
// Ties at the same offset go to the label listed first.
func findLabel(text string, labels []string) (string, int, bool) {
	best, bestAt := "", -1
	for _, label := range labels {
		for from := 0; from < len(text); {
			i := strings.Index(text[from:], label)
			if i < 0 {
				break
			}
			at := from + i
			if labelBoundary(text, at+len(label)) {
				if bestAt < 0 || at < bestAt {
					best, bestAt = label, at
				}
				break
			}
			from = at + 1
		}
	}
	return best, bestAt, bestAt >= 0
}

func labelBoundary(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !unicode.IsLower(r)
}

// lastLabel returns the last occurrence of any label in text, with the same
// trailing boundary as findLabel so "Acceptance Way" is not an "Accept".
func lastLabel(text string, labels []string) (string, int, bool) {
	best, bestAt := "", -1
	for _, label := range labels {
		at := lastBounded(text, label)
		if at > bestAt || (at == bestAt && at >= 0 && len(label) > len(best)) {
			best, bestAt = label, at
		}
	}
	return best, bestAt, bestAt >= 0
}

func lastBounded(text, label string) int {
	for end := len(text); end > 0; {
		at := strings.LastIndex(text[:end], label)
		if at < 0 {
			return -1
		}
		if labelBoundary(text, at+len(label)) {
			return at
		}
		end = at + len(label) - 1
	}
	return -1
}
