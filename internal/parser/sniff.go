package parser

import (
	"strings"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/offer"
)

// Format tags a concrete offer layout.
type Format string

const (
	FormatUnknown        Format = ""
	FormatUberReject     Format = "uber_reject"
	FormatUberRideFinder Format = "uber_ride_finder"
	FormatUberCard       Format = "uber_card"
	FormatLyftMatch      Format = "lyft_match"
	FormatLyftRequest    Format = "lyft_request"
	FormatDelivery       Format = "delivery"
)

// Platform returns the driver app the format belongs to.
func (f Format) Platform() offer.Platform {
	switch f {
	case FormatUberReject, FormatUberRideFinder, FormatUberCard, FormatDelivery:
		return offer.PlatformUber
	case FormatLyftMatch, FormatLyftRequest:
		return offer.PlatformLyft
	default:
		return offer.PlatformUnknown
	}
}

// Sniff maps normalized text to the layout it was rendered from.
func Sniff(text string) Format {
	if rt := ExtractRideType(text, offer.PlatformUnknown); rt != nil && *rt == offer.RideTypeDelivery {
		return FormatDelivery
	}
	if strings.Contains(text, "Reject ride") {
		return FormatUberReject
	}
	if strings.Contains(text, "Dismiss") && strings.Contains(text, "Ride Finder") {
		return FormatUberRideFinder
	}
	if _, _, ok := findLabel(text, lyftRideTypes); ok {
		switch action, _, _ := ExtractActionButton(text); action {
		case "Match":
			return FormatLyftMatch
		case "Request match":
			return FormatLyftRequest
		}
	}
	if strings.Contains(text, "\n") {
		if _, _, ok := findLabel(text, uberRideTypes); ok {
			return FormatUberCard
		}
	}
	return FormatUnknown
}
