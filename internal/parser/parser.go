// Package parser turns normalized driver-app text into ride offers.
//
// Text is sniffed into a Format, and the matching grammar walks it with a
// Cursor so each field is read from the part of the text after the previous one.
// Any missing required field makes the whole parse return nil.
package parser

import (
	"time"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/offer"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/syncx"
)

type grammar func(text string) *offer.RideOffer

// Parser owns the format table and the delivery fare memo. Safe for concurrent use.
type Parser struct {
	now      func() time.Time
	memo     *syncx.RWGuard[fareMemo]
	grammars map[Format]grammar
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// New creates a parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		now:  time.Now,
		memo: syncx.NewGuard(fareMemo{}),
	}
	p.grammars = map[Format]grammar{
		FormatUberReject:     parseUberReject,
		FormatUberRideFinder: parseUberRideFinder,
		FormatUberCard:       parseUberCard,
		FormatLyftMatch:      parseLyft("Match"),
		FormatLyftRequest:    parseLyft("Request match"),
		FormatDelivery:       p.parseDelivery,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns the offer in raw, or nil when raw holds no valid offer.
func (p *Parser) Parse(raw string) *offer.RideOffer {
	o, _ := p.ParseFormat(raw)
	return o
}

// ParseFormat is Parse that also reports the sniffed format, even on failure.
func (p *Parser) ParseFormat(raw string) (*offer.RideOffer, Format) {
	text := Normalize(raw)
	format := Sniff(text)
	g, ok := p.grammars[format]
	if !ok {
		return nil, format
	}
	o := g(text)
	if !o.Valid() {
		return nil, format
	}

	o.Platform = format.Platform()
	o.Format = string(format)
	o.Raw = text
	o.Bonuses = ExtractBonus(text)
	o.Stops = ExtractStops(text)
	o.RideSubtype = ExtractRideSubtype(text)
	o.Timestamp = p.now()
	return o, format
}

// Reset forgets the delivery fare memo.
func (p *Parser) Reset() {
	p.memo.Set(fareMemo{})
}
