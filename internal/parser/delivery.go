package parser

import (
	"math"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/offer"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/syncx"
)

// fareJitter is the largest raw fare change treated as OCR noise.
const fareJitter = 0.01 + 1e-9

type fareMemo struct {
	raw      float64
	adjusted float64
	set      bool
}

// adjustFare rounds raw to cents unless it is within jitter of the last raw
// fare, in which case the previous adjusted value is reused.
func (p *Parser) adjustFare(raw float64) float64 {
	return syncx.Apply(p.memo, func(m *fareMemo) float64 {
		if m.set && math.Abs(raw-m.raw) <= fareJitter {
			return m.adjusted
		}
		*m = fareMemo{raw: raw, adjusted: math.Round(raw*100) / 100, set: true}
		return m.adjusted
	})
}

// Delivery cards show tips and other amounts before the estimated pay, so the
// last currency amount is the fare. Time and distance are trip totals and are
// stored on the pickup leg.
func (p *Parser) parseDelivery(text string) *offer.RideOffer {
	fare := ExtractLastFare(text)
	if fare == nil || *fare <= 0 {
		return nil
	}
	minutes := ExtractAggregateTime(text)
	if minutes == nil || *minutes <= 0 {
		return nil
	}
	o := &offer.RideOffer{
		RideType:       offer.String(offer.RideTypeDelivery),
		Fare:           offer.Float(p.adjustFare(*fare)),
		PickupTime:     minutes,
		PickupDistance: ExtractAggregateDistance(text),
	}
	if action, _, ok := ExtractActionButton(text); ok {
		o.ActionButton = offer.String(action)
	}
	return o
}
