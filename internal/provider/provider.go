package provider

import (
	"context"

	"github.com/shopspring/decimal"
)

// Offer is one candidate round-trip quote for the configured itinerary.
// Segment timestamps are kept as raw ISO strings; the selector decides how to
// treat values it cannot parse.
type Offer struct {
	Price             decimal.Decimal
	Currency          string
	OutboundDeparture string
	OutboundArrival   string
	InboundDeparture  string
	InboundArrival    string
}

// OutboundDate returns the calendar date of the outbound departure, or ""
// when the timestamp is absent.
func (o Offer) OutboundDate() string {
	return datePart(o.OutboundDeparture)
}

// ReturnDate returns the calendar date of the inbound departure, or "" for
// one-way results.
func (o Offer) ReturnDate() string {
	return datePart(o.InboundDeparture)
}

func datePart(iso string) string {
	if len(iso) < 10 {
		return ""
	}
	return iso[:10]
}

// QuoteFetcher retrieves the current quote batch for the fixed itinerary.
type QuoteFetcher interface {
	FetchOffers(ctx context.Context) ([]Offer, error)
}
