package selector

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"flight-deals-bot/internal/provider"
)

// Windows describe inclusive hour-of-day bounds for departure times.
// A nil bound leaves that side of the window unconstrained; a window only
// applies when both of its bounds are set.
type Windows struct {
	OutboundFrom *int
	OutboundTo   *int
	InboundFrom  *int
	InboundTo    *int
}

// Select 在一批报价中挑出通过时间窗过滤的最低总价。
// Ties keep the first offer in input order. The second return value is false
// when the batch is empty or fully filtered out; that is not an error.
func Select(offers []provider.Offer, windows Windows) (provider.Offer, bool) {
	var best provider.Offer
	found := false

	for _, offer := range offers {
		if !matchesWindows(offer, windows) {
			continue
		}
		if offer.Price.LessThanOrEqual(decimal.Zero) {
			continue
		}
		if !found || offer.Price.LessThan(best.Price) {
			best = offer
			found = true
		}
	}

	return best, found
}

// matchesWindows applies the outbound and inbound departure-hour windows
// independently. A missing or unparseable departure timestamp passes that
// window check (fail-open): absence of data must not exclude an offer.
func matchesWindows(offer provider.Offer, windows Windows) bool {
	if windows.OutboundFrom != nil && windows.OutboundTo != nil {
		if hr, ok := departureHour(offer.OutboundDeparture); ok {
			if hr < *windows.OutboundFrom || hr > *windows.OutboundTo {
				return false
			}
		}
	}

	if windows.InboundFrom != nil && windows.InboundTo != nil {
		if hr, ok := departureHour(offer.InboundDeparture); ok {
			if hr < *windows.InboundFrom || hr > *windows.InboundTo {
				return false
			}
		}
	}

	return true
}

// departureHour extracts the hour (0-23) from an ISO timestamp such as
// "2026-04-28T08:30:00".
func departureHour(iso string) (int, bool) {
	if iso == "" {
		return 0, false
	}
	trimmed := strings.TrimSuffix(iso, "Z")
	parsed, err := time.Parse("2006-01-02T15:04:05", trimmed)
	if err != nil {
		return 0, false
	}
	return parsed.Hour(), true
}
