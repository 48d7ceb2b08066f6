// Package links builds third-party deep-link URLs for an itinerary. Pure
// string formatting; the URLs are derived convenience pointers, not
// authoritative data.
package links

import (
	"fmt"
	"strings"
)

// GoogleFlights returns a Google Flights deep link, or "" when the departure
// date is unknown.
func GoogleFlights(origin, destination, departureDate, returnDate, currency string, adults int) string {
	if departureDate == "" {
		return ""
	}

	builder := strings.Builder{}
	fmt.Fprintf(&builder, "https://www.google.com/flights?hl=el#flt=%s.%s.%s", origin, destination, departureDate)
	if returnDate != "" {
		fmt.Fprintf(&builder, "*%s.%s.%s", destination, origin, returnDate)
	}
	fmt.Fprintf(&builder, ";c:%s;sd:1;adults=%d", currency, adults)
	return builder.String()
}

// Skyscanner returns a Skyscanner deep link, or "" when the departure date is
// unknown. Skyscanner wants lower-case location codes and YYMMDD dates.
func Skyscanner(origin, destination, departureDate, returnDate, currency string, adults int) string {
	if departureDate == "" {
		return ""
	}

	dep := compactDate(departureDate)
	if returnDate != "" {
		ret := compactDate(returnDate)
		return fmt.Sprintf("https://www.skyscanner.net/transport/flights/%s/%s/%s/%s/?adults=%d&currency=%s",
			strings.ToLower(origin), strings.ToLower(destination), dep, ret, adults, currency)
	}
	return fmt.Sprintf("https://www.skyscanner.net/transport/flights/%s/%s/%s/?adults=%d&currency=%s",
		strings.ToLower(origin), strings.ToLower(destination), dep, adults, currency)
}

// compactDate turns "2026-04-28" into "260428".
func compactDate(isoDate string) string {
	compact := strings.ReplaceAll(isoDate, "-", "")
	if len(compact) > 2 {
		return compact[2:]
	}
	return compact
}
