package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"flight-deals-bot/internal/provider"
	"flight-deals-bot/internal/storage"
)

func renderFound(offer provider.Offer, adults int, googleLink, skyscannerLink string) string {
	lines := []string{
		fmt.Sprintf("✈️ Found price: %s %s for %d pax", offer.Price.StringFixed(2), offer.Currency, adults),
	}

	if offer.OutboundDeparture != "" && offer.OutboundArrival != "" {
		lines = append(lines, fmt.Sprintf("📅 Outbound: %s → %s", fmtTimestamp(offer.OutboundDeparture), fmtTimestamp(offer.OutboundArrival)))
	} else if date := offer.OutboundDate(); date != "" {
		lines = append(lines, fmt.Sprintf("📅 %s", date))
	}

	if offer.InboundDeparture != "" && offer.InboundArrival != "" {
		lines = append(lines, fmt.Sprintf("📅 Return:   %s → %s", fmtTimestamp(offer.InboundDeparture), fmtTimestamp(offer.InboundArrival)))
	}

	if googleLink != "" {
		lines = append(lines, "🔗 Google Flights: "+googleLink)
	}
	if skyscannerLink != "" {
		lines = append(lines, "🔗 Skyscanner: "+skyscannerLink)
	}

	return strings.Join(lines, "\n")
}

func renderAlert(perPerson, threshold decimal.Decimal) string {
	return fmt.Sprintf("🔥 [ALERT] Price ≤ %s€/person! (%s€/person)", threshold.StringFixed(0), perPerson.StringFixed(2))
}

func renderSummary(obs storage.Observation) string {
	lines := []string{
		fmt.Sprintf("📉 Daily lowest price: %s %s", obs.Price.StringFixed(2), obs.Currency),
	}
	if obs.OutboundDate != "" && obs.ReturnDate != nil {
		lines = append(lines, fmt.Sprintf("📅 %s → %s", obs.OutboundDate, *obs.ReturnDate))
	}
	if obs.GoogleLink != nil {
		lines = append(lines, "🔗 Google Flights: "+*obs.GoogleLink)
	}
	if obs.SkyscannerLink != nil {
		lines = append(lines, "🔗 Skyscanner: "+*obs.SkyscannerLink)
	}
	return strings.Join(lines, "\n")
}

// RenderHistory formats the cheapest recorded observations as a numbered
// list, cheapest first.
func RenderHistory(observations []storage.Observation) string {
	if len(observations) == 0 {
		return "No history yet."
	}

	parts := []string{fmt.Sprintf("📊 Top %d Lowest Prices:", len(observations))}
	for i, obs := range observations {
		ret := "?"
		if obs.ReturnDate != nil {
			ret = *obs.ReturnDate
		}
		dep := obs.OutboundDate
		if dep == "" {
			dep = "?"
		}
		parts = append(parts, fmt.Sprintf("%d) €%s — %s → %s", i+1, obs.Price.StringFixed(2), dep, ret))
		if obs.GoogleLink != nil {
			parts = append(parts, "🔗 G: "+*obs.GoogleLink)
		}
		if obs.SkyscannerLink != nil {
			parts = append(parts, "🔗 S: "+*obs.SkyscannerLink)
		}
	}
	return strings.Join(parts, "\n")
}

// fmtTimestamp renders an ISO timestamp as "2006-01-02 15:04"; unparseable
// values pass through untouched.
func fmtTimestamp(iso string) string {
	trimmed := strings.TrimSuffix(iso, "Z")
	parsed, err := time.Parse("2006-01-02T15:04:05", trimmed)
	if err != nil {
		return iso
	}
	return parsed.Format("2006-01-02 15:04")
}
