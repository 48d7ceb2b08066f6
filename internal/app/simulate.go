package app

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"flight-deals-bot/internal/provider"
	"flight-deals-bot/internal/service"
)

// SimulateAlert 用给定总价构造一条静态报价，走完整的告警流程。No database
// writes: the cycle runs with persistence detached.
func (a *App) SimulateAlert(ctx context.Context, price decimal.Decimal) error {
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("telegram not configured; nothing to notify")
	}

	offer := provider.Offer{
		Price:             price,
		Currency:          a.Config.Trip.Currency,
		OutboundDeparture: a.Config.Trip.DepartureDate + "T09:00:00",
		OutboundArrival:   a.Config.Trip.DepartureDate + "T11:00:00",
	}
	if a.Config.Trip.ReturnDate != "" {
		offer.InboundDeparture = a.Config.Trip.ReturnDate + "T18:00:00"
		offer.InboundArrival = a.Config.Trip.ReturnDate + "T20:00:00"
	}

	quotes := &staticQuoteFetcher{offer: offer}

	svc := service.New(a.Config, quotes, nil, notifier, a.Logger)
	return svc.RunPollCycle(ctx)
}

type staticQuoteFetcher struct {
	offer provider.Offer
}

func (s *staticQuoteFetcher) FetchOffers(ctx context.Context) ([]provider.Offer, error) {
	return []provider.Offer{s.offer}, nil
}

var _ provider.QuoteFetcher = (*staticQuoteFetcher)(nil)
